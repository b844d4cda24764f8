// Package anthropic implements the chat transport over the Anthropic
// messages API.
package anthropic

import (
	"context"
	"net"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"

	llmtypes "github.com/openskills/skillagent/pkg/types/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// Client is a stateless chat client.
type Client struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float64
}

// New creates a client. The API key falls back to ANTHROPIC_API_KEY. The
// SDK's own retries are disabled so that a single retry policy applies.
func New(cfg llmtypes.Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is not set")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
			return nil, errors.Errorf("invalid base URL %q: must start with http:// or https://", cfg.BaseURL)
		}
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llmtypes.DefaultMaxTokens
	}

	return &Client{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Chat implements llmtypes.Client. System messages inside the history are
// folded into the system prompt since the API only accepts user and
// assistant turns.
func (c *Client) Chat(ctx context.Context, req llmtypes.Request) (*llmtypes.Response, error) {
	system := []string{}
	if req.System != "" {
		system = append(system, req.System)
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case llmtypes.RoleSystem:
			system = append(system, m.Content)
		case llmtypes.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(c.maxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(temperature),
	}
	if req.Model != "" {
		params.Model = anthropic.Model(req.Model)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "anthropic message request failed")
	}

	var content strings.Builder
	out := &llmtypes.Response{
		Model:        string(resp.Model),
		FinishReason: string(resp.StopReason),
		Usage: &llmtypes.Usage{
			InputTokens:       int(resp.Usage.InputTokens),
			OutputTokens:      int(resp.Usage.OutputTokens),
			CachedInputTokens: int(resp.Usage.CacheReadInputTokens),
		},
	}
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			content.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, llmtypes.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: variant.JSON.Input.Raw(),
			})
		}
	}
	out.Content = content.String()
	return out, nil
}

// IsRetryable reports whether err is worth retrying: rate limits, overload,
// server errors and network failures.
func (c *Client) IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
