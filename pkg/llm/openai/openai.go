// Package openai implements the chat transport over the OpenAI chat
// completions API and compatible servers.
package openai

import (
	"context"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	llmtypes "github.com/openskills/skillagent/pkg/types/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Client is a stateless chat client.
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
}

// New creates a client. The API key falls back to OPENAI_API_KEY; a custom
// base URL may be used without a key for local servers.
func New(cfg llmtypes.Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
			return nil, errors.Errorf("invalid base URL %q: must start with http:// or https://", cfg.BaseURL)
		}
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Chat implements llmtypes.Client.
func (c *Client) Chat(ctx context.Context, req llmtypes.Request) (*llmtypes.Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    roleFor(m.Role),
			Content: m.Content,
		})
	}

	params := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: temperature(c.temperature, req.Temperature),
	}
	if req.Model != "" {
		params.Model = req.Model
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = req.MaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "openai chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	choice := resp.Choices[0]
	out := &llmtypes.Response{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		FinishReason: string(choice.FinishReason),
		Usage: &llmtypes.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	if details := resp.Usage.PromptTokensDetails; details != nil {
		out.Usage.CachedInputTokens = details.CachedTokens
	}
	for _, call := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, llmtypes.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return out, nil
}

// temperature resolves the request temperature. The library drops a zero
// value from the payload, so zero is sent as the smallest positive float.
func temperature(def float64, override *float64) float32 {
	t := def
	if override != nil {
		t = *override
	}
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

func roleFor(role string) string {
	switch role {
	case llmtypes.RoleSystem:
		return openai.ChatMessageRoleSystem
	case llmtypes.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// IsRetryable reports whether err is worth retrying: rate limits, server
// errors and transport failures.
func (c *Client) IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 0 || reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	return false
}
