// Package google implements the chat transport over the Google GenAI API,
// using either the Gemini API or Vertex AI backend.
package google

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	llmtypes "github.com/openskills/skillagent/pkg/types/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

const (
	backendGemini   = "gemini"
	backendVertexAI = "vertexai"
)

// Client is a stateless chat client.
type Client struct {
	client      *genai.Client
	model       string
	maxTokens   int
	temperature float64
}

// New creates a client for the detected backend.
func New(ctx context.Context, cfg llmtypes.Config) (*Client, error) {
	clientConfig := &genai.ClientConfig{}

	switch detectBackend(cfg) {
	case backendVertexAI:
		clientConfig.Backend = genai.BackendVertexAI
		if cfg.Google != nil {
			clientConfig.Project = cfg.Google.Project
			clientConfig.Location = cfg.Google.Location
		}
	default:
		clientConfig.Backend = genai.BackendGeminiAPI
		clientConfig.APIKey = apiKey(cfg)
		if clientConfig.APIKey == "" {
			return nil, errors.New("GEMINI_API_KEY or GOOGLE_API_KEY is not set")
		}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Google GenAI client")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client:      client,
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func apiKey(cfg llmtypes.Config) string {
	if cfg.APIKey != "" {
		return cfg.APIKey
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("GOOGLE_API_KEY")
}

// detectBackend picks the backend from explicit config first, then the
// GOOGLE_GENAI_USE_VERTEXAI switch, then whichever credentials are present.
func detectBackend(cfg llmtypes.Config) string {
	if cfg.Google != nil && cfg.Google.Backend != "" {
		return strings.ToLower(cfg.Google.Backend)
	}

	if env := os.Getenv("GOOGLE_GENAI_USE_VERTEXAI"); env != "" {
		if strings.EqualFold(env, "true") || env == "1" {
			return backendVertexAI
		}
		return backendGemini
	}

	if cfg.APIKey != "" {
		return backendGemini
	}
	if cfg.Google != nil && (cfg.Google.Project != "" || cfg.Google.Location != "") {
		return backendVertexAI
	}
	if os.Getenv("GOOGLE_CLOUD_PROJECT") != "" || os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" || os.Getenv("GCLOUD_PROJECT") != "" {
		return backendVertexAI
	}
	return backendGemini
}

// Chat implements llmtypes.Client.
func (c *Client) Chat(ctx context.Context, req llmtypes.Request) (*llmtypes.Response, error) {
	system := []string{}
	if req.System != "" {
		system = append(system, req.System)
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		parts := []*genai.Part{genai.NewPartFromText(m.Content)}
		switch m.Role {
		case llmtypes.RoleSystem:
			system = append(system, m.Content)
		case llmtypes.RoleAssistant:
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
		}
	}

	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromParts(
			[]*genai.Part{genai.NewPartFromText(strings.Join(system, "\n\n"))},
			genai.RoleUser,
		)
	}

	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, errors.Wrap(err, "google generate content failed")
	}
	if len(resp.Candidates) == 0 {
		return nil, errors.New("google returned no candidates")
	}

	candidate := resp.Candidates[0]
	out := &llmtypes.Response{
		Model:        resp.ModelVersion,
		FinishReason: string(candidate.FinishReason),
	}
	if resp.UsageMetadata != nil {
		out.Usage = &llmtypes.Usage{
			InputTokens:       int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens:      int(resp.UsageMetadata.CandidatesTokenCount),
			CachedInputTokens: int(resp.UsageMetadata.CachedContentTokenCount),
		}
	}

	var content strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			switch {
			case part.Thought:
			case part.FunctionCall != nil:
				args, _ := json.Marshal(part.FunctionCall.Args)
				out.ToolCalls = append(out.ToolCalls, llmtypes.ToolCall{
					ID:        part.FunctionCall.ID,
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				})
			case part.Text != "":
				content.WriteString(part.Text)
			}
		}
	}
	out.Content = content.String()
	return out, nil
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"service unavailable",
	"internal error",
	"quota exceeded",
	"rate limit",
	"too many requests",
	"resource_exhausted",
	"error 429",
	"error 500",
	"error 502",
	"error 503",
	"error 504",
}

// IsRetryable reports whether err looks transient.
func (c *Client) IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
