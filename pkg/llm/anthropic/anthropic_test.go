package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmtypes "github.com/openskills/skillagent/pkg/types/llm"
)

func newTestServer(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if captured != nil {
			require.NoError(t, json.Unmarshal(raw, captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := New(llmtypes.Config{})
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")

	_, err = New(llmtypes.Config{APIKey: "k", BaseURL: "localhost:8080"})
	assert.ErrorContains(t, err, "invalid base URL")
}

func TestChat(t *testing.T) {
	var payload map[string]any
	server := newTestServer(t, http.StatusOK, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-test",
		"content": [
			{"type": "text", "text": "Hello"},
			{"type": "text", "text": " there"}
		],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 12, "output_tokens": 3, "cache_read_input_tokens": 2}
	}`, &payload)

	client, err := New(llmtypes.Config{APIKey: "k", BaseURL: server.URL, Model: "claude-test", Temperature: 0.7})
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(), llmtypes.Request{
		System: "base",
		Messages: []llmtypes.Message{
			llmtypes.UserMessage("hi"),
			llmtypes.AssistantMessage("yes?"),
			llmtypes.UserMessage("go"),
		},
		Temperature: llmtypes.Float(0),
		MaxTokens:   50,
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello there", resp.Content)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, 3, resp.Usage.OutputTokens)
	assert.Equal(t, 2, resp.Usage.CachedInputTokens)

	assert.Equal(t, "claude-test", payload["model"])
	assert.EqualValues(t, 50, payload["max_tokens"])
	assert.EqualValues(t, 0, payload["temperature"])
	messages, ok := payload["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 3)
	system, ok := payload["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	assert.Equal(t, "base", system[0].(map[string]any)["text"])
}

func TestChatAPIError(t *testing.T) {
	server := newTestServer(t, http.StatusTooManyRequests,
		`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, nil)

	client, err := New(llmtypes.Config{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), llmtypes.Request{Messages: []llmtypes.Message{llmtypes.UserMessage("hi")}})
	require.Error(t, err)
	assert.True(t, client.IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	c := &Client{}
	assert.False(t, c.IsRetryable(nil))
	assert.False(t, c.IsRetryable(errors.Wrap(context.DeadlineExceeded, "request")))
	assert.False(t, c.IsRetryable(errors.New("bad request")))
}
