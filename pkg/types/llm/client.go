// Package llm defines the chat transport contract shared by the orchestrator
// and the concrete provider clients.
package llm

import "context"

// Roles understood by every transport.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in a conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Request is one stateless chat call.
type Request struct {
	Messages []Message
	// System is sent ahead of Messages when non-empty.
	System string
	// Temperature is left to the provider default when nil.
	Temperature *float64
	// MaxTokens is left to the provider default when zero.
	MaxTokens int
	// Model overrides the client's configured model when set.
	Model string
	// NoRetry makes retrying clients give up after the first attempt.
	NoRetry bool
}

// ToolCall is a structured tool request returned by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Response is the transport's reply.
type Response struct {
	Content      string
	Model        string
	Usage        *Usage
	FinishReason string
	ToolCalls    []ToolCall
}

// Client is the chat transport. Implementations must not keep conversation
// state between calls.
type Client interface {
	Chat(ctx context.Context, req Request) (*Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (*Response, error)

// Chat implements Client.
func (f ClientFunc) Chat(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Float returns a pointer to v, for Request.Temperature.
func Float(v float64) *float64 {
	return &v
}
