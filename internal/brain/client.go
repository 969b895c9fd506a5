// Package brain abstracts the language model behind a provider-neutral
// client so the tool loop and the orchestrator never import a vendor SDK.
package brain

import "context"

// ToolMode controls whether the model must, may, or must not call tools.
type ToolMode string

const (
	ToolModeRequired ToolMode = "required"
	ToolModeAuto     ToolMode = "auto"
	ToolModeNone     ToolMode = "none"
)

// Message is one prior conversational turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolDef describes one callable function exposed to the model.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a model request to invoke one tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolResult is the outcome of one tool invocation, JSON-encoded.
type ToolResult struct {
	CallID  string
	Name    string
	Content string
	IsError bool
}

// Continuation carries the provider-specific assistant turn that
// requested tools, plus the results, into the follow-up call.
type Continuation struct {
	Assistant any
	Results   []ToolResult
}

// ChatRequest is one model call.
type ChatRequest struct {
	System       string
	Messages     []Message
	Tools        []ToolDef
	ToolMode     ToolMode
	MaxTokens    int
	Temperature  float64
	Continuation *Continuation
}

// ChatResponse is the model's reply. Assistant is an opaque provider
// token handed back through Continuation when tools were requested.
type ChatResponse struct {
	Text      string
	ToolCalls []ToolCall
	Assistant any
}

// Client runs chat completions against one provider.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}
