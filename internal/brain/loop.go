package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// State names the phase the runner is in. The zero value is StateIdle.
type State string

const (
	StateIdle          State = "idle"
	StatePrompting     State = "prompting"
	StateToolRequested State = "tool_requested"
	StateExecuting     State = "executing"
	StateResponding    State = "responding"
	StateDone          State = "done"
)

// followupMaxTokens bounds the reply after tool execution so the spoken
// answer stays short.
const followupMaxTokens = 80

// ExecuteFunc runs one requested tool call. Panics are contained by the
// runner, never by implementations.
type ExecuteFunc func(ctx context.Context, call ToolCall) ToolResult

// Outcome is the result of one full reasoning pass.
type Outcome struct {
	Text      string
	ToolCalls []ToolCall
	Results   []ToolResult
	State     State
}

// Runner drives the two-phase reasoning loop: one model call, tool
// execution with per-call isolation, then one short follow-up call.
type Runner struct {
	client Client
}

func NewRunner(client Client) *Runner {
	return &Runner{client: client}
}

func (r *Runner) Run(ctx context.Context, req ChatRequest, exec ExecuteFunc) (Outcome, error) {
	out := Outcome{State: StatePrompting}

	first, err := r.client.Chat(ctx, req)
	if err != nil {
		return out, fmt.Errorf("model call: %w", err)
	}
	if len(first.ToolCalls) == 0 {
		out.Text = first.Text
		out.State = StateDone
		return out, nil
	}

	out.State = StateToolRequested
	out.ToolCalls = first.ToolCalls

	out.State = StateExecuting
	results := make([]ToolResult, 0, len(first.ToolCalls))
	for _, call := range first.ToolCalls {
		results = append(results, safeExecute(ctx, exec, call))
	}
	out.Results = results

	out.State = StateResponding
	followup := req
	followup.Tools = nil
	followup.ToolMode = ToolModeNone
	followup.MaxTokens = followupMaxTokens
	followup.Continuation = &Continuation{Assistant: first.Assistant, Results: results}

	second, err := r.client.Chat(ctx, followup)
	if err != nil {
		return out, fmt.Errorf("follow-up call: %w", err)
	}
	out.Text = second.Text
	out.State = StateDone
	return out, nil
}

// safeExecute isolates one tool call so a panic or error becomes a
// structured failure result instead of taking down the turn.
func safeExecute(ctx context.Context, exec ExecuteFunc, call ToolCall) (result ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("tool %s panicked: %v", call.Name, rec)
			result = FailureResult(call, fmt.Sprintf("tool panicked: %v", rec))
		}
	}()
	if exec == nil {
		return FailureResult(call, "no tool executor configured")
	}
	return exec(ctx, call)
}

// FailureResult encodes a structured failure payload for one tool call.
func FailureResult(call ToolCall, reason string) ToolResult {
	b, _ := json.Marshal(map[string]any{"success": false, "error": reason})
	return ToolResult{CallID: call.ID, Name: call.Name, Content: string(b), IsError: true}
}
