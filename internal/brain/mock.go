package brain

import (
	"context"
	"fmt"
	"strings"
)

// MockClient produces deterministic replies without any network calls.
// It is the default when no model API key is configured.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Chat(_ context.Context, req ChatRequest) (ChatResponse, error) {
	if req.Continuation != nil {
		done := 0
		for _, r := range req.Continuation.Results {
			if !r.IsError {
				done++
			}
		}
		return ChatResponse{Text: fmt.Sprintf("Done, completed %d of %d actions.", done, len(req.Continuation.Results))}, nil
	}

	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			last = req.Messages[i].Content
			break
		}
	}
	last = strings.TrimSpace(last)
	if last == "" {
		return ChatResponse{Text: "I'm here. What would you like to do?"}, nil
	}
	return ChatResponse{Text: "Got it. You said: " + last}, nil
}
