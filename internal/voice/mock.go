package voice

import (
	"context"
	"encoding/base64"
	"strings"
)

// MockTranscriber decodes the audio payload as UTF-8 text. It lets
// tests and local runs drive the pipeline without a speech provider.
type MockTranscriber struct{}

func NewMockTranscriber() *MockTranscriber { return &MockTranscriber{} }

func (t *MockTranscriber) Transcribe(_ context.Context, audioBase64 string) (Transcript, error) {
	decoded, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil {
		return Transcript{Text: "simulated voice input", Language: "en"}, nil
	}
	text := strings.TrimSpace(string(decoded))
	if text == "" {
		text = "simulated voice input"
	}
	return Transcript{Text: text, Language: "en"}, nil
}

// MockSynthesizer returns the reply text bytes as audio so callers can
// verify round trips deterministically.
type MockSynthesizer struct{}

func NewMockSynthesizer() *MockSynthesizer { return &MockSynthesizer{} }

func (s *MockSynthesizer) Synthesize(_ context.Context, text, _ string, _ SynthesisSettings) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return base64.StdEncoding.EncodeToString([]byte(text)), nil
}
