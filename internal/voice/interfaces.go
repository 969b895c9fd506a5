package voice

import "context"

// Transcript is the speech-to-text result for one utterance.
type Transcript struct {
	Text     string
	Language string
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioBase64 string) (Transcript, error)
}

// SynthesisSettings tune provider voice rendering. Zero values fall
// back to provider defaults.
type SynthesisSettings struct {
	Stability       float64
	SimilarityBoost float64
	Speed           float64
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string, settings SynthesisSettings) (audioBase64 string, err error)
}
