package app

import (
	"fmt"
	"log"
	"strings"

	"github.com/remodely/aria/internal/brain"
	"github.com/remodely/aria/internal/config"
	"github.com/remodely/aria/internal/voice"
)

type brainSetup struct {
	fast     brain.Client
	smart    brain.Client
	resolved string
	detail   string
}

// resolveBrain picks the reasoning backend. "auto" uses OpenAI when a
// key is configured and falls back to the mock client otherwise.
func resolveBrain(cfg config.Config) (brainSetup, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.BrainMode))
	if mode == "" {
		mode = "auto"
	}

	useOpenAI := false
	switch mode {
	case "openai":
		useOpenAI = true
	case "mock":
	case "auto":
		useOpenAI = strings.TrimSpace(cfg.OpenAIAPIKey) != ""
	default:
		log.Printf("app: unknown BRAIN_MODE %q, falling back to auto", mode)
		useOpenAI = strings.TrimSpace(cfg.OpenAIAPIKey) != ""
	}

	if useOpenAI {
		fast, err := brain.NewOpenAIClient(brain.OpenAIOptions{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIChatModel,
		})
		if err != nil {
			return brainSetup{}, fmt.Errorf("openai client init failed: %w", err)
		}
		smart, err := brain.NewOpenAIClient(brain.OpenAIOptions{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAISmartModel,
		})
		if err != nil {
			return brainSetup{}, fmt.Errorf("openai client init failed: %w", err)
		}
		return brainSetup{
			fast:     fast,
			smart:    smart,
			resolved: "openai",
			detail:   cfg.OpenAIChatModel + " / " + cfg.OpenAISmartModel,
		}, nil
	}

	mock := brain.NewMockClient()
	return brainSetup{fast: mock, smart: mock, resolved: "mock", detail: "echo replies, no API key"}, nil
}

type voiceSetup struct {
	transcriber voice.Transcriber
	synthesizer voice.Synthesizer
	resolved    string
	detail      string
}

// resolveVoice picks speech providers. Transcription needs an OpenAI
// key and synthesis an ElevenLabs key; "auto" degrades each side to its
// mock independently.
func resolveVoice(cfg config.Config) voiceSetup {
	mode := strings.ToLower(strings.TrimSpace(cfg.VoiceProvider))
	if mode == "" {
		mode = "auto"
	}

	useReal := false
	switch mode {
	case "elevenlabs":
		useReal = true
	case "mock":
	case "auto":
		useReal = strings.TrimSpace(cfg.ElevenLabsAPIKey) != ""
	default:
		log.Printf("app: unknown VOICE_PROVIDER %q, falling back to auto", mode)
		useReal = strings.TrimSpace(cfg.ElevenLabsAPIKey) != ""
	}

	var (
		transcriber voice.Transcriber
		synthesizer voice.Synthesizer
		names       []string
	)

	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		transcriber = voice.NewWhisperTranscriber(voice.WhisperConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    strings.TrimSuffix(cfg.OpenAIBaseURL, "/v1"),
			ModelID:    cfg.OpenAISTTModel,
			Language:   cfg.TranscribeLanguage,
			PromptHint: cfg.TranscribePromptHint,
		})
		names = append(names, "stt=whisper")
	} else {
		transcriber = voice.NewMockTranscriber()
		names = append(names, "stt=mock")
	}

	resolved := "mock"
	if useReal {
		synthesizer = voice.NewElevenLabsSynthesizer(voice.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			BaseURL: cfg.ElevenLabsBaseURL,
			ModelID: cfg.ElevenLabsTTSModel,
		})
		names = append(names, "tts=elevenlabs")
		resolved = "elevenlabs"
	} else {
		synthesizer = voice.NewMockSynthesizer()
		names = append(names, "tts=mock")
	}

	return voiceSetup{
		transcriber: transcriber,
		synthesizer: synthesizer,
		resolved:    resolved,
		detail:      strings.Join(names, ", "),
	}
}
