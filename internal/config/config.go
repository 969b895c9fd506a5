package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice assistant core.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	SessionInactivityTimeout time.Duration
	HistoryWindow            int
	CacheTTL                 time.Duration

	BrainMode        string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIChatModel  string
	OpenAISmartModel string
	OpenAISTTModel   string

	VoiceProvider        string
	ElevenLabsAPIKey     string
	ElevenLabsBaseURL    string
	ElevenLabsTTSModel   string
	ElevenLabsVoiceID    string
	TranscribeLanguage   string
	TranscribePromptHint string

	DatabaseURL string

	TelemetryDataDir string
	KnowledgeLimit   int
	DefaultAgentID   string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "aria"),
		BrainMode:         envOrDefault("BRAIN_MODE", "auto"),
		OpenAIAPIKey:      envTrimmed("OPENAI_API_KEY"),
		OpenAIBaseURL:     envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIChatModel:   envOrDefault("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAISmartModel:  envOrDefault("OPENAI_SMART_MODEL", "gpt-4o"),
		OpenAISTTModel:    envOrDefault("OPENAI_STT_MODEL", "whisper-1"),
		VoiceProvider:     envOrDefault("VOICE_PROVIDER", "auto"),
		ElevenLabsAPIKey:  envTrimmed("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL: envOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		// Fast conversational model; keeps stage-three latency inside budget.
		ElevenLabsTTSModel: envOrDefault("ELEVENLABS_TTS_MODEL_ID", "eleven_turbo_v2_5"),
		ElevenLabsVoiceID:  envOrDefault("ELEVENLABS_TTS_VOICE_ID", "EXAVITQu4vr4xnSDxMaL"),
		TranscribeLanguage: envOrDefault("TRANSCRIBE_LANGUAGE", "en"),
		// Decoding hint reduces command misrecognition ("text" vs "test").
		TranscribePromptHint: envOrDefault("TRANSCRIBE_PROMPT_HINT",
			`This is a voice assistant conversation. Common commands include: send text message, send SMS, send email, create estimate, create quote, create invoice, book appointment, search contacts. When the user says "text" they usually mean SMS text message, not "test".`),
		DatabaseURL:              envTrimmed("DATABASE_URL"),
		TelemetryDataDir:         envOrDefault("TELEMETRY_DATA_DIR", "training-data"),
		DefaultAgentID:           envOrDefault("APP_DEFAULT_AGENT_ID", "aria"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 60 * time.Second,
		HistoryWindow:            10,
		CacheTTL:                 30 * time.Second,
		KnowledgeLimit:           3,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheTTL, err = durationFromEnv("APP_CACHE_TTL", cfg.CacheTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryWindow, err = intFromEnv("APP_HISTORY_WINDOW", cfg.HistoryWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.KnowledgeLimit, err = intFromEnv("APP_KNOWLEDGE_LIMIT", cfg.KnowledgeLimit)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.CacheTTL <= 0 {
		return Config{}, fmt.Errorf("APP_CACHE_TTL must be positive")
	}
	if cfg.HistoryWindow <= 0 {
		return Config{}, fmt.Errorf("APP_HISTORY_WINDOW must be positive")
	}
	if cfg.KnowledgeLimit < 0 {
		return Config{}, fmt.Errorf("APP_KNOWLEDGE_LIMIT must be >= 0")
	}
	switch strings.ToLower(cfg.BrainMode) {
	case "auto", "openai", "mock":
	default:
		return Config{}, fmt.Errorf("BRAIN_MODE must be auto|openai|mock, got %q", cfg.BrainMode)
	}
	switch strings.ToLower(cfg.VoiceProvider) {
	case "auto", "elevenlabs", "mock":
	default:
		return Config{}, fmt.Errorf("VOICE_PROVIDER must be auto|elevenlabs|mock, got %q", cfg.VoiceProvider)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
