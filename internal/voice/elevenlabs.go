package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultSynthesizeTimeout = 30 * time.Second

type ElevenLabsConfig struct {
	APIKey     string
	BaseURL    string
	ModelID    string
	HTTPClient *http.Client
}

// ElevenLabsSynthesizer renders one reply per request against the
// ElevenLabs text-to-speech REST endpoint.
type ElevenLabsSynthesizer struct {
	cfg ElevenLabsConfig
}

func NewElevenLabsSynthesizer(cfg ElevenLabsConfig) *ElevenLabsSynthesizer {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "eleven_turbo_v2_5"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultSynthesizeTimeout}
	}
	return &ElevenLabsSynthesizer{cfg: cfg}
}

func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text, voiceID string, settings SynthesisSettings) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("text is required")
	}
	if strings.TrimSpace(voiceID) == "" {
		return "", fmt.Errorf("voice_id is required")
	}

	stability := clampRange(settings.Stability, 0.5, 0, 1)
	similarity := clampRange(settings.SimilarityBoost, 0.75, 0, 1)
	speed := clampRange(settings.Speed, 1.0, 0.7, 1.2)

	payload := map[string]any{
		"text":     text,
		"model_id": s.cfg.ModelID,
		"voice_settings": map[string]any{
			"stability":        stability,
			"similarity_boost": similarity,
			"speed":            speed,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("xi-api-key", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("synthesis failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read synthesis response: %w", err)
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("empty synthesis response")
	}
	return base64.StdEncoding.EncodeToString(audio), nil
}

func clampRange(v, fallback, min, max float64) float64 {
	if v <= 0 {
		v = fallback
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
