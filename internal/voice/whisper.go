package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultTranscribeTimeout = 30 * time.Second

type WhisperConfig struct {
	APIKey     string
	BaseURL    string
	ModelID    string
	Language   string
	PromptHint string
	HTTPClient *http.Client
}

// WhisperTranscriber sends one utterance per request to the OpenAI
// audio transcription endpoint.
type WhisperTranscriber struct {
	cfg WhisperConfig
}

func NewWhisperTranscriber(cfg WhisperConfig) *WhisperTranscriber {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "whisper-1"
	}
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = "en"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTranscribeTimeout}
	}
	return &WhisperTranscriber{cfg: cfg}
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, audioBase64 string) (Transcript, error) {
	audio, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil {
		return Transcript{}, fmt.Errorf("decode audio payload: %w", err)
	}
	if len(audio) == 0 {
		return Transcript{}, fmt.Errorf("empty audio payload")
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "audio.webm")
	if err != nil {
		return Transcript{}, err
	}
	if _, err := part.Write(audio); err != nil {
		return Transcript{}, err
	}
	_ = form.WriteField("model", t.cfg.ModelID)
	_ = form.WriteField("language", t.cfg.Language)
	if t.cfg.PromptHint != "" {
		_ = form.WriteField("prompt", t.cfg.PromptHint)
	}
	if err := form.Close(); err != nil {
		return Transcript{}, err
	}

	url := strings.TrimRight(t.cfg.BaseURL, "/") + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return Transcript{}, err
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := t.cfg.HTTPClient.Do(req)
	if err != nil {
		return Transcript{}, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Transcript{}, fmt.Errorf("transcription failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Transcript{}, fmt.Errorf("decode transcription response: %w", err)
	}
	return Transcript{Text: strings.TrimSpace(parsed.Text), Language: t.cfg.Language}, nil
}
