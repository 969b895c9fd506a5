package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/remodely/aria/internal/agent"
	"github.com/remodely/aria/internal/assemble"
	"github.com/remodely/aria/internal/brain"
	"github.com/remodely/aria/internal/config"
	"github.com/remodely/aria/internal/crm"
	"github.com/remodely/aria/internal/knowledge"
	"github.com/remodely/aria/internal/memory"
	"github.com/remodely/aria/internal/observability"
	"github.com/remodely/aria/internal/session"
	"github.com/remodely/aria/internal/telemetry"
	"github.com/remodely/aria/internal/tools"
	"github.com/remodely/aria/internal/voice"
)

func newTestServer(t *testing.T) (*Server, *session.Store) {
	t.Helper()

	cfg := config.Config{DefaultAgentID: "aria"}
	repos := crm.NewInMemoryRepositories()
	bundle := repos.Bundle()
	mem := memory.NewInMemoryStore()
	search := knowledge.NewStaticSearcher()
	sessions := session.NewStore(time.Minute, nil)
	agents := agent.NewRegistry("aria", agent.BuiltinPersonas())

	dir := t.TempDir()
	turnLog, err := telemetry.NewTurnLog(dir)
	if err != nil {
		t.Fatalf("NewTurnLog() error = %v", err)
	}
	commands, err := telemetry.NewCommandQueue(dir)
	if err != nil {
		t.Fatalf("NewCommandQueue() error = %v", err)
	}
	trainer, err := telemetry.NewTrainer(dir, nil, turnLog)
	if err != nil {
		t.Fatalf("NewTrainer() error = %v", err)
	}
	window := observability.NewTurnStageWindow(0)

	orch := voice.NewOrchestrator(voice.OrchestratorConfig{
		Transcriber: voice.NewMockTranscriber(),
		Synthesizer: voice.NewMockSynthesizer(),
		FastBrain:   brain.NewMockClient(),
		SmartBrain:  brain.NewMockClient(),
		Sessions:    sessions,
		Agents:      agents,
		Assembler:   assemble.New(time.Minute, bundle, mem, search, 10, 3),
		Executor:    tools.NewExecutor(bundle, mem, search, tools.LogMessenger{}),
		Memory:      mem,
		Metrics:     observability.NewMetrics(fmt.Sprintf("aria_test_api_%d", time.Now().UnixNano())),
		Window:      window,
		Logs:        telemetry.NewLogBuffer(),
		TurnLog:     turnLog,
		Commands:    commands,
		DataDir:     dir,
		VoiceID:     "default-voice",
	})
	return New(cfg, orch, agents, sessions, mem, trainer, turnLog, window), sessions
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func getPath(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestProcessEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	audio := base64.StdEncoding.EncodeToString([]byte("what's on my calendar"))
	rec := postJSON(t, router, "/v1/voice/process", map[string]any{
		"audioBase64": audio,
		"userId":      "u1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp processResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("success = false")
	}
	if resp.SessionID == "" {
		t.Fatalf("expected sessionId in response")
	}
	if resp.UserMessage != "what's on my calendar" {
		t.Fatalf("userMessage = %q", resp.UserMessage)
	}
	if resp.AIMessage == "" || resp.AudioBase64 == "" {
		t.Fatalf("expected reply and audio")
	}
	if resp.Agent == nil || resp.Agent.ID != "aria" {
		t.Fatalf("agent = %+v", resp.Agent)
	}
	if len(resp.ConversationHistory) != 2 {
		t.Fatalf("history length = %d, want 2", len(resp.ConversationHistory))
	}
}

func TestProcessRequiresAudio(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := postJSON(t, srv.Router(), "/v1/voice/process", map[string]any{"userId": "u1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "missing_audio") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestProcessFiltersNoiseWith200(t *testing.T) {
	srv, _ := newTestServer(t)
	audio := base64.StdEncoding.EncodeToString([]byte("Thanks for watching!"))
	rec := postJSON(t, srv.Router(), "/v1/voice/process", map[string]any{"audioBase64": audio})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp processResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.IsBackgroundNoise {
		t.Fatalf("expected isBackgroundNoise")
	}
	if resp.AIMessage != "" {
		t.Fatalf("noise must not produce a reply")
	}
}

func TestGreetingEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := postJSON(t, srv.Router(), "/v1/voice/greeting", map[string]any{"userId": "u1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp processResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.AIMessage == "" {
		t.Fatalf("expected greeting text")
	}
	if resp.Agent == nil || resp.Agent.ID != "aria" {
		t.Fatalf("agent = %+v", resp.Agent)
	}
}

func TestEndConversationEndpoint(t *testing.T) {
	srv, sessions := newTestServer(t)
	sessions.GetOrCreate("s1")

	rec := postJSON(t, srv.Router(), "/v1/voice/end-conversation", map[string]any{"sessionId": "s1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ended":true`) {
		t.Fatalf("body = %s", rec.Body.String())
	}

	rec = postJSON(t, srv.Router(), "/v1/voice/end-conversation", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSetGoalEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := postJSON(t, router, "/v1/voice/set-goal", map[string]any{
		"sessionId": "s-goal",
		"goal":      "book the kitchen remodel estimate",
		"userId":    "u1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Goal set: book the kitchen remodel estimate") {
		t.Fatalf("body = %s", rec.Body.String())
	}

	entry, ok, err := srv.mem.Get(context.Background(), "u1", "conversation_goal_s-goal")
	if err != nil || !ok {
		t.Fatalf("Get(conversation_goal) ok = %v, err %v", ok, err)
	}
	if entry.Value != "book the kitchen remodel estimate" {
		t.Fatalf("goal value = %q", entry.Value)
	}
	if entry.Category != "context" || entry.Importance != 10 {
		t.Fatalf("goal entry = %+v", entry)
	}

	rec = postJSON(t, router, "/v1/voice/set-goal", map[string]any{"sessionId": "s-goal"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	rec = postJSON(t, router, "/v1/voice/set-goal", map[string]any{"goal": "anything"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListAgentsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := getPath(t, srv.Router(), "/v1/voice/agents")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Agents  []agentSummary `json:"agents"`
		Default string         `json:"default"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Agents) == 0 {
		t.Fatalf("expected at least one agent")
	}
	if resp.Default != "aria" {
		t.Fatalf("default = %q, want aria", resp.Default)
	}
}

func TestContextEndpoint(t *testing.T) {
	srv, sessions := newTestServer(t)

	rec := getPath(t, srv.Router(), "/v1/voice/context/missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	sessions.GetOrCreate("s-ctx")
	sessions.AppendMessage("s-ctx", "user", "hello")
	rec = getPath(t, srv.Router(), "/v1/voice/context/s-ctx")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "hello") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestStatsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	for _, path := range []string{"/v1/voice/analytics", "/v1/voice/training-stats", "/v1/voice/memory-stats", "/healthz", "/readyz"} {
		rec := getPath(t, router, path)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d", path, rec.Code)
		}
	}
}
