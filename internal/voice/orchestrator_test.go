package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/remodely/aria/internal/agent"
	"github.com/remodely/aria/internal/assemble"
	"github.com/remodely/aria/internal/brain"
	"github.com/remodely/aria/internal/crm"
	"github.com/remodely/aria/internal/knowledge"
	"github.com/remodely/aria/internal/memory"
	"github.com/remodely/aria/internal/observability"
	"github.com/remodely/aria/internal/session"
	"github.com/remodely/aria/internal/telemetry"
	"github.com/remodely/aria/internal/tools"
)

type scriptedBrain struct {
	responses []brain.ChatResponse
	requests  []brain.ChatRequest
	err       error
}

func (c *scriptedBrain) Chat(_ context.Context, req brain.ChatRequest) (brain.ChatResponse, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return brain.ChatResponse{}, c.err
	}
	if len(c.responses) == 0 {
		return brain.ChatResponse{Text: "ok"}, nil
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

type failingSynth struct{}

func (failingSynth) Synthesize(context.Context, string, string, SynthesisSettings) (string, error) {
	return "", fmt.Errorf("provider down")
}

type failingTranscriber struct{}

func (failingTranscriber) Transcribe(context.Context, string) (Transcript, error) {
	return Transcript{}, fmt.Errorf("provider down")
}

// countingSynth records how many times synthesis is requested.
type countingSynth struct {
	calls int
}

func (s *countingSynth) Synthesize(context.Context, string, string, SynthesisSettings) (string, error) {
	s.calls++
	return "audio", nil
}

type fixture struct {
	orch     *Orchestrator
	repos    *crm.InMemoryRepositories
	mem      *memory.InMemoryStore
	store    *session.Store
	commands *telemetry.CommandQueue
	dataDir  string
}

func newFixture(t *testing.T, fastBrain, smartBrain brain.Client) *fixture {
	t.Helper()

	repos := crm.NewInMemoryRepositories()
	mem := memory.NewInMemoryStore()
	search := knowledge.NewStaticSearcher()
	bundle := repos.Bundle()

	store := session.NewStore(time.Minute, nil)
	dataDir := t.TempDir()
	turnLog, err := telemetry.NewTurnLog(dataDir)
	if err != nil {
		t.Fatalf("NewTurnLog() error = %v", err)
	}
	commands, err := telemetry.NewCommandQueue(dataDir)
	if err != nil {
		t.Fatalf("NewCommandQueue() error = %v", err)
	}

	orch := NewOrchestrator(OrchestratorConfig{
		Transcriber: NewMockTranscriber(),
		Synthesizer: NewMockSynthesizer(),
		FastBrain:   fastBrain,
		SmartBrain:  smartBrain,
		Sessions:    store,
		Agents:      agent.NewRegistry("aria", agent.BuiltinPersonas()),
		Assembler:   assemble.New(time.Minute, bundle, mem, search, 10, 3),
		Executor:    tools.NewExecutor(bundle, mem, search, tools.LogMessenger{}),
		Memory:      mem,
		Metrics:     observability.NewMetrics(fmt.Sprintf("aria_test_%d", time.Now().UnixNano())),
		Window:      observability.NewTurnStageWindow(0),
		Logs:        telemetry.NewLogBuffer(),
		TurnLog:     turnLog,
		Commands:    commands,
		DataDir:     dataDir,
		VoiceID:     "default-voice",
	})
	return &fixture{orch: orch, repos: repos, mem: mem, store: store, commands: commands, dataDir: dataDir}
}

func audioFor(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}

func TestProcessTurnPlainReply(t *testing.T) {
	f := newFixture(t, brain.NewMockClient(), brain.NewMockClient())

	out, err := f.orch.ProcessTurn(context.Background(), TurnInput{
		AudioBase64: audioFor("how is my day looking"),
		UserID:      "u1",
	})
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if out.SessionID == "" {
		t.Fatalf("expected a generated session id")
	}
	if out.UserMessage != "how is my day looking" {
		t.Fatalf("userMessage = %q", out.UserMessage)
	}
	if out.AIMessage == "" || out.AudioBase64 == "" {
		t.Fatalf("expected reply text and audio, got %q / %q", out.AIMessage, out.AudioBase64)
	}
	if out.Degraded {
		t.Fatalf("turn should not be degraded")
	}
	if len(out.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(out.History))
	}
	if out.Metrics.TotalMS < 0 {
		t.Fatalf("totalMs = %d", out.Metrics.TotalMS)
	}
}

func TestProcessTurnFiltersNoise(t *testing.T) {
	fast := &scriptedBrain{}
	smart := &scriptedBrain{}
	f := newFixture(t, fast, smart)
	synth := &countingSynth{}
	f.orch.synth = synth

	out, err := f.orch.ProcessTurn(context.Background(), TurnInput{
		AudioBase64: audioFor("Thanks for watching!"),
		SessionID:   "s-noise",
	})
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if !out.IsBackgroundNoise {
		t.Fatalf("expected noise flag")
	}
	if out.AIMessage != "" || out.AudioBase64 != "" {
		t.Fatalf("noise must not produce a reply")
	}
	if _, ok := f.store.Snapshot("s-noise"); ok {
		t.Fatalf("noise must not create a session")
	}
	if got := len(fast.requests) + len(smart.requests); got != 0 {
		t.Fatalf("noise reached the model %d times, want 0", got)
	}
	if synth.calls != 0 {
		t.Fatalf("noise reached synthesis %d times, want 0", synth.calls)
	}
}

func TestProcessTurnDevCommand(t *testing.T) {
	f := newFixture(t, brain.NewMockClient(), brain.NewMockClient())

	out, err := f.orch.ProcessTurn(context.Background(), TurnInput{
		AudioBase64: audioFor("Copilot, restart the dev server"),
	})
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if !out.IsDevCommand {
		t.Fatalf("expected dev command flag")
	}
	if out.CommandID == "" || !strings.HasPrefix(out.CommandID, "cmd_") {
		t.Fatalf("commandId = %q", out.CommandID)
	}
	if !strings.Contains(out.AIMessage, "restart the dev server") {
		t.Fatalf("confirmation = %q", out.AIMessage)
	}
	if out.AudioBase64 != "" {
		t.Fatalf("dev command confirmations stay unvoiced")
	}

	pending, err := f.commands.Pending()
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("queued commands = %d, want 1", len(pending))
	}
	if pending[0].ID != out.CommandID {
		t.Fatalf("queued id = %q, want %q", pending[0].ID, out.CommandID)
	}
	if pending[0].Kind != telemetry.CommandKindDev {
		t.Fatalf("queued kind = %q", pending[0].Kind)
	}
	if pending[0].Command != "restart the dev server" {
		t.Fatalf("queued command = %q", pending[0].Command)
	}
}

func TestProcessTurnLogCommandPersistsRequest(t *testing.T) {
	f := newFixture(t, brain.NewMockClient(), brain.NewMockClient())

	out, err := f.orch.ProcessTurn(context.Background(), TurnInput{
		AudioBase64: audioFor("Aria, save logs and fix the slow responses"),
	})
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if out.CommandID == "" || !strings.HasPrefix(out.CommandID, "snippet_") {
		t.Fatalf("commandId = %q", out.CommandID)
	}
	if out.AudioBase64 != "" {
		t.Fatalf("log command confirmations stay unvoiced")
	}

	data, err := os.ReadFile(filepath.Join(f.dataDir, out.CommandID+".json"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var snippet telemetry.Snippet
	if err := json.Unmarshal(data, &snippet); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !strings.Contains(snippet.Description, "fix the slow responses") {
		t.Fatalf("snippet description = %q", snippet.Description)
	}
	found := false
	for _, entry := range snippet.Logs {
		if entry.Message == "improvement request" {
			found = true
		}
	}
	if !found {
		t.Fatalf("captured logs do not include the improvement request")
	}

	pending, err := f.commands.Pending()
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("queued commands = %d, want 1", len(pending))
	}
	if pending[0].Kind != telemetry.CommandKindImprovement {
		t.Fatalf("queued kind = %q", pending[0].Kind)
	}
	if !strings.Contains(pending[0].Command, "fix the slow responses") {
		t.Fatalf("queued command = %q", pending[0].Command)
	}
}

func TestProcessTurnTranscriptionFailure(t *testing.T) {
	f := newFixture(t, brain.NewMockClient(), brain.NewMockClient())
	f.orch.transcriber = failingTranscriber{}

	_, err := f.orch.ProcessTurn(context.Background(), TurnInput{AudioBase64: audioFor("hello")})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "transcription failed") {
		t.Fatalf("error = %v", err)
	}
}

func TestProcessTurnSynthesisDegrades(t *testing.T) {
	f := newFixture(t, brain.NewMockClient(), brain.NewMockClient())
	f.orch.synth = failingSynth{}

	out, err := f.orch.ProcessTurn(context.Background(), TurnInput{
		AudioBase64: audioFor("tell me about my schedule"),
	})
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if !out.Degraded {
		t.Fatalf("expected degraded turn")
	}
	if out.AIMessage == "" {
		t.Fatalf("degraded turn still needs reply text")
	}
	if out.AudioBase64 != "" {
		t.Fatalf("degraded turn must not carry audio")
	}
}

func TestProcessTurnToolCallPersistsLead(t *testing.T) {
	args, _ := json.Marshal(map[string]any{"name": "Dana Fields", "phone": "555-0102"})
	fast := &scriptedBrain{responses: []brain.ChatResponse{
		{
			ToolCalls: []brain.ToolCall{{ID: "call-1", Name: "create_lead", Arguments: string(args)}},
			Assistant: "assistant-token",
		},
		{Text: "Created the lead for Dana."},
	}}
	smart := &scriptedBrain{responses: []brain.ChatResponse{
		{
			ToolCalls: []brain.ToolCall{{ID: "call-1", Name: "create_lead", Arguments: string(args)}},
			Assistant: "assistant-token",
		},
		{Text: "Created the lead for Dana."},
	}}
	f := newFixture(t, fast, smart)

	out, err := f.orch.ProcessTurn(context.Background(), TurnInput{
		AudioBase64: audioFor("create a client named Dana Fields"),
		UserID:      "u1",
	})
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if out.AIMessage != "Created the lead for Dana." {
		t.Fatalf("aiMessage = %q", out.AIMessage)
	}
	leads, err := f.repos.LeadStore.Recent(context.Background(), 5)
	if err != nil || len(leads) != 1 {
		t.Fatalf("Recent() = %v leads, err %v", len(leads), err)
	}
	if leads[0].Name != "Dana Fields" {
		t.Fatalf("lead name = %q", leads[0].Name)
	}
}

func TestProcessTurnForcedCommandUsesSmartModel(t *testing.T) {
	fast := &scriptedBrain{}
	smart := &scriptedBrain{responses: []brain.ChatResponse{{Text: "On it."}}}
	f := newFixture(t, fast, smart)

	_, err := f.orch.ProcessTurn(context.Background(), TurnInput{
		AudioBase64: audioFor("send a text to Marco saying I'm running late"),
		UserID:      "u1",
	})
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if len(fast.requests) != 0 {
		t.Fatalf("fast model used %d times, want 0", len(fast.requests))
	}
	if len(smart.requests) != 1 {
		t.Fatalf("smart model used %d times, want 1", len(smart.requests))
	}
	req := smart.requests[0]
	if req.ToolMode != brain.ToolModeRequired {
		t.Fatalf("toolMode = %q, want required", req.ToolMode)
	}
	if len(req.Tools) == 0 {
		t.Fatalf("forced command must expose tools")
	}
	if req.MaxTokens != smartMaxTokens {
		t.Fatalf("maxTokens = %d, want %d", req.MaxTokens, smartMaxTokens)
	}
}

func TestProcessTurnSmallTalkHidesTools(t *testing.T) {
	fast := &scriptedBrain{responses: []brain.ChatResponse{{Text: "Doing great."}}}
	f := newFixture(t, fast, &scriptedBrain{})

	_, err := f.orch.ProcessTurn(context.Background(), TurnInput{
		AudioBase64: audioFor("how are you doing today"),
	})
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	req := fast.requests[0]
	if req.ToolMode != brain.ToolModeNone {
		t.Fatalf("toolMode = %q, want none", req.ToolMode)
	}
	if len(req.Tools) != 0 {
		t.Fatalf("small talk must not expose tools")
	}
	if req.MaxTokens != fastMaxTokens {
		t.Fatalf("maxTokens = %d, want %d", req.MaxTokens, fastMaxTokens)
	}
}

func TestProcessTurnRemembersSpokenName(t *testing.T) {
	f := newFixture(t, brain.NewMockClient(), brain.NewMockClient())

	_, err := f.orch.ProcessTurn(context.Background(), TurnInput{
		AudioBase64: audioFor("my name is Jordan"),
		UserID:      "u1",
	})
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	entry, ok, err := f.mem.Get(context.Background(), "u1", "user_name")
	if err != nil || !ok {
		t.Fatalf("Get(user_name) ok = %v, err %v", ok, err)
	}
	if entry.Value != "Jordan" {
		t.Fatalf("remembered name = %q, want Jordan", entry.Value)
	}
}

func TestProcessTurnEndingPhraseClosesSession(t *testing.T) {
	f := newFixture(t, brain.NewMockClient(), brain.NewMockClient())

	out, err := f.orch.ProcessTurn(context.Background(), TurnInput{
		AudioBase64: audioFor("thanks, goodbye"),
		SessionID:   "s-bye",
	})
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if len(out.History) != 2 {
		t.Fatalf("final turn still returns history, got %d messages", len(out.History))
	}
	if _, ok := f.store.Snapshot("s-bye"); ok {
		t.Fatalf("ending phrase must close the session")
	}
}

func TestGreetingCachesAudio(t *testing.T) {
	f := newFixture(t, brain.NewMockClient(), brain.NewMockClient())

	first, err := f.orch.Greeting(context.Background(), "aria", "u1")
	if err != nil {
		t.Fatalf("Greeting() error = %v", err)
	}
	if first.AIMessage == "" || first.AudioBase64 == "" {
		t.Fatalf("greeting = %q / audio %q", first.AIMessage, first.AudioBase64)
	}

	f.orch.synth = failingSynth{}
	second, err := f.orch.Greeting(context.Background(), "aria", "u1")
	if err != nil {
		t.Fatalf("Greeting() error = %v", err)
	}
	if second.AudioBase64 != first.AudioBase64 {
		t.Fatalf("greeting audio should come from cache")
	}
}

func TestGreetingDegradesWithoutSynth(t *testing.T) {
	f := newFixture(t, brain.NewMockClient(), brain.NewMockClient())
	f.orch.synth = failingSynth{}

	out, err := f.orch.Greeting(context.Background(), "sales", "u1")
	if err != nil {
		t.Fatalf("Greeting() error = %v", err)
	}
	if out.AIMessage == "" {
		t.Fatalf("degraded greeting still needs text")
	}
	if out.AudioBase64 != "" || !out.Degraded {
		t.Fatalf("expected degraded text-only greeting")
	}
}

func TestEndConversation(t *testing.T) {
	f := newFixture(t, brain.NewMockClient(), brain.NewMockClient())

	f.store.GetOrCreate("s1")
	if !f.orch.EndConversation("s1") {
		t.Fatalf("EndConversation() = false, want true")
	}
	if f.orch.EndConversation("s1") {
		t.Fatalf("second EndConversation() = true, want false")
	}
}
