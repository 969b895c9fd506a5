package voice

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/remodely/aria/internal/agent"
	"github.com/remodely/aria/internal/assemble"
	"github.com/remodely/aria/internal/brain"
	"github.com/remodely/aria/internal/classify"
	"github.com/remodely/aria/internal/memory"
	"github.com/remodely/aria/internal/observability"
	"github.com/remodely/aria/internal/session"
	"github.com/remodely/aria/internal/telemetry"
	"github.com/remodely/aria/internal/tools"
)

const (
	fastMaxTokens  = 150
	smartMaxTokens = 400
	chatTemp       = 0.7

	fallbackReply = "Sorry, I didn't catch that. Could you say it again?"
)

// ErrTranscription marks stage-one failures. Later stages degrade
// instead of failing the turn.
var ErrTranscription = fmt.Errorf("transcription failed")

// capabilities that mutate CRM state and therefore invalidate the
// shared snapshot cache.
var writeCapabilities = map[string]struct{}{
	string(tools.CapCreateLead):        {},
	string(tools.CapUpdateLead):        {},
	string(tools.CapAddLeadNote):       {},
	string(tools.CapBookAppointment):   {},
	string(tools.CapCancelAppointment): {},
}

// TurnInput is one recorded utterance plus its conversational context.
type TurnInput struct {
	AudioBase64       string
	SessionID         string
	UserID            string
	AgentID           string
	History           []brain.Message
	AuthenticatedName string
}

// TurnOutput is everything the transport layer needs to answer a turn.
type TurnOutput struct {
	SessionID         string
	UserMessage       string
	AIMessage         string
	AudioBase64       string
	UIAction          *tools.UIAction
	Persona           agent.Persona
	History           []session.Message
	IsBackgroundNoise bool
	IsDevCommand      bool
	CommandID         string
	Degraded          bool
	Metrics           session.TurnMetrics
}

type OrchestratorConfig struct {
	Transcriber Transcriber
	Synthesizer Synthesizer
	FastBrain   brain.Client
	SmartBrain  brain.Client
	Sessions    *session.Store
	Agents      *agent.Registry
	Assembler   *assemble.Assembler
	Executor    *tools.Executor
	Memory      memory.Store
	Metrics     *observability.Metrics
	Window      *observability.TurnStageWindow
	Logs        *telemetry.LogBuffer
	TurnLog     *telemetry.TurnLog
	Commands    *telemetry.CommandQueue
	DataDir     string
	VoiceID     string
}

// Orchestrator runs the three-stage turn pipeline: transcription,
// reasoning, synthesis.
type Orchestrator struct {
	transcriber Transcriber
	synth       Synthesizer
	fast        *brain.Runner
	smart       *brain.Runner
	sessions    *session.Store
	agents      *agent.Registry
	assembler   *assemble.Assembler
	executor    *tools.Executor
	mem         memory.Store
	metrics     *observability.Metrics
	window      *observability.TurnStageWindow
	logs        *telemetry.LogBuffer
	turnLog     *telemetry.TurnLog
	commands    *telemetry.CommandQueue
	dataDir     string
	voiceID     string
	now         func() time.Time

	greetMu    sync.Mutex
	greetAudio map[string]string
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		transcriber: cfg.Transcriber,
		synth:       cfg.Synthesizer,
		fast:        brain.NewRunner(cfg.FastBrain),
		smart:       brain.NewRunner(cfg.SmartBrain),
		sessions:    cfg.Sessions,
		agents:      cfg.Agents,
		assembler:   cfg.Assembler,
		executor:    cfg.Executor,
		mem:         cfg.Memory,
		metrics:     cfg.Metrics,
		window:      cfg.Window,
		logs:        cfg.Logs,
		turnLog:     cfg.TurnLog,
		commands:    cfg.Commands,
		dataDir:     cfg.DataDir,
		voiceID:     cfg.VoiceID,
		now:         time.Now,
		greetAudio:  make(map[string]string),
	}
}

// ProcessTurn runs one utterance through the pipeline. A transcription
// failure aborts the turn with ErrTranscription; synthesis failures
// degrade to a text-only reply.
func (o *Orchestrator) ProcessTurn(ctx context.Context, in TurnInput) (TurnOutput, error) {
	start := o.now()

	transcript, err := o.transcriber.Transcribe(ctx, in.AudioBase64)
	transcriptionMS := o.now().Sub(start).Milliseconds()
	if err != nil {
		o.metrics.ProviderErrors.WithLabelValues("stt", "request_failed").Inc()
		o.metrics.TurnsTotal.WithLabelValues("error").Inc()
		o.logs.AddLog(telemetry.CategoryError, "transcription failed", map[string]any{"error": err.Error()})
		return TurnOutput{}, fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	o.observeStage(observability.StageTranscription, transcriptionMS)

	raw := transcript.Text
	switch result := classify.Classify(raw); result.Kind {
	case classify.KindNoise:
		o.metrics.TurnsTotal.WithLabelValues("noise").Inc()
		o.logs.AddLog(telemetry.CategoryVoice, "background noise filtered", map[string]any{"transcript": raw})
		return TurnOutput{UserMessage: raw, IsBackgroundNoise: true}, nil
	case classify.KindDevCommand:
		return o.handleDevCommand(raw, result.Payload), nil
	case classify.KindLogCommand:
		return o.handleLogCommand(raw, result.Payload), nil
	}

	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	sess, created := o.sessions.GetOrCreate(sessionID)
	if created {
		o.logs.AddLog(telemetry.CategoryConversation, "session started", map[string]any{"sessionId": sessionID})
	}
	o.metrics.ActiveSessions.Set(float64(o.sessions.ActiveCount()))

	selection := o.agents.Select(in.AgentID, raw)
	persona := selection.Persona
	text := selection.CleanedTranscript
	o.sessions.Associate(sessionID, in.UserID, persona.ID)

	if name := classify.ExtractName(text); name != "" {
		err := o.mem.Remember(ctx, memory.Entry{
			UserID:     in.UserID,
			Key:        "user_name",
			Value:      name,
			Category:   "personal",
			Importance: 8,
			SessionID:  sessionID,
			Source:     "conversation",
		})
		if err != nil {
			log.Printf("voice: remember user name: %v", err)
		}
	}

	prompt := o.assembler.Build(ctx, assemble.Input{
		Persona:           persona,
		SessionMessages:   sess.Messages,
		RequestHistory:    in.History,
		Transcript:        text,
		RawTranscript:     raw,
		UserID:            in.UserID,
		AuthenticatedName: in.AuthenticatedName,
		Now:               o.now(),
	})

	plan := tools.PlanFor(text)
	runner, maxTokens := o.fast, fastMaxTokens
	if plan.UseSmartModel {
		runner, maxTokens = o.smart, smartMaxTokens
	}

	req := brain.ChatRequest{
		System:      prompt.System,
		Messages:    append(prompt.History, brain.Message{Role: "user", Content: prompt.UserText}),
		ToolMode:    plan.Mode,
		MaxTokens:   maxTokens,
		Temperature: chatTemp,
	}
	if plan.ExposeTools {
		req.Tools = tools.Definitions(persona.Capabilities)
	}

	scope := tools.Scope{UserID: in.UserID, SessionID: sessionID}
	var (
		uiAction *tools.UIAction
		mutated  bool
	)
	aiStart := o.now()
	outcome, err := runner.Run(ctx, req, func(ctx context.Context, call brain.ToolCall) brain.ToolResult {
		result := o.executor.Execute(ctx, scope, call)
		label := "ok"
		if result.IsError {
			label = "error"
		}
		o.metrics.ToolCalls.WithLabelValues(call.Name, label).Inc()
		if action := tools.ActionFor(call, result); action != nil {
			uiAction = action
		}
		if _, writes := writeCapabilities[call.Name]; writes && !result.IsError {
			mutated = true
		}
		return result
	})
	aiMS := o.now().Sub(aiStart).Milliseconds()
	if err != nil {
		o.metrics.ProviderErrors.WithLabelValues("brain", "request_failed").Inc()
		o.metrics.TurnsTotal.WithLabelValues("error").Inc()
		o.logs.AddLog(telemetry.CategoryError, "reasoning failed", map[string]any{"sessionId": sessionID, "error": err.Error()})
		return TurnOutput{}, fmt.Errorf("reasoning failed: %w", err)
	}
	o.observeStage(observability.StageAI, aiMS)
	if mutated {
		o.assembler.InvalidateCRM()
	}

	reply := strings.TrimSpace(outcome.Text)
	if reply == "" {
		reply = fallbackReply
	}

	o.sessions.AppendMessage(sessionID, "user", text)
	o.sessions.AppendMessage(sessionID, "assistant", reply)

	voiceStart := o.now()
	audio, degraded := o.synthesize(ctx, reply, persona, in.UserID)
	voiceMS := o.now().Sub(voiceStart).Milliseconds()
	o.observeStage(observability.StageVoice, voiceMS)

	totalMS := o.now().Sub(start).Milliseconds()
	o.observeStage(observability.StageTurnTotal, totalMS)

	tm := session.TurnMetrics{
		TranscriptionMS: transcriptionMS,
		AIMS:            aiMS,
		VoiceMS:         voiceMS,
		TotalMS:         totalMS,
	}
	o.sessions.AppendMetrics(sessionID, tm)
	o.recordTurn(sessionID, persona.ID, text, reply, tm, degraded)

	snap, _ := o.sessions.Snapshot(sessionID)

	if classify.IsConversationEnding(text) {
		o.sessions.End(sessionID)
		o.metrics.ActiveSessions.Set(float64(o.sessions.ActiveCount()))
	}

	outLabel := "ok"
	if degraded {
		outLabel = "degraded"
	}
	o.metrics.TurnsTotal.WithLabelValues(outLabel).Inc()

	return TurnOutput{
		SessionID:   sessionID,
		UserMessage: text,
		AIMessage:   reply,
		AudioBase64: audio,
		UIAction:    uiAction,
		Persona:     persona,
		History:     snap.Messages,
		Degraded:    degraded,
		Metrics:     tm,
	}, nil
}

// handleDevCommand queues a relayed command for the external runner
// and acknowledges it without voicing the reply.
func (o *Orchestrator) handleDevCommand(raw, command string) TurnOutput {
	commandID := fmt.Sprintf("cmd_%d", o.now().UnixMilli())
	if err := o.commands.Append(telemetry.CommandRecord{
		ID:      commandID,
		Kind:    telemetry.CommandKindDev,
		Command: command,
	}); err != nil {
		log.Printf("voice: queue dev command: %v", err)
	}
	o.metrics.TurnsTotal.WithLabelValues("dev_command").Inc()
	o.logs.AddLog(telemetry.CategoryVoice, "dev command queued", map[string]any{
		"commandId": commandID,
		"command":   command,
	})
	return TurnOutput{
		UserMessage:  raw,
		AIMessage:    fmt.Sprintf("Command sent to Copilot: %q", command),
		IsDevCommand: true,
		CommandID:    commandID,
	}
}

// handleLogCommand captures a diagnostic snippet carrying the request,
// persists it, and queues the improvement request for the external
// runner. The confirmation stays unvoiced.
func (o *Orchestrator) handleLogCommand(raw, request string) TurnOutput {
	if strings.TrimSpace(request) == "" {
		request = classify.DefaultImprovementRequest
	}
	o.logs.AddLog(telemetry.CategoryVoice, "improvement request", map[string]any{"request": request})
	snippet := o.logs.CaptureSnippet(request, "", 0)
	path := filepath.Join(o.dataDir, snippet.ID+".json")
	if err := o.logs.ExportSnippet(path, snippet); err != nil {
		log.Printf("voice: export log snippet: %v", err)
	}
	if err := o.commands.Append(telemetry.CommandRecord{
		ID:      snippet.ID,
		Kind:    telemetry.CommandKindImprovement,
		Command: "Review recent voice interaction logs and " + request,
	}); err != nil {
		log.Printf("voice: queue improvement command: %v", err)
	}
	o.metrics.TurnsTotal.WithLabelValues("log_command").Inc()
	o.logs.AddLog(telemetry.CategoryVoice, "log snippet captured", map[string]any{
		"snippetId": snippet.ID,
		"request":   request,
	})
	return TurnOutput{
		UserMessage: raw,
		AIMessage:   "Got it. I captured the recent logs for review.",
		CommandID:   snippet.ID,
	}
}

// Greeting returns the persona's opening line, synthesizing its audio
// once per voice and reusing it afterwards. Synthesis failures degrade
// to text only.
func (o *Orchestrator) Greeting(ctx context.Context, agentID, userID string) (TurnOutput, error) {
	persona, ok := o.agents.Get(agentID)
	if !ok {
		persona = o.agents.Default()
	}

	name := ""
	if profile := o.assembler.Profile(ctx, userID); profile.FirstName != "" {
		name = profile.FirstName
	}
	text := greetingText(persona, name)
	voiceID := o.voiceFor(ctx, persona, userID)

	cacheKey := voiceID + "|" + text
	o.greetMu.Lock()
	audio, cached := o.greetAudio[cacheKey]
	o.greetMu.Unlock()
	if !cached {
		var err error
		audio, err = o.synth.Synthesize(ctx, text, voiceID, synthSettings(persona))
		if err != nil {
			o.metrics.ProviderErrors.WithLabelValues("tts", "request_failed").Inc()
			log.Printf("voice: greeting synthesis: %v", err)
			audio = ""
		} else {
			o.greetMu.Lock()
			o.greetAudio[cacheKey] = audio
			o.greetMu.Unlock()
		}
	}

	return TurnOutput{
		AIMessage:   text,
		AudioBase64: audio,
		Persona:     persona,
		Degraded:    audio == "",
	}, nil
}

// EndConversation closes a session explicitly. It reports whether the
// session existed.
func (o *Orchestrator) EndConversation(sessionID string) bool {
	ended := o.sessions.End(sessionID)
	o.metrics.ActiveSessions.Set(float64(o.sessions.ActiveCount()))
	return ended
}

func (o *Orchestrator) synthesize(ctx context.Context, reply string, persona agent.Persona, userID string) (string, bool) {
	voiceID := o.voiceFor(ctx, persona, userID)
	audio, err := o.synth.Synthesize(ctx, reply, voiceID, synthSettings(persona))
	if err != nil {
		o.metrics.ProviderErrors.WithLabelValues("tts", "request_failed").Inc()
		o.logs.AddLog(telemetry.CategoryError, "synthesis failed, degrading to text", map[string]any{"error": err.Error()})
		return "", true
	}
	return audio, false
}

// voiceFor resolves the voice in priority order: profile override,
// persona voice, configured default.
func (o *Orchestrator) voiceFor(ctx context.Context, persona agent.Persona, userID string) string {
	if profile := o.assembler.Profile(ctx, userID); profile.VoiceID != "" {
		return profile.VoiceID
	}
	if persona.Voice != "" {
		return persona.Voice
	}
	return o.voiceID
}

func synthSettings(persona agent.Persona) SynthesisSettings {
	return SynthesisSettings{Speed: persona.VoiceSettings.Speed}
}

func greetingText(persona agent.Persona, firstName string) string {
	if firstName != "" {
		return fmt.Sprintf("Hey %s! %s here. What can I do for you?", firstName, persona.Name)
	}
	return fmt.Sprintf("Hey! %s here. What can I do for you?", persona.Name)
}

func (o *Orchestrator) observeStage(stage string, ms int64) {
	o.metrics.ObserveStage(stage, time.Duration(ms)*time.Millisecond)
	o.window.Observe(stage, time.Duration(ms)*time.Millisecond)
}

func (o *Orchestrator) recordTurn(sessionID, agentID, userMsg, aiMsg string, tm session.TurnMetrics, degraded bool) {
	record := telemetry.TurnRecord{
		Timestamp:       o.now(),
		SessionID:       sessionID,
		AgentID:         agentID,
		UserMessage:     userMsg,
		AIMessage:       aiMsg,
		TranscriptionMS: tm.TranscriptionMS,
		AIMS:            tm.AIMS,
		VoiceMS:         tm.VoiceMS,
		TotalMS:         tm.TotalMS,
	}
	if degraded {
		record.Error = "synthesis degraded"
	}
	if err := o.turnLog.Append(record); err != nil {
		log.Printf("voice: append turn record: %v", err)
	}
	o.logs.AddLog(telemetry.CategoryPerformance, "turn processed", map[string]any{
		"sessionId":       sessionID,
		"transcriptionMs": tm.TranscriptionMS,
		"aiMs":            tm.AIMS,
		"voiceMs":         tm.VoiceMS,
		"totalMs":         tm.TotalMS,
	})
}
