package app

import (
	"context"
	"fmt"

	"github.com/remodely/aria/internal/agent"
	"github.com/remodely/aria/internal/assemble"
	"github.com/remodely/aria/internal/config"
	"github.com/remodely/aria/internal/crm"
	"github.com/remodely/aria/internal/httpapi"
	"github.com/remodely/aria/internal/knowledge"
	"github.com/remodely/aria/internal/memory"
	"github.com/remodely/aria/internal/observability"
	"github.com/remodely/aria/internal/session"
	"github.com/remodely/aria/internal/telemetry"
	"github.com/remodely/aria/internal/tools"
	"github.com/remodely/aria/internal/voice"
)

type ProviderInfo struct {
	Brain       string
	BrainDetail string
	Voice       string
	VoiceDetail string
}

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.Store
	Orchestrator *voice.Orchestrator
	Metrics      *observability.Metrics
	Providers    ProviderInfo

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	window := observability.NewTurnStageWindow(0)

	memoryStore, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("memory store init failed: %w", err)
	}

	repos := crm.NewInMemoryRepositories().Bundle()
	search := knowledge.NewStaticSearcher(builtinKnowledge()...)

	brainSetup, err := resolveBrain(cfg)
	if err != nil {
		_ = memoryStore.Close()
		return nil, err
	}
	voiceSetup := resolveVoice(cfg)

	logs := telemetry.NewLogBuffer()
	turnLog, err := telemetry.NewTurnLog(cfg.TelemetryDataDir)
	if err != nil {
		_ = memoryStore.Close()
		return nil, fmt.Errorf("turn log init failed: %w", err)
	}
	commands, err := telemetry.NewCommandQueue(cfg.TelemetryDataDir)
	if err != nil {
		_ = memoryStore.Close()
		return nil, fmt.Errorf("command queue init failed: %w", err)
	}
	trainer, err := telemetry.NewTrainer(cfg.TelemetryDataDir, brainSetup.fast, turnLog)
	if err != nil {
		_ = memoryStore.Close()
		return nil, fmt.Errorf("trainer init failed: %w", err)
	}

	var sessions *session.Store
	sessions = session.NewStore(cfg.SessionInactivityTimeout, func(final session.Session, agg session.Aggregate) {
		trainer.AnalyzeConversation(context.Background(), final, agg)
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	agents := agent.NewRegistry(cfg.DefaultAgentID, agent.BuiltinPersonas())
	assembler := assemble.New(cfg.CacheTTL, repos, memoryStore, search, cfg.HistoryWindow, cfg.KnowledgeLimit)
	executor := tools.NewExecutor(repos, memoryStore, search, tools.LogMessenger{})

	orchestrator := voice.NewOrchestrator(voice.OrchestratorConfig{
		Transcriber: voiceSetup.transcriber,
		Synthesizer: voiceSetup.synthesizer,
		FastBrain:   brainSetup.fast,
		SmartBrain:  brainSetup.smart,
		Sessions:    sessions,
		Agents:      agents,
		Assembler:   assembler,
		Executor:    executor,
		Memory:      memoryStore,
		Metrics:     metrics,
		Window:      window,
		Logs:        logs,
		TurnLog:     turnLog,
		Commands:    commands,
		DataDir:     cfg.TelemetryDataDir,
		VoiceID:     cfg.ElevenLabsVoiceID,
	})

	api := httpapi.New(cfg, orchestrator, agents, sessions, memoryStore, trainer, turnLog, window)

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Sessions:     sessions,
		Orchestrator: orchestrator,
		Metrics:      metrics,
		Providers: ProviderInfo{
			Brain:       brainSetup.resolved,
			BrainDetail: brainSetup.detail,
			Voice:       voiceSetup.resolved,
			VoiceDetail: voiceSetup.detail,
		},
		Cleanup: memoryStore.Close,
	}, nil
}

// builtinKnowledge seeds the contractor-facing reference snippets the
// prompt assembler can quote from.
func builtinKnowledge() []knowledge.Document {
	return []knowledge.Document{
		{
			Title:   "Estimate basics",
			Content: "Estimates should list labor, materials and a validity window. A typical kitchen remodel estimate is valid for 30 days.",
			Tags:    "estimate quote pricing",
		},
		{
			Title:   "Lead follow-up",
			Content: "New leads should get a first call within 24 hours. Hot leads get a same-day follow-up and an appointment offer.",
			Tags:    "lead follow-up",
		},
		{
			Title:   "Appointment windows",
			Content: "Site visits are booked in two-hour windows between 8am and 6pm. Confirm the address the day before.",
			Tags:    "appointment scheduling",
		},
	}
}
