package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/remodely/aria/internal/agent"
	"github.com/remodely/aria/internal/brain"
	"github.com/remodely/aria/internal/config"
	"github.com/remodely/aria/internal/memory"
	"github.com/remodely/aria/internal/observability"
	"github.com/remodely/aria/internal/session"
	"github.com/remodely/aria/internal/telemetry"
	"github.com/remodely/aria/internal/voice"
)

// Orchestrator is the turn pipeline as the transport layer sees it.
type Orchestrator interface {
	ProcessTurn(ctx context.Context, in voice.TurnInput) (voice.TurnOutput, error)
	Greeting(ctx context.Context, agentID, userID string) (voice.TurnOutput, error)
	EndConversation(sessionID string) bool
}

type Server struct {
	cfg          config.Config
	orchestrator Orchestrator
	agents       *agent.Registry
	sessions     *session.Store
	mem          memory.Store
	trainer      *telemetry.Trainer
	turnLog      *telemetry.TurnLog
	window       *observability.TurnStageWindow
}

func New(
	cfg config.Config,
	orchestrator Orchestrator,
	agents *agent.Registry,
	sessions *session.Store,
	mem memory.Store,
	trainer *telemetry.Trainer,
	turnLog *telemetry.TurnLog,
	window *observability.TurnStageWindow,
) *Server {
	return &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		agents:       agents,
		sessions:     sessions,
		mem:          mem,
		trainer:      trainer,
		turnLog:      turnLog,
		window:       window,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/voice/process", s.handleProcess)
	r.Post("/v1/voice/greeting", s.handleGreeting)
	r.Post("/v1/voice/end-conversation", s.handleEndConversation)
	r.Post("/v1/voice/set-goal", s.handleSetGoal)

	r.Get("/v1/voice/agents", s.handleListAgents)
	r.Get("/v1/voice/context/{sessionID}", s.handleContext)
	r.Get("/v1/voice/analytics", s.handleAnalytics)
	r.Get("/v1/voice/training-stats", s.handleTrainingStats)
	r.Get("/v1/voice/memory-stats", s.handleMemoryStats)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type processRequest struct {
	AudioBase64         string           `json:"audioBase64"`
	SessionID           string           `json:"sessionId"`
	UserID              string           `json:"userId"`
	AgentID             string           `json:"agentId"`
	AuthenticatedName   string           `json:"authenticatedName"`
	ConversationHistory []historyMessage `json:"conversationHistory"`
}

type agentSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon,omitempty"`
	Personality string `json:"personality,omitempty"`
}

type processResponse struct {
	Success             bool                `json:"success"`
	SessionID           string              `json:"sessionId,omitempty"`
	UserMessage         string              `json:"userMessage,omitempty"`
	AIMessage           string              `json:"aiMessage,omitempty"`
	AudioBase64         string              `json:"audioBase64,omitempty"`
	UIAction            any                 `json:"uiAction,omitempty"`
	Agent               *agentSummary       `json:"agent,omitempty"`
	ConversationHistory []session.Message   `json:"conversationHistory,omitempty"`
	IsBackgroundNoise   bool                `json:"isBackgroundNoise,omitempty"`
	IsDevCommand        bool                `json:"isDevCommand,omitempty"`
	CommandID           string              `json:"commandId,omitempty"`
	Degraded            bool                `json:"degraded,omitempty"`
	Metrics             session.TurnMetrics `json:"metrics"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.AudioBase64) == "" {
		respondError(w, http.StatusBadRequest, "missing_audio", "audioBase64 is required")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}

	in := voice.TurnInput{
		AudioBase64:       req.AudioBase64,
		SessionID:         req.SessionID,
		UserID:            req.UserID,
		AgentID:           req.AgentID,
		AuthenticatedName: req.AuthenticatedName,
	}
	for _, m := range req.ConversationHistory {
		in.History = append(in.History, brain.Message{Role: m.Role, Content: m.Content})
	}

	out, err := s.orchestrator.ProcessTurn(r.Context(), in)
	if err != nil {
		if errors.Is(err, voice.ErrTranscription) {
			respondError(w, http.StatusInternalServerError, "transcription_failed", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "processing_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, toProcessResponse(out))
}

type greetingRequest struct {
	AgentID string `json:"agentId"`
	UserID  string `json:"userId"`
}

func (s *Server) handleGreeting(w http.ResponseWriter, r *http.Request) {
	var req greetingRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.AgentID) == "" {
		req.AgentID = s.cfg.DefaultAgentID
	}
	out, err := s.orchestrator.Greeting(r.Context(), req.AgentID, req.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "greeting_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, toProcessResponse(out))
}

type endRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handleEndConversation(w http.ResponseWriter, r *http.Request) {
	var req endRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "sessionId is required")
		return
	}
	ended := s.orchestrator.EndConversation(req.SessionID)
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "ended": ended})
}

type setGoalRequest struct {
	SessionID string `json:"sessionId"`
	Goal      string `json:"goal"`
	UserID    string `json:"userId"`
}

// handleSetGoal stores a conversation goal the prompt assembler folds
// into later turns of the session.
func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	var req setGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "sessionId is required")
		return
	}
	if strings.TrimSpace(req.Goal) == "" {
		respondError(w, http.StatusBadRequest, "missing_goal", "goal is required")
		return
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}
	err := s.mem.Remember(r.Context(), memory.Entry{
		UserID:     req.UserID,
		Key:        "conversation_goal_" + req.SessionID,
		Value:      req.Goal,
		Category:   "context",
		Importance: 10,
		SessionID:  req.SessionID,
		Source:     "goal_setting",
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "set_goal_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Goal set: " + req.Goal,
	})
}

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	personas := s.agents.All()
	out := make([]agentSummary, 0, len(personas))
	for _, p := range personas {
		out = append(out, agentSummary{ID: p.ID, Name: p.Name, Icon: p.Icon, Personality: p.Personality})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"agents":  out,
		"default": s.agents.Default().ID,
	})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, ok := s.sessions.Snapshot(id)
	if !ok {
		respondError(w, http.StatusNotFound, "session_not_found", "no active session with that id")
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, _ *http.Request) {
	summary, err := s.turnLog.Summarize()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "analytics_failed", err.Error())
		return
	}
	suggestions, err := s.trainer.SuggestImprovements()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "analytics_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"today":        summary,
		"stages":       s.window.Snapshot(),
		"suggestions":  suggestions,
	})
}

func (s *Server) handleTrainingStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.trainer.Stats())
}

func (s *Server) handleMemoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.mem.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "memory_stats_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func toProcessResponse(out voice.TurnOutput) processResponse {
	resp := processResponse{
		Success:             true,
		SessionID:           out.SessionID,
		UserMessage:         out.UserMessage,
		AIMessage:           out.AIMessage,
		AudioBase64:         out.AudioBase64,
		ConversationHistory: out.History,
		IsBackgroundNoise:   out.IsBackgroundNoise,
		IsDevCommand:        out.IsDevCommand,
		CommandID:           out.CommandID,
		Degraded:            out.Degraded,
		Metrics:             out.Metrics,
	}
	if out.UIAction != nil {
		resp.UIAction = out.UIAction
	}
	if out.Persona.ID != "" {
		resp.Agent = &agentSummary{
			ID:          out.Persona.ID,
			Name:        out.Persona.Name,
			Icon:        out.Persona.Icon,
			Personality: out.Persona.Personality,
		}
	}
	return resp
}
