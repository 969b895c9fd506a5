// Package session tracks active conversations and their inactivity
// lifecycle. A session that stays quiet past the timeout is ended and
// analyzed exactly once, whether by timer or by explicit End.
package session

import (
	"log"
	"sync"
	"time"
)

// Message is one conversational turn inside a session.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// TurnMetrics records the stage timings of one processed turn.
type TurnMetrics struct {
	TranscriptionMS int64 `json:"transcription_ms"`
	AIMS            int64 `json:"ai_ms"`
	VoiceMS         int64 `json:"voice_ms"`
	TotalMS         int64 `json:"total_ms"`
}

// Session is a point-in-time snapshot of one conversation.
type Session struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id,omitempty"`
	AgentID      string        `json:"agent_id,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	LastActivity time.Time     `json:"last_activity"`
	Messages     []Message     `json:"messages"`
	Metrics      []TurnMetrics `json:"metrics,omitempty"`
	TurnCount    int           `json:"turn_count"`
}

// Aggregate is the per-session metric summary handed to analysis.
type Aggregate struct {
	SessionID            string
	Turns                int
	Duration             time.Duration
	MeanTranscriptionMS  int64
	MeanAIMS             int64
	MeanVoiceMS          int64
	MeanTotalMS          int64
	EndedByTimeout       bool
}

// AnalysisFunc receives the final snapshot and aggregate after a session
// ends. It runs on its own goroutine; panics are contained.
type AnalysisFunc func(final Session, agg Aggregate)

type entry struct {
	session Session
	timer   *time.Timer
}

// Store owns all live sessions.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	timeout time.Duration
	analyze AnalysisFunc
	now     func() time.Time
}

func NewStore(timeout time.Duration, analyze AnalysisFunc) *Store {
	return &Store{
		entries: make(map[string]*entry),
		timeout: timeout,
		analyze: analyze,
		now:     time.Now,
	}
}

// GetOrCreate returns a snapshot of the session, creating it on miss,
// and rearms its inactivity timer.
func (s *Store) GetOrCreate(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		now := s.now()
		e = &entry{session: Session{ID: id, StartedAt: now, LastActivity: now}}
		e.timer = time.AfterFunc(s.timeout, func() { s.expire(id) })
		s.entries[id] = e
		return cloneSession(e.session), true
	}
	s.touchLocked(e)
	return cloneSession(e.session), false
}

// Associate records the caller and persona behind the session.
func (s *Store) Associate(id, userID, agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		if userID != "" {
			e.session.UserID = userID
		}
		if agentID != "" {
			e.session.AgentID = agentID
		}
	}
}

// AppendMessage appends one turn and rearms the inactivity timer.
// User messages advance the turn count.
func (s *Store) AppendMessage(id, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	e.session.Messages = append(e.session.Messages, Message{Role: role, Content: content, At: s.now()})
	if role == "user" {
		e.session.TurnCount++
	}
	s.touchLocked(e)
}

// AppendMetrics records one turn's stage timings.
func (s *Store) AppendMetrics(id string, m TurnMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		e.session.Metrics = append(e.session.Metrics, m)
	}
}

// Snapshot returns a copy of the session if it is live.
func (s *Store) Snapshot(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return Session{}, false
	}
	return cloneSession(e.session), true
}

// ActiveCount reports the number of live sessions.
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// End finishes the session now. Safe to call repeatedly; only the first
// call triggers analysis.
func (s *Store) End(id string) bool {
	return s.finish(id, false)
}

func (s *Store) expire(id string) {
	s.finish(id, true)
}

func (s *Store) finish(id string, byTimeout bool) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.entries, id)
	e.timer.Stop()
	final := cloneSession(e.session)
	s.mu.Unlock()

	if s.analyze != nil && final.TurnCount >= 1 {
		agg := aggregate(final, byTimeout)
		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					log.Printf("session analysis panicked: session=%s %v", final.ID, rec)
				}
			}()
			s.analyze(final, agg)
		}()
	}
	return true
}

func (s *Store) touchLocked(e *entry) {
	e.session.LastActivity = s.now()
	e.timer.Reset(s.timeout)
}

func aggregate(final Session, byTimeout bool) Aggregate {
	agg := Aggregate{
		SessionID:      final.ID,
		Turns:          final.TurnCount,
		Duration:       final.LastActivity.Sub(final.StartedAt),
		EndedByTimeout: byTimeout,
	}
	if n := int64(len(final.Metrics)); n > 0 {
		var t, a, v, tot int64
		for _, m := range final.Metrics {
			t += m.TranscriptionMS
			a += m.AIMS
			v += m.VoiceMS
			tot += m.TotalMS
		}
		agg.MeanTranscriptionMS = t / n
		agg.MeanAIMS = a / n
		agg.MeanVoiceMS = v / n
		agg.MeanTotalMS = tot / n
	}
	return agg
}

func cloneSession(src Session) Session {
	out := src
	out.Messages = append([]Message(nil), src.Messages...)
	out.Metrics = append([]TurnMetrics(nil), src.Metrics...)
	return out
}
