package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TurnRecord is one processed turn as written to the daily log.
type TurnRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	SessionID       string    `json:"session_id"`
	AgentID         string    `json:"agent_id,omitempty"`
	UserMessage     string    `json:"user_message"`
	AIMessage       string    `json:"ai_message"`
	TranscriptionMS int64     `json:"transcription_ms"`
	AIMS            int64     `json:"ai_ms"`
	VoiceMS         int64     `json:"voice_ms"`
	TotalMS         int64     `json:"total_ms"`
	Error           string    `json:"error,omitempty"`
}

// DailySummary aggregates one day of turn records.
type DailySummary struct {
	Date               string `json:"date"`
	TotalTurns         int    `json:"total_turns"`
	AvgTranscriptionMS int64  `json:"avg_transcription_ms"`
	AvgAIMS            int64  `json:"avg_ai_ms"`
	AvgVoiceMS         int64  `json:"avg_voice_ms"`
	AvgTotalMS         int64  `json:"avg_total_ms"`
	ErrorCount         int    `json:"error_count"`
	SlowCount          int    `json:"slow_count"`
}

// slowTurnMS marks a turn as slow end to end.
const slowTurnMS = 5000

// TurnLog appends turn records to per-day JSON Lines files.
type TurnLog struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

func NewTurnLog(dir string) (*TurnLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create turn log dir: %w", err)
	}
	return &TurnLog{dir: dir, now: time.Now}, nil
}

func (l *TurnLog) fileFor(day time.Time) string {
	return filepath.Join(l.dir, "conversations-"+day.Format("2006-01-02")+".jsonl")
}

// Append writes one record to today's file.
func (l *TurnLog) Append(record TurnRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = l.now()
	}
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode turn record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.fileFor(record.Timestamp), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open turn log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append turn record: %w", err)
	}
	return nil
}

// Today returns today's records in order.
func (l *TurnLog) Today() ([]TurnRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.fileFor(l.now()))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open turn log: %w", err)
	}
	defer f.Close()

	var out []TurnRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var r TurnRecord
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, scanner.Err()
}

// Summarize aggregates today's records.
func (l *TurnLog) Summarize() (DailySummary, error) {
	records, err := l.Today()
	if err != nil {
		return DailySummary{}, err
	}
	summary := DailySummary{Date: l.now().Format("2006-01-02"), TotalTurns: len(records)}
	if len(records) == 0 {
		return summary, nil
	}

	var t, a, v, tot int64
	for _, r := range records {
		t += r.TranscriptionMS
		a += r.AIMS
		v += r.VoiceMS
		tot += r.TotalMS
		if r.Error != "" {
			summary.ErrorCount++
		}
		if r.TotalMS > slowTurnMS {
			summary.SlowCount++
		}
	}
	n := int64(len(records))
	summary.AvgTranscriptionMS = t / n
	summary.AvgAIMS = a / n
	summary.AvgVoiceMS = v / n
	summary.AvgTotalMS = tot / n
	return summary, nil
}
