// Package telemetry captures runtime diagnostics: a ring buffer of
// categorized log events, an append-only per-day turn log, and the
// conversation trainer that turns finished sessions into improvement
// suggestions. Nothing here ever blocks live turn processing.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	bufferMax   = 1000
	categoryMax = 200
	exportMax   = 500
)

// Log categories. Unknown categories land only in the main buffer.
const (
	CategoryVoice        = "voice"
	CategoryError        = "error"
	CategoryPerformance  = "performance"
	CategoryConversation = "conversation"
)

// LogEntry is one captured event.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Snippet is a named capture of recent logs, used by the improvement
// command to attach context.
type Snippet struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	CapturedAt  time.Time  `json:"captured_at"`
	Logs        []LogEntry `json:"logs"`
}

// LogBuffer is a bounded in-memory ring of recent log events with
// per-category views.
type LogBuffer struct {
	mu         sync.Mutex
	logs       []LogEntry
	categories map[string][]LogEntry
	now        func() time.Time
}

func NewLogBuffer() *LogBuffer {
	return &LogBuffer{
		categories: map[string][]LogEntry{
			CategoryVoice:        nil,
			CategoryError:        nil,
			CategoryPerformance:  nil,
			CategoryConversation: nil,
		},
		now: time.Now,
	}
}

// AddLog records one event, evicting the oldest once full.
func (b *LogBuffer) AddLog(category, message string, metadata map[string]any) LogEntry {
	entry := LogEntry{Timestamp: b.now(), Category: category, Message: message, Metadata: metadata}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.logs = append(b.logs, entry)
	if len(b.logs) > bufferMax {
		b.logs = b.logs[1:]
	}
	if _, known := b.categories[category]; known {
		arr := append(b.categories[category], entry)
		if len(arr) > categoryMax {
			arr = arr[1:]
		}
		b.categories[category] = arr
	}
	return entry
}

// RecentLogs returns the newest entries, optionally category-scoped.
func (b *LogBuffer) RecentLogs(category string, limit int) []LogEntry {
	if limit <= 0 {
		limit = 50
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	src := b.logs
	if category != "" {
		if arr, ok := b.categories[category]; ok {
			src = arr
		}
	}
	if len(src) > limit {
		src = src[len(src)-limit:]
	}
	out := make([]LogEntry, len(src))
	copy(out, src)
	return out
}

// CaptureSnippet freezes recent logs under a description.
func (b *LogBuffer) CaptureSnippet(description, category string, limit int) Snippet {
	if limit <= 0 {
		limit = 20
	}
	return Snippet{
		ID:          fmt.Sprintf("snippet_%d", b.now().UnixMilli()),
		Description: description,
		Category:    category,
		CapturedAt:  b.now(),
		Logs:        b.RecentLogs(category, limit),
	}
}

// ExportSnippet writes a captured snippet, description included, as
// indented JSON.
func (b *LogBuffer) ExportSnippet(path string, s Snippet) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snippet: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snippet export: %w", err)
	}
	return nil
}

// ExportToFile writes the newest entries as indented JSON.
func (b *LogBuffer) ExportToFile(path, category string) error {
	logs := b.RecentLogs(category, exportMax)
	data, err := json.MarshalIndent(logs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode logs: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write log export: %w", err)
	}
	return nil
}
