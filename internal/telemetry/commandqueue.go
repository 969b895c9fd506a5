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

// Command kinds.
const (
	CommandKindDev         = "dev"
	CommandKindImprovement = "improvement"
)

// CommandRecord is one queued command for an external consumer to
// pick up and execute.
type CommandRecord struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Command   string    `json:"command"`
	Timestamp time.Time `json:"timestamp"`
}

// CommandQueue appends queued commands to a JSON Lines file so they
// survive restarts and are readable by external tooling.
type CommandQueue struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

func NewCommandQueue(dir string) (*CommandQueue, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create command queue dir: %w", err)
	}
	return &CommandQueue{dir: dir, now: time.Now}, nil
}

func (q *CommandQueue) file() string {
	return filepath.Join(q.dir, "commands.jsonl")
}

// Append writes one record to the queue file.
func (q *CommandQueue) Append(record CommandRecord) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = q.now()
	}
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode command record: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	f, err := os.OpenFile(q.file(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open command queue: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append command record: %w", err)
	}
	return nil
}

// Pending returns all queued records in order.
func (q *CommandQueue) Pending() ([]CommandRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	f, err := os.Open(q.file())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open command queue: %w", err)
	}
	defer f.Close()

	var out []CommandRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var r CommandRecord
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, scanner.Err()
}
