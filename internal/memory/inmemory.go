package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process memory store for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string][]Entry)}
}

func (s *InMemoryStore) Remember(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Importance = clampImportance(entry.Importance)

	arr := s.entries[entry.UserID]
	for i := range arr {
		if arr[i].Key == entry.Key {
			entry.ID = arr[i].ID
			arr[i] = entry
			return nil
		}
	}
	s.entries[entry.UserID] = append(arr, entry)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, userID, key string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries[userID] {
		if e.Key == key {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

func (s *InMemoryStore) Recall(_ context.Context, userID, query string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scoreRecall(s.entries[userID], query, limit), nil
}

func (s *InMemoryStore) WithPrefix(_ context.Context, userID, prefix string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries[userID] {
		if len(e.Key) >= len(prefix) && e.Key[:len(prefix)] == prefix {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := Stats{Categories: make(map[string]int)}
	for _, arr := range s.entries {
		if len(arr) == 0 {
			continue
		}
		stats.Users++
		stats.TotalEntries += len(arr)
		for _, e := range arr {
			stats.Categories[e.Category]++
		}
	}
	return stats, nil
}

func (s *InMemoryStore) Close() error { return nil }
