// Package knowledge provides best-effort reference lookups for prompt
// assembly. Results enrich the prompt when present; failures never block
// a turn.
package knowledge

import (
	"context"
	"strings"
	"sync"
)

// Document is one reference snippet.
type Document struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Tags    string `json:"tags,omitempty"`
}

// Searcher finds documents relevant to a query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Document, error)
}

// StaticSearcher serves a fixed document set with substring matching.
type StaticSearcher struct {
	mu   sync.RWMutex
	docs []Document
}

func NewStaticSearcher(docs ...Document) *StaticSearcher {
	return &StaticSearcher{docs: docs}
}

func (s *StaticSearcher) Add(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
}

func (s *StaticSearcher) Search(_ context.Context, query string, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	var out []Document
	for _, d := range s.docs {
		haystack := strings.ToLower(d.Title + " " + d.Content + " " + d.Tags)
		for _, t := range terms {
			if len(t) > 2 && strings.Contains(haystack, t) {
				out = append(out, d)
				break
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
