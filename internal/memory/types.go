package memory

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Entry is one long-term fact about a user. Entries are upserted by
// (user_id, key) so repeated writes refine rather than duplicate.
type Entry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	Category   string    `json:"category"`
	Importance int       `json:"importance"`
	SessionID  string    `json:"session_id,omitempty"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stats summarizes the store for the diagnostics endpoint.
type Stats struct {
	TotalEntries int            `json:"total_entries"`
	Users        int            `json:"users"`
	Categories   map[string]int `json:"categories"`
}

// Store persists and retrieves long-term user memory.
type Store interface {
	Remember(ctx context.Context, entry Entry) error
	Get(ctx context.Context, userID, key string) (Entry, bool, error)
	Recall(ctx context.Context, userID, query string, limit int) ([]Entry, error)
	WithPrefix(ctx context.Context, userID, prefix string) ([]Entry, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// clampImportance keeps the ranking signal in its 0-10 range.
func clampImportance(v int) int {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// recallTerms splits a query into lowercase terms worth matching on.
func recallTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?'\"")
		if len(f) > 2 {
			terms = append(terms, f)
		}
	}
	return terms
}

// scoreRecall ranks entries by term overlap with the query. Importance
// nudges the ordering but never excludes a matching entry.
func scoreRecall(entries []Entry, query string, limit int) []Entry {
	terms := recallTerms(query)
	if len(terms) == 0 {
		return nil
	}

	type scored struct {
		entry Entry
		score float64
	}
	var matched []scored
	for _, e := range entries {
		haystack := strings.ToLower(e.Key + " " + e.Value + " " + e.Category)
		overlap := 0
		for _, t := range terms {
			if strings.Contains(haystack, t) {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		matched = append(matched, scored{
			entry: e,
			score: float64(overlap) + float64(e.Importance)/10,
		})
	}

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].score > matched[j].score })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]Entry, len(matched))
	for i, m := range matched {
		out[i] = m.entry
	}
	return out
}
