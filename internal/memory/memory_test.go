package memory

import (
	"context"
	"testing"
)

func TestRememberUpsertsByKey(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	if err := store.Remember(ctx, Entry{UserID: "u1", Key: "user_name", Value: "Josh", Importance: 8}); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if err := store.Remember(ctx, Entry{UserID: "u1", Key: "user_name", Value: "Joshua", Importance: 9}); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}

	got, ok, err := store.Get(ctx, "u1", "user_name")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want entry")
	}
	if got.Value != "Joshua" {
		t.Fatalf("Get() value = %q, want Joshua", got.Value)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalEntries != 1 || stats.Users != 1 {
		t.Fatalf("Stats() = %+v, want one entry for one user", stats)
	}
}

func TestRememberClampsImportance(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	if err := store.Remember(ctx, Entry{UserID: "u1", Key: "k", Value: "v", Importance: 42}); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	got, _, err := store.Get(ctx, "u1", "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Importance != 10 {
		t.Fatalf("Importance = %d, want clamped to 10", got.Importance)
	}
}

func TestRecallScoresByOverlap(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	entries := []Entry{
		{UserID: "u1", Key: "project_deadline", Value: "kitchen remodel due Friday", Category: "work", Importance: 3},
		{UserID: "u1", Key: "favorite_coffee", Value: "flat white", Category: "preference", Importance: 9},
		{UserID: "u1", Key: "kitchen_budget", Value: "remodel budget is 40k", Category: "work", Importance: 5},
	}
	for _, e := range entries {
		if err := store.Remember(ctx, e); err != nil {
			t.Fatalf("Remember() error = %v", err)
		}
	}

	got, err := store.Recall(ctx, "u1", "what did you say about the kitchen remodel", 10)
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recall() returned %d entries, want 2", len(got))
	}
	for _, e := range got {
		if e.Key == "favorite_coffee" {
			t.Fatal("Recall() matched an unrelated entry")
		}
	}
}

func TestRecallImportanceBreaksTies(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	if err := store.Remember(ctx, Entry{UserID: "u1", Key: "a", Value: "invoice draft", Importance: 2}); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}
	if err := store.Remember(ctx, Entry{UserID: "u1", Key: "b", Value: "invoice approved", Importance: 9}); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}

	got, err := store.Recall(ctx, "u1", "invoice", 10)
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recall() returned %d entries, want 2", len(got))
	}
	if got[0].Key != "b" {
		t.Fatalf("Recall()[0].Key = %q, want higher-importance entry first", got[0].Key)
	}
}

func TestRecallNoMeaningfulTerms(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	if err := store.Remember(ctx, Entry{UserID: "u1", Key: "k", Value: "v"}); err != nil {
		t.Fatalf("Remember() error = %v", err)
	}

	got, err := store.Recall(ctx, "u1", "a to be", 10)
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Recall() with only short terms = %d entries, want 0", len(got))
	}
}

func TestWithPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	for _, e := range []Entry{
		{UserID: "u1", Key: "conversation_goal_1", Value: "close the deal"},
		{UserID: "u1", Key: "conversation_goal_2", Value: "schedule a visit"},
		{UserID: "u1", Key: "user_name", Value: "Josh"},
	} {
		if err := store.Remember(ctx, e); err != nil {
			t.Fatalf("Remember() error = %v", err)
		}
	}

	goals, err := store.WithPrefix(ctx, "u1", "conversation_goal_")
	if err != nil {
		t.Fatalf("WithPrefix() error = %v", err)
	}
	if len(goals) != 2 {
		t.Fatalf("WithPrefix() returned %d entries, want 2", len(goals))
	}
}

func TestFactorySelectsInMemory(t *testing.T) {
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if _, ok := store.(*InMemoryStore); !ok {
		t.Fatalf("NewStore(\"\") = %T, want *InMemoryStore", store)
	}
}
