package session

import (
	"sync"
	"testing"
	"time"
)

type analysisRecorder struct {
	mu    sync.Mutex
	calls []Aggregate
}

func (r *analysisRecorder) record(_ Session, agg Aggregate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, agg)
}

func (r *analysisRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func waitForCalls(t *testing.T, rec *analysisRecorder, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rec.count() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("analysis calls = %d, want %d", rec.count(), want)
}

func TestGetOrCreate(t *testing.T) {
	store := NewStore(time.Minute, nil)

	_, created := store.GetOrCreate("s1")
	if !created {
		t.Fatal("first GetOrCreate() should create")
	}
	_, created = store.GetOrCreate("s1")
	if created {
		t.Fatal("second GetOrCreate() should not create")
	}
	if store.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", store.ActiveCount())
	}
	store.End("s1")
}

func TestInactivityEndsSessionOnce(t *testing.T) {
	rec := &analysisRecorder{}
	store := NewStore(80*time.Millisecond, rec.record)

	store.GetOrCreate("s1")
	store.AppendMessage("s1", "user", "hello")
	store.AppendMessage("s1", "assistant", "hi")
	store.AppendMetrics("s1", TurnMetrics{TranscriptionMS: 100, AIMS: 200, VoiceMS: 300, TotalMS: 600})

	waitForCalls(t, rec, 1)

	if _, ok := store.Snapshot("s1"); ok {
		t.Fatal("expired session still live")
	}
	// the already-fired timer must not analyze again
	time.Sleep(150 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("analysis ran %d times, want 1", rec.count())
	}
	if !rec.calls[0].EndedByTimeout {
		t.Fatal("aggregate not marked as timeout-ended")
	}
	if rec.calls[0].MeanAIMS != 200 {
		t.Fatalf("MeanAIMS = %d, want 200", rec.calls[0].MeanAIMS)
	}
}

func TestActivityResetsTimer(t *testing.T) {
	rec := &analysisRecorder{}
	store := NewStore(120*time.Millisecond, rec.record)

	store.GetOrCreate("s1")
	store.AppendMessage("s1", "user", "hello")
	for i := 0; i < 4; i++ {
		time.Sleep(60 * time.Millisecond)
		store.AppendMessage("s1", "assistant", "still here")
	}
	if _, ok := store.Snapshot("s1"); !ok {
		t.Fatal("active session expired despite activity")
	}
	store.End("s1")
}

func TestEndIsIdempotent(t *testing.T) {
	rec := &analysisRecorder{}
	store := NewStore(time.Minute, rec.record)

	store.GetOrCreate("s1")
	store.AppendMessage("s1", "user", "hello")

	if !store.End("s1") {
		t.Fatal("first End() = false, want true")
	}
	if store.End("s1") {
		t.Fatal("second End() = true, want false")
	}

	waitForCalls(t, rec, 1)
	time.Sleep(50 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("analysis ran %d times, want 1", rec.count())
	}
	if rec.calls[0].EndedByTimeout {
		t.Fatal("explicit end marked as timeout")
	}
}

func TestEndWithoutExchangeSkipsAnalysis(t *testing.T) {
	rec := &analysisRecorder{}
	store := NewStore(time.Minute, rec.record)

	store.GetOrCreate("s1")
	store.End("s1")

	time.Sleep(50 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("analysis ran %d times for an empty session, want 0", rec.count())
	}
}

func TestAnalysisPanicIsContained(t *testing.T) {
	store := NewStore(time.Minute, func(Session, Aggregate) { panic("boom") })

	store.GetOrCreate("s1")
	store.AppendMessage("s1", "user", "hello")
	store.End("s1")

	// give the goroutine time to panic and recover
	time.Sleep(50 * time.Millisecond)

	if _, created := store.GetOrCreate("s2"); !created {
		t.Fatal("store unusable after analysis panic")
	}
	store.End("s2")
}

func TestSnapshotIsACopy(t *testing.T) {
	store := NewStore(time.Minute, nil)
	store.GetOrCreate("s1")
	store.AppendMessage("s1", "user", "hello")

	snap, ok := store.Snapshot("s1")
	if !ok {
		t.Fatal("Snapshot() missed a live session")
	}
	snap.Messages[0].Content = "mutated"

	again, _ := store.Snapshot("s1")
	if again.Messages[0].Content != "hello" {
		t.Fatal("Snapshot() exposed internal state")
	}
	store.End("s1")
}

func TestAssociate(t *testing.T) {
	store := NewStore(time.Minute, nil)
	store.GetOrCreate("s1")
	store.Associate("s1", "u9", "sales")

	snap, _ := store.Snapshot("s1")
	if snap.UserID != "u9" || snap.AgentID != "sales" {
		t.Fatalf("snapshot = %+v, want associated ids", snap)
	}
	store.End("s1")
}
