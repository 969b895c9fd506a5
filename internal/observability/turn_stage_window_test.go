package observability

import (
	"testing"
	"time"
)

func TestWindowSnapshotStats(t *testing.T) {
	w := NewTurnStageWindow(8)
	for _, ms := range []int{100, 200, 300, 400} {
		w.Observe(StageAI, time.Duration(ms)*time.Millisecond)
	}

	stats := w.Snapshot()
	if len(stats) != 1 {
		t.Fatalf("Snapshot() returned %d stages, want 1", len(stats))
	}
	s := stats[0]
	if s.Stage != StageAI {
		t.Fatalf("stage = %q, want %q", s.Stage, StageAI)
	}
	if s.Samples != 4 {
		t.Fatalf("samples = %d, want 4", s.Samples)
	}
	if s.LastMS != 400 {
		t.Fatalf("lastMs = %v, want 400", s.LastMS)
	}
	if s.AvgMS != 250 {
		t.Fatalf("avgMs = %v, want 250", s.AvgMS)
	}
	if s.P50MS != 250 {
		t.Fatalf("p50Ms = %v, want 250", s.P50MS)
	}
	if s.TargetP95MS != 1000 {
		t.Fatalf("targetP95Ms = %v, want 1000", s.TargetP95MS)
	}
}

func TestWindowWrapsOldSamples(t *testing.T) {
	w := NewTurnStageWindow(4)
	for i := 0; i < 10; i++ {
		w.Observe(StageVoice, 100*time.Millisecond)
	}
	stats := w.Snapshot()
	if stats[0].Samples != 4 {
		t.Fatalf("samples = %d, want ring cap 4", stats[0].Samples)
	}
}

func TestWindowSortedByStage(t *testing.T) {
	w := NewTurnStageWindow(0)
	w.Observe(StageVoice, 50*time.Millisecond)
	w.Observe(StageAI, 50*time.Millisecond)
	w.Observe(StageTranscription, 50*time.Millisecond)

	stats := w.Snapshot()
	want := []string{StageAI, StageTranscription, StageVoice}
	for i, s := range stats {
		if s.Stage != want[i] {
			t.Fatalf("stage[%d] = %q, want %q", i, s.Stage, want[i])
		}
	}
}

func TestWindowReset(t *testing.T) {
	w := NewTurnStageWindow(4)
	w.Observe(StageTurnTotal, time.Second)
	w.Reset()
	if got := w.Snapshot(); len(got) != 0 {
		t.Fatalf("Snapshot() after Reset returned %d stages, want 0", len(got))
	}
}
