package observability

import (
	"math"
	"sort"
	"sync"
	"time"
)

const defaultWindowSamples = 256

// TurnStageStats is one stage's rolling latency summary.
type TurnStageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"lastMs"`
	AvgMS       float64 `json:"avgMs"`
	P50MS       float64 `json:"p50Ms"`
	P95MS       float64 `json:"p95Ms"`
	P99MS       float64 `json:"p99Ms"`
	TargetP95MS float64 `json:"targetP95Ms,omitempty"`
}

type stageRing struct {
	samples []float64
	next    int
	filled  bool
	last    float64
}

// TurnStageWindow keeps a bounded per-stage ring of recent latencies so
// the analytics endpoint can report live percentiles without scanning
// the turn log.
type TurnStageWindow struct {
	mu         sync.Mutex
	maxSamples int
	stages     map[string]*stageRing
}

func NewTurnStageWindow(maxSamples int) *TurnStageWindow {
	if maxSamples <= 0 {
		maxSamples = defaultWindowSamples
	}
	return &TurnStageWindow{
		maxSamples: maxSamples,
		stages:     make(map[string]*stageRing),
	}
}

func (w *TurnStageWindow) Observe(stage string, d time.Duration) {
	w.observeMS(stage, float64(d.Milliseconds()))
}

func (w *TurnStageWindow) observeMS(stage string, ms float64) {
	if stage == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	ring := w.stages[stage]
	if ring == nil {
		ring = &stageRing{samples: make([]float64, w.maxSamples)}
		w.stages[stage] = ring
	}
	ring.samples[ring.next] = ms
	ring.next++
	if ring.next == w.maxSamples {
		ring.next = 0
		ring.filled = true
	}
	ring.last = ms
}

// Snapshot returns per-stage stats sorted by stage name.
func (w *TurnStageWindow) Snapshot() []TurnStageStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]TurnStageStats, 0, len(w.stages))
	for stage, ring := range w.stages {
		n := ring.next
		if ring.filled {
			n = w.maxSamples
		}
		if n == 0 {
			continue
		}
		vals := make([]float64, n)
		copy(vals, ring.samples[:n])
		sort.Float64s(vals)

		var sum float64
		for _, v := range vals {
			sum += v
		}
		out = append(out, TurnStageStats{
			Stage:       stage,
			Samples:     n,
			LastMS:      round2(ring.last),
			AvgMS:       round2(sum / float64(n)),
			P50MS:       round2(quantile(vals, 0.50)),
			P95MS:       round2(quantile(vals, 0.95)),
			P99MS:       round2(quantile(vals, 0.99)),
			TargetP95MS: stageTargetP95MS(stage),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stage < out[j].Stage })
	return out
}

func (w *TurnStageWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stages = make(map[string]*stageRing)
}

// quantile interpolates between neighboring sorted samples.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func stageTargetP95MS(stage string) float64 {
	switch stage {
	case StageTranscription:
		return 2000
	case StageAI:
		return 1000
	case StageVoice:
		return 1000
	case StageTurnTotal:
		return 5000
	default:
		return 0
	}
}

// Stage names shared between the orchestrator and the analytics surface.
const (
	StageTranscription = "transcription"
	StageAI            = "ai"
	StageVoice         = "voice"
	StageTurnTotal     = "turn_total"
)
