package observability

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// TurnStageStats summarizes recent latencies for one pipeline stage.
type TurnStageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
}

type TurnIndicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type TurnStageSnapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	WindowSize  int              `json:"window_size"`
	Stages      []TurnStageStats `json:"stages"`
	Indicators  []TurnIndicator  `json:"indicators,omitempty"`
}

// Informal latency targets per stage, surfaced next to the observed p95 so
// regressions are visible without consulting the dashboard.
var stageTargetsP95MS = map[string]float64{
	"transcribe": 1500,
	"complete":   3000,
	"synthesize": 2000,
	"turn_total": 6500,
}

// turnStageWindow keeps a fixed ring of recent samples per stage plus
// counters for one-off indicators (cache hits, retries).
type turnStageWindow struct {
	mu         sync.RWMutex
	capacity   int
	stages     map[string]*latencyRing
	indicators map[string]int
}

type latencyRing struct {
	samples []float64
	count   int
	last    float64
}

func newTurnStageWindow(capacity int) *turnStageWindow {
	if capacity <= 0 {
		capacity = 256
	}
	return &turnStageWindow{
		capacity:   capacity,
		stages:     make(map[string]*latencyRing),
		indicators: make(map[string]int),
	}
}

func (w *turnStageWindow) Observe(stage string, ms float64) {
	if stage == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	ring, ok := w.stages[stage]
	if !ok {
		ring = &latencyRing{samples: make([]float64, 0, w.capacity)}
		w.stages[stage] = ring
	}
	if len(ring.samples) < w.capacity {
		ring.samples = append(ring.samples, ms)
	} else {
		ring.samples[ring.count%w.capacity] = ms
	}
	ring.count++
	ring.last = ms
}

func (w *turnStageWindow) ObserveIndicator(name string) {
	if w == nil {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	w.mu.Lock()
	w.indicators[name]++
	w.mu.Unlock()
}

func (w *turnStageWindow) Snapshot() TurnStageSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := TurnStageSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.capacity,
		Stages:      make([]TurnStageStats, 0, len(w.stages)),
	}

	for _, stage := range sortedKeys(w.stages) {
		ring := w.stages[stage]
		if ring == nil || len(ring.samples) == 0 {
			continue
		}
		sorted := append([]float64(nil), ring.samples...)
		sort.Float64s(sorted)

		var sum float64
		for _, v := range sorted {
			sum += v
		}

		snap.Stages = append(snap.Stages, TurnStageStats{
			Stage:       stage,
			Samples:     len(sorted),
			LastMS:      round2(ring.last),
			AvgMS:       round2(sum / float64(len(sorted))),
			P50MS:       round2(quantile(sorted, 0.50)),
			P95MS:       round2(quantile(sorted, 0.95)),
			P99MS:       round2(quantile(sorted, 0.99)),
			TargetP95MS: stageTargetsP95MS[stage],
		})
	}

	for _, name := range sortedKeys(w.indicators) {
		if w.indicators[name] <= 0 {
			continue
		}
		snap.Indicators = append(snap.Indicators, TurnIndicator{Name: name, Count: w.indicators[name]})
	}
	return snap
}

func (w *turnStageWindow) Reset() {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.stages = make(map[string]*latencyRing)
	w.indicators = make(map[string]int)
	w.mu.Unlock()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// quantile interpolates between neighboring ranks of an ascending slice.
func quantile(sorted []float64, q float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
