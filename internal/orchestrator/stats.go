package orchestrator

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Stats collects pipeline latency samples and outcome counts for the /stats
// command. It maintains a bounded ring buffer of recent latency observations
// from which percentiles are computed on demand.
//
// Thread-safe for concurrent use.
type Stats struct {
	mu sync.Mutex

	synthesis latencyBuffer
	playback  latencyBuffer

	outcomes map[Outcome]int64
}

// NewStats creates a Stats with the given window size (maximum number of
// latency samples retained per stage).
func NewStats(windowSize int) *Stats {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &Stats{
		synthesis: newLatencyBuffer(windowSize),
		playback:  newLatencyBuffer(windowSize),
		outcomes:  make(map[Outcome]int64),
	}
}

// RecordSynthesis records a synthesis latency sample.
func (s *Stats) RecordSynthesis(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synthesis.add(d)
}

// RecordPlayback records a playback duration sample.
func (s *Stats) RecordPlayback(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playback.add(d)
}

// RecordOutcome increments the counter for the given terminal state.
func (s *Stats) RecordOutcome(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[o]++
}

// LatencyPercentiles holds p50 and p95 values for a latency stage.
type LatencyPercentiles struct {
	P50 time.Duration
	P95 time.Duration
}

// Snapshot captures a point-in-time view of all pipeline statistics.
type Snapshot struct {
	Synthesis LatencyPercentiles
	Playback  LatencyPercentiles
	Outcomes  map[Outcome]int64
}

// Snapshot returns a point-in-time view of all pipeline statistics.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcomes := make(map[Outcome]int64, len(s.outcomes))
	for o, n := range s.outcomes {
		outcomes[o] = n
	}
	return Snapshot{
		Synthesis: s.synthesis.percentiles(),
		Playback:  s.playback.percentiles(),
		Outcomes:  outcomes,
	}
}

// latencyBuffer is a bounded ring buffer of duration samples.
type latencyBuffer struct {
	data []time.Duration
	size int
	pos  int
	full bool
}

func newLatencyBuffer(size int) latencyBuffer {
	return latencyBuffer{
		data: make([]time.Duration, size),
		size: size,
	}
}

func (lb *latencyBuffer) add(d time.Duration) {
	lb.data[lb.pos] = d
	lb.pos++
	if lb.pos >= lb.size {
		lb.pos = 0
		lb.full = true
	}
}

func (lb *latencyBuffer) percentiles() LatencyPercentiles {
	n := lb.pos
	if lb.full {
		n = lb.size
	}
	if n == 0 {
		return LatencyPercentiles{}
	}

	// Copy and sort the valid samples.
	sorted := make([]time.Duration, n)
	if lb.full {
		copy(sorted, lb.data)
	} else {
		copy(sorted, lb.data[:n])
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return LatencyPercentiles{
		P50: percentile(sorted, 0.50),
		P95: percentile(sorted, 0.95),
	}
}

// percentile returns the value at the given percentile (0.0-1.0) from a
// sorted slice of durations using nearest-rank.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
