package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/nev3rmi/citeanchor/internal/matcher"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
}

// MatchTimings is a point-in-time aggregate of match durations within the
// rolling window.
type MatchTimings struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// StatsSnapshot is a point-in-time view of engine counters and timings.
type StatsSnapshot struct {
	SessionsCreated  int64            `json:"sessions_created"`
	CitationsStarted int64            `json:"citations_started"`
	MetadataFetches  int64            `json:"metadata_fetches"`
	MetadataFailures int64            `json:"metadata_failures"`
	ResizeReentries  int64            `json:"resize_reentries"`
	BlocksAccepted   int64            `json:"blocks_accepted"`
	BlocksRejected   int64            `json:"blocks_rejected"`
	BlocksByStrategy map[string]int64 `json:"blocks_by_strategy,omitempty"`
	NoMatchPassages  int64            `json:"no_match_passages"`
	Scrolls          int64            `json:"scrolls"`
	MatchTimings     MatchTimings     `json:"match_timings"`
}

// Stats tracks engine-wide counters and recent match latencies.
type Stats struct {
	mu               sync.Mutex
	sessionsCreated  int64
	citationsStarted int64
	metadataFetches  int64
	metadataFailures int64
	resizeReentries  int64
	blocksAccepted   int64
	blocksRejected   int64
	blocksByStrategy map[matcher.Strategy]int64
	noMatchPassages  int64
	scrolls          int64
	samples          []sample
	maxAge           time.Duration
}

func NewStats(maxAge time.Duration) *Stats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Stats{
		blocksByStrategy: make(map[matcher.Strategy]int64),
		samples:          make([]sample, 0, 256),
		maxAge:           maxAge,
	}
}

func (s *Stats) SessionCreated() {
	s.mu.Lock()
	s.sessionsCreated++
	s.mu.Unlock()
}

func (s *Stats) CitationStarted() {
	s.mu.Lock()
	s.citationsStarted++
	s.mu.Unlock()
}

func (s *Stats) MetadataFetch() {
	s.mu.Lock()
	s.metadataFetches++
	s.mu.Unlock()
}

func (s *Stats) MetadataFailure() {
	s.mu.Lock()
	s.metadataFailures++
	s.mu.Unlock()
}

func (s *Stats) Scroll() {
	s.mu.Lock()
	s.scrolls++
	s.mu.Unlock()
}

func (s *Stats) ResizeReentry() {
	s.mu.Lock()
	s.resizeReentries++
	s.mu.Unlock()
}

// RecordMatch logs one matching pass: its wall time and the per-block
// accept/reject outcomes.
func (s *Stats) RecordMatch(durationMs int64, results []matcher.Result) {
	if durationMs < 0 {
		durationMs = 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	accepted := 0
	for _, r := range results {
		if r.Accepted() {
			s.blocksAccepted++
			s.blocksByStrategy[r.Strategy]++
			accepted++
		} else {
			s.blocksRejected++
		}
	}
	if accepted == 0 {
		s.noMatchPassages++
	}

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{
		timestamp:  now,
		durationMs: durationMs,
	})
}

func (s *Stats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		SessionsCreated:  s.sessionsCreated,
		CitationsStarted: s.citationsStarted,
		MetadataFetches:  s.metadataFetches,
		MetadataFailures: s.metadataFailures,
		ResizeReentries:  s.resizeReentries,
		BlocksAccepted:   s.blocksAccepted,
		BlocksRejected:   s.blocksRejected,
		NoMatchPassages:  s.noMatchPassages,
		Scrolls:          s.scrolls,
	}
	if len(s.blocksByStrategy) > 0 {
		snap.BlocksByStrategy = make(map[string]int64, len(s.blocksByStrategy))
		for strat, n := range s.blocksByStrategy {
			snap.BlocksByStrategy[string(strat)] = n
		}
	}

	s.pruneLocked(now)
	if len(s.samples) == 0 {
		return snap
	}

	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	snap.MatchTimings = MatchTimings{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
	return snap
}

func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	writeIdx := 0
	for _, sm := range s.samples {
		if !sm.timestamp.Before(cutoff) {
			s.samples[writeIdx] = sm
			writeIdx++
		}
	}
	s.samples = s.samples[:writeIdx]
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
