package agent

import (
	"sync"
	"time"
)

// Metrics holds an agent's process-wide counters. Counters are monotonic
// for the process lifetime; there is no mid-process reset. Reads go
// through Snapshot, which copies under the lock so a reader never sees a
// torn update.
type Metrics struct {
	mu sync.Mutex

	requestsProcessed uint64
	succeeded         uint64
	failed            uint64
	failuresByKind    map[FailureKind]uint64

	totalConfidence float64
	totalQuality    float64
	totalLatency    time.Duration
}

// NewMetrics creates an empty metrics set.
func NewMetrics() *Metrics {
	return &Metrics{failuresByKind: make(map[FailureKind]uint64)}
}

// RecordSuccess folds one completed ticket into the counters.
func (m *Metrics) RecordSuccess(confidence, quality float64, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsProcessed++
	m.succeeded++
	m.totalConfidence += confidence
	m.totalQuality += quality
	m.totalLatency += latency
}

// RecordFailure folds one failed ticket into the counters.
func (m *Metrics) RecordFailure(kind FailureKind, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsProcessed++
	m.failed++
	m.failuresByKind[kind]++
	m.totalLatency += latency
}

// MetricsSnapshot is the consistent read view of a Metrics set.
type MetricsSnapshot struct {
	RequestsProcessed uint64                 `json:"requests_processed"`
	Succeeded         uint64                 `json:"succeeded"`
	Failed            uint64                 `json:"failed"`
	FailuresByKind    map[FailureKind]uint64 `json:"failures_by_kind,omitempty"`
	AvgConfidence     float64                `json:"avg_confidence"`
	AvgQuality        float64                `json:"avg_quality"`
	AvgLatencyMillis  float64                `json:"avg_latency_ms"`
}

// Snapshot returns the last-committed counters. It never blocks ticket
// processing beyond the brief counter lock.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := MetricsSnapshot{
		RequestsProcessed: m.requestsProcessed,
		Succeeded:         m.succeeded,
		Failed:            m.failed,
	}
	if len(m.failuresByKind) > 0 {
		s.FailuresByKind = make(map[FailureKind]uint64, len(m.failuresByKind))
		for k, v := range m.failuresByKind {
			s.FailuresByKind[k] = v
		}
	}
	if m.succeeded > 0 {
		s.AvgConfidence = m.totalConfidence / float64(m.succeeded)
		s.AvgQuality = m.totalQuality / float64(m.succeeded)
	}
	if m.requestsProcessed > 0 {
		s.AvgLatencyMillis = float64(m.totalLatency.Milliseconds()) / float64(m.requestsProcessed)
	}
	return s
}
