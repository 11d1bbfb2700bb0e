package agent

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsAverages(t *testing.T) {
	m := NewMetrics()
	m.RecordSuccess(0.8, 0.6, 100*time.Millisecond)
	m.RecordSuccess(0.4, 0.8, 300*time.Millisecond)
	m.RecordFailure(FailValidation, 50*time.Millisecond)
	m.RecordFailure(FailValidation, 50*time.Millisecond)
	m.RecordFailure(FailUpstreamTimeout, 200*time.Millisecond)

	s := m.Snapshot()
	assert.Equal(t, uint64(5), s.RequestsProcessed)
	assert.Equal(t, uint64(2), s.Succeeded)
	assert.Equal(t, uint64(3), s.Failed)
	assert.Equal(t, uint64(2), s.FailuresByKind[FailValidation])
	assert.Equal(t, uint64(1), s.FailuresByKind[FailUpstreamTimeout])
	assert.InDelta(t, 0.6, s.AvgConfidence, 1e-9)
	assert.InDelta(t, 0.7, s.AvgQuality, 1e-9)
	assert.InDelta(t, 140.0, s.AvgLatencyMillis, 1e-9)
}

func TestMetricsEmptySnapshot(t *testing.T) {
	s := NewMetrics().Snapshot()
	assert.Zero(t, s.RequestsProcessed)
	assert.Zero(t, s.AvgConfidence)
	assert.Zero(t, s.AvgQuality)
	assert.Zero(t, s.AvgLatencyMillis)
	assert.Nil(t, s.FailuresByKind)
}

func TestMetricsSnapshotIsolation(t *testing.T) {
	m := NewMetrics()
	m.RecordFailure(FailInternal, time.Millisecond)

	s := m.Snapshot()
	s.FailuresByKind[FailInternal] = 99

	assert.Equal(t, uint64(1), m.Snapshot().FailuresByKind[FailInternal])
}

func TestMetricsConcurrentRecording(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordSuccess(0.5, 0.5, time.Millisecond)
			m.RecordFailure(FailInternal, time.Millisecond)
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	assert.Equal(t, uint64(100), s.RequestsProcessed)
	assert.Equal(t, uint64(50), s.Succeeded)
	assert.Equal(t, uint64(50), s.Failed)
}
