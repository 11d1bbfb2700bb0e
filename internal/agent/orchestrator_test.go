package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/intelligent-ticket-agent/internal/drafter"
	"github.com/intelligent-ticket-agent/internal/enhance"
	"github.com/intelligent-ticket-agent/internal/knowledge"
	"github.com/intelligent-ticket-agent/internal/learning"
	"github.com/intelligent-ticket-agent/internal/sla"
	"github.com/intelligent-ticket-agent/internal/ticket"
)

// stubDrafter returns a fixed draft, or an error when set.
type stubDrafter struct {
	result drafter.Result
	err    error

	mu    sync.Mutex
	calls int
	hints drafter.Hints
}

func (d *stubDrafter) Draft(_ context.Context, _ ticket.Ticket, hints drafter.Hints) (drafter.Result, error) {
	d.mu.Lock()
	d.calls++
	d.hints = hints
	d.mu.Unlock()
	if d.err != nil {
		return drafter.Result{}, d.err
	}
	return d.result, nil
}

// recordingNotifier captures breach alerts and optionally fails them.
type recordingNotifier struct {
	mu       sync.Mutex
	breaches []sla.Breach
	err      error
}

func (n *recordingNotifier) Alert(_ context.Context, _ ticket.Ticket, b sla.Breach) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.breaches = append(n.breaches, b)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.breaches)
}

// brokenStore serves reads but refuses every write.
type brokenStore struct{}

func (brokenStore) FindPatterns(context.Context, ticket.Features) ([]knowledge.Pattern, error) {
	return nil, nil
}
func (brokenStore) RecordOutcome(context.Context, knowledge.QualityRecord, []knowledge.PatternUpdate) error {
	return fmt.Errorf("%w: disk full", knowledge.ErrStoreUnavailable)
}
func (brokenStore) Cleanup(context.Context, int) (int, error)          { return 0, nil }
func (brokenStore) Stats(context.Context) (knowledge.Stats, error)     { return knowledge.Stats{}, nil }
func (brokenStore) Export(context.Context) (knowledge.Snapshot, error) { return knowledge.Snapshot{}, nil }
func (brokenStore) Close() error                                       { return nil }

type fixture struct {
	orch     *Orchestrator
	store    knowledge.Store
	drafter  *stubDrafter
	notifier *recordingNotifier
}

func newFixture(t *testing.T, learnCfg learning.Config, store knowledge.Store) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	if store == nil {
		s, err := knowledge.NewSQLiteStore(filepath.Join(t.TempDir(), "knowledge.db"), logger)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		store = s
	}

	d := &stubDrafter{result: drafter.Result{
		Summary:  "Login failure reported.",
		Response: "We are investigating your login issue.",
	}}
	n := &recordingNotifier{}

	orch, err := New(Config{},
		learning.New(learnCfg, store, logger),
		enhance.New(enhance.Config{Enabled: true}, logger),
		d, n, logger)
	require.NoError(t, err)
	return &fixture{orch: orch, store: store, drafter: d, notifier: n}
}

func loginPayload(number int, age time.Duration) ticket.Payload {
	return ticket.Payload{
		Number:      ticket.FlexInt(number),
		Title:       "Login fails",
		Description: "Cannot log in since this morning",
		CreatedTime: time.Now().UTC().Add(-age).Format(time.RFC3339),
		State:       "open",
		Priority:    "P1",
	}
}

func TestProcessEndToEnd(t *testing.T) {
	fx := newFixture(t, learning.DefaultConfig(), nil)
	ctx := context.Background()

	// P1, no labels, clean draft, empty store: only the SLA annotation
	// applies, and processing finishes well inside the window.
	res, err := fx.orch.Process(ctx, loginPayload(42, time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 42, res.TicketNumber)
	assert.Equal(t, StepDone, res.State)
	assert.Equal(t, []string{"sla_compliance"}, res.Enhancements)
	assert.InDelta(t, 0.6, res.Quality, 1e-9)
	assert.Zero(t, res.Confidence)
	assert.False(t, res.SLA.Breached)
	assert.Zero(t, fx.notifier.count())
	assert.NotEmpty(t, res.Record.ID)
	assert.Contains(t, res.Response, "We are investigating your login issue.")
	assert.Contains(t, res.Response, "SLA: P1")

	// The outcome is durable before DONE was reported.
	stats, err := fx.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalQualityRecords)

	snap, err := fx.store.Export(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Patterns, 1)
	assert.Equal(t, 1, snap.Patterns[0].SampleCount)
	assert.InDelta(t, 0.6, snap.Patterns[0].SuccessScore, 1e-9)
	assert.Equal(t, "We are investigating your login issue.", snap.Patterns[0].Template)

	// The empty store yields no drafting hints.
	assert.True(t, fx.drafter.hints.Empty())
}

func TestProcessDuplicateRejected(t *testing.T) {
	fx := newFixture(t, learning.DefaultConfig(), nil)
	ctx := context.Background()

	_, err := fx.orch.Process(ctx, loginPayload(42, time.Hour))
	require.NoError(t, err)

	_, err = fx.orch.Process(ctx, loginPayload(42, time.Hour))
	require.Error(t, err)

	var perr *PipelineError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, FailDuplicate, perr.Kind)
	assert.Equal(t, StepFeaturesExtracted, perr.Step)
	assert.True(t, errors.Is(err, ErrDuplicateRequest))

	// Only the first run drafted.
	assert.Equal(t, 1, fx.drafter.calls)
}

func TestClearProcessedReopensTickets(t *testing.T) {
	fx := newFixture(t, learning.DefaultConfig(), nil)
	ctx := context.Background()

	_, err := fx.orch.Process(ctx, loginPayload(42, time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 1, fx.orch.ClearProcessed())

	_, err = fx.orch.Process(ctx, loginPayload(42, time.Hour))
	assert.NoError(t, err)
}

func TestProcessValidationFailure(t *testing.T) {
	fx := newFixture(t, learning.DefaultConfig(), nil)

	_, err := fx.orch.Process(context.Background(), ticket.Payload{Number: 7})
	require.Error(t, err)

	var perr *PipelineError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, FailValidation, perr.Kind)
	assert.Equal(t, StepReceived, perr.Step)
	assert.Equal(t, 7, perr.TicketNumber)

	var verr *ticket.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Zero(t, fx.drafter.calls)
}

func TestProcessDrafterFailureReleasesReservation(t *testing.T) {
	fx := newFixture(t, learning.DefaultConfig(), nil)
	ctx := context.Background()

	fx.drafter.err = drafter.ErrUpstreamUnavailable
	_, err := fx.orch.Process(ctx, loginPayload(42, time.Hour))
	require.Error(t, err)

	var perr *PipelineError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, FailUpstreamUnavailable, perr.Kind)
	assert.Equal(t, StepPatternsFetched, perr.Step)

	// The failed run released its mark, so the resubmission goes through.
	fx.drafter.err = nil
	_, err = fx.orch.Process(ctx, loginPayload(42, time.Hour))
	assert.NoError(t, err)
}

func TestProcessDrafterTimeoutClassified(t *testing.T) {
	fx := newFixture(t, learning.DefaultConfig(), nil)
	fx.drafter.err = drafter.ErrUpstreamTimeout

	_, err := fx.orch.Process(context.Background(), loginPayload(42, time.Hour))
	var perr *PipelineError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, FailUpstreamTimeout, perr.Kind)
}

func TestProcessBreachAlertsExactlyOnce(t *testing.T) {
	fx := newFixture(t, learning.DefaultConfig(), nil)

	// Created 3h ago against a 2h P1 window.
	res, err := fx.orch.Process(context.Background(), loginPayload(42, 3*time.Hour))
	require.NoError(t, err)

	assert.True(t, res.SLA.Breached)
	require.Equal(t, 1, fx.notifier.count())
	b := fx.notifier.breaches[0]
	assert.Equal(t, 42, b.TicketNumber)
	assert.Equal(t, ticket.PriorityP1, b.Priority)
	assert.InDelta(t, 2.0, b.ThresholdHours, 1e-9)
	assert.GreaterOrEqual(t, b.ElapsedHours, 2.0)
	assert.Contains(t, res.Response, "breached")
}

func TestProcessNotifierFailureIsNonFatal(t *testing.T) {
	fx := newFixture(t, learning.DefaultConfig(), nil)
	fx.notifier.err = errors.New("broker down")

	res, err := fx.orch.Process(context.Background(), loginPayload(42, 3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StepDone, res.State)
}

func TestProcessLearningDisabledWritesNothing(t *testing.T) {
	fx := newFixture(t, learning.Config{Enabled: false}, nil)
	ctx := context.Background()

	res, err := fx.orch.Process(ctx, loginPayload(42, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StepDone, res.State)

	stats, err := fx.store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalQualityRecords)
	assert.Zero(t, stats.TotalPatterns)
}

func TestProcessStoreWriteFailure(t *testing.T) {
	fx := newFixture(t, learning.DefaultConfig(), brokenStore{})
	ctx := context.Background()

	_, err := fx.orch.Process(ctx, loginPayload(42, time.Hour))
	require.Error(t, err)

	var perr *PipelineError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, FailStoreUnavailable, perr.Kind)
	assert.Equal(t, StepEnhanced, perr.Step)

	// No DONE, no history entry, reservation released: the retry fails on
	// the store again, not on the duplicate guard.
	assert.Zero(t, fx.orch.History().Len())
	_, err = fx.orch.Process(ctx, loginPayload(42, time.Hour))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDuplicateRequest))
}

func TestProcessFeedsPatternHints(t *testing.T) {
	fx := newFixture(t, learning.Config{Enabled: true, Threshold: 0.5, MinSamples: 1}, nil)
	ctx := context.Background()

	// Seed a learned pattern under the feature key these tickets produce.
	seed := knowledge.QualityRecord{
		ID:           "seed",
		TicketNumber: 1,
		QualityScore: 0.8,
		Timestamp:    time.Now().UTC(),
	}
	require.NoError(t, fx.store.RecordOutcome(ctx, seed,
		[]knowledge.PatternUpdate{{Key: "P1::fails,login", Template: "Reset your password cache."}}))

	res, err := fx.orch.Process(ctx, loginPayload(43, time.Hour))
	require.NoError(t, err)

	assert.Contains(t, res.Enhancements, "template_substitution")
	assert.Greater(t, res.Confidence, 0.0)
	assert.NotEmpty(t, fx.drafter.hints.PatternKeys)
	assert.NotEmpty(t, fx.drafter.hints.Templates)
}

func TestProcessConcurrentSameNumber(t *testing.T) {
	fx := newFixture(t, learning.DefaultConfig(), nil)
	ctx := context.Background()

	const n = 8
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := fx.orch.Process(ctx, loginPayload(42, time.Hour))
			results <- err
		}()
	}

	var ok, dup int
	for i := 0; i < n; i++ {
		if err := <-results; err == nil {
			ok++
		} else if errors.Is(err, ErrDuplicateRequest) {
			dup++
		} else {
			t.Fatalf("unexpected failure: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)
}

func TestMetricsAndStatusReflectOutcomes(t *testing.T) {
	fx := newFixture(t, learning.DefaultConfig(), nil)
	ctx := context.Background()

	_, err := fx.orch.Process(ctx, loginPayload(42, time.Hour))
	require.NoError(t, err)
	_, err = fx.orch.Process(ctx, ticket.Payload{Number: 1})
	require.Error(t, err)

	m := fx.orch.Metrics()
	assert.Equal(t, uint64(2), m.RequestsProcessed)
	assert.Equal(t, uint64(1), m.Succeeded)
	assert.Equal(t, uint64(1), m.Failed)
	assert.Equal(t, uint64(1), m.FailuresByKind[FailValidation])
	assert.InDelta(t, 0.6, m.AvgQuality, 1e-9)

	st := fx.orch.Status()
	assert.Equal(t, "ticket-orchestrator", st.ID)
	assert.True(t, st.Active)
	assert.Equal(t, 1, st.Sub["processed_tickets"])
	assert.Equal(t, 1, st.Sub["history_entries"])
	assert.True(t, fx.orch.Healthy())
}

func TestHistoryRecordsProcessedTickets(t *testing.T) {
	fx := newFixture(t, learning.DefaultConfig(), nil)
	ctx := context.Background()

	_, err := fx.orch.Process(ctx, loginPayload(42, time.Hour))
	require.NoError(t, err)

	e, ok := fx.orch.History().Get(42)
	require.True(t, ok)
	assert.Equal(t, "Login failure reported.", e.Summary)
	assert.Equal(t, 42, e.Ticket.Number)
	assert.InDelta(t, 0.6, e.Quality, 1e-9)

	found := fx.orch.History().Search("login")
	require.Len(t, found, 1)
	assert.Equal(t, 42, found[0].Ticket.Number)
}
