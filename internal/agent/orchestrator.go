package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/intelligent-ticket-agent/internal/drafter"
	"github.com/intelligent-ticket-agent/internal/enhance"
	"github.com/intelligent-ticket-agent/internal/knowledge"
	"github.com/intelligent-ticket-agent/internal/learning"
	"github.com/intelligent-ticket-agent/internal/sla"
	"github.com/intelligent-ticket-agent/internal/ticket"
)

// Step names one state of the per-ticket pipeline. The machine is
// terminal on StepDone or StepFailed.
type Step string

const (
	StepReceived          Step = "RECEIVED"
	StepFeaturesExtracted Step = "FEATURES_EXTRACTED"
	StepPatternsFetched   Step = "PATTERNS_FETCHED"
	StepDraftObtained     Step = "DRAFT_OBTAINED"
	StepEnhanced          Step = "ENHANCED"
	StepRecorded          Step = "RECORDED"
	StepDone              Step = "DONE"
	StepFailed            Step = "FAILED"
)

// templateMaxLen caps the response fragment stored as a pattern template.
const templateMaxLen = 500

// Config holds the orchestrator's own knobs; learner and enhancer carry
// their own configuration.
type Config struct {
	ID            string
	SLAThresholds sla.Thresholds
	DraftTimeout  time.Duration
	HistorySize   int
}

// Result is the outcome of one successfully processed ticket.
type Result struct {
	TicketNumber int                     `json:"ticket_number"`
	State        Step                    `json:"state"`
	Summary      string                  `json:"summary"`
	Response     string                  `json:"response"`
	Quality      float64                 `json:"quality_score"`
	Confidence   float64                 `json:"confidence"`
	Enhancements []string                `json:"enhancements_applied,omitempty"`
	SLA          sla.Status              `json:"sla_status"`
	Record       knowledge.QualityRecord `json:"quality_record"`
	Elapsed      time.Duration           `json:"-"`
	ElapsedMs    float64                 `json:"processing_ms"`
}

// Orchestrator drives one ticket through the full pipeline: validate,
// deduplicate, suggest, draft, enhance, check SLA, record the outcome,
// update metrics. All cross-request state (knowledge store, processed
// set, metrics, history) is injected at construction so tests get fresh
// instances.
type Orchestrator struct {
	cfg      Config
	learner  *learning.Learner
	enhancer *enhance.Enhancer
	drafter  drafter.Drafter
	notifier sla.Notifier
	logger   *zap.Logger

	processed *ProcessedSet
	history   *History
	metrics   *Metrics

	startedAt time.Time
	now       func() time.Time

	mu         sync.Mutex
	lastActive time.Time
}

// New wires an orchestrator. The drafter and notifier are the external
// collaborators; everything else is core state.
func New(cfg Config, learner *learning.Learner, enhancer *enhance.Enhancer, d drafter.Drafter, notifier sla.Notifier, logger *zap.Logger) (*Orchestrator, error) {
	if cfg.ID == "" {
		cfg.ID = "ticket-orchestrator"
	}
	if cfg.SLAThresholds == nil {
		cfg.SLAThresholds = sla.DefaultThresholds()
	}
	if cfg.DraftTimeout == 0 {
		cfg.DraftTimeout = drafter.DefaultTimeout
	}
	history, err := NewHistory(cfg.HistorySize)
	if err != nil {
		return nil, fmt.Errorf("create history: %w", err)
	}
	o := &Orchestrator{
		cfg:       cfg,
		learner:   learner,
		enhancer:  enhancer,
		drafter:   d,
		notifier:  notifier,
		logger:    logger,
		processed: NewProcessedSet(),
		history:   history,
		metrics:   NewMetrics(),
		startedAt: time.Now(),
		now:       time.Now,
	}
	o.lastActive = o.startedAt
	return o, nil
}

// Process runs one ticket through the pipeline. It returns a Result on
// DONE or a *PipelineError carrying the failed step and cause. Every
// externally observable write commits before DONE is reported.
func (o *Orchestrator) Process(ctx context.Context, p ticket.Payload) (*Result, error) {
	start := o.now()
	defer o.touch()

	// Validation and deduplication fail fast, before any external call.
	t, err := ticket.Normalize(p)
	if err != nil {
		return nil, o.fail(int(p.Number), StepReceived, err, start)
	}
	state := StepFeaturesExtracted

	if !o.processed.Reserve(t.Number) {
		err := fmt.Errorf("%w: ticket %d already processed", ErrDuplicateRequest, t.Number)
		return nil, o.fail(t.Number, state, err, start)
	}
	// The reservation is released on any failure below so a corrected
	// resubmission is accepted; only DONE keeps it.
	done := false
	defer func() {
		if !done {
			o.processed.Release(t.Number)
		}
	}()

	sug := o.learner.Suggest(ctx, t)
	state = StepPatternsFetched

	hints := drafter.Hints{Confidence: sug.Confidence}
	for _, p := range sug.Usable {
		hints.PatternKeys = append(hints.PatternKeys, p.Key)
		if p.Template != "" {
			hints.Templates = append(hints.Templates, p.Template)
		}
	}

	draftCtx, cancel := context.WithTimeout(ctx, o.cfg.DraftTimeout)
	draft, err := o.drafter.Draft(draftCtx, t, hints)
	cancel()
	if err != nil {
		return nil, o.fail(t.Number, state, err, start)
	}
	state = StepDraftObtained

	resp, quality, applied := o.enhancer.Enhance(
		enhance.Response{Summary: draft.Summary, Body: draft.Response}, t, sug.Usable)
	state = StepEnhanced

	now := o.now()
	slaStatus, breach := sla.Check(t, now, o.cfg.SLAThresholds)
	if breach != nil {
		// Exactly one alert per processed ticket; delivery failures are
		// logged and never fail the pipeline.
		if err := o.notifier.Alert(ctx, t, *breach); err != nil {
			o.logger.Error("sla alert delivery failed",
				zap.Int("ticket", t.Number), zap.Error(err))
		}
	}

	rec := knowledge.QualityRecord{
		ID:                  uuid.NewString(),
		TicketNumber:        t.Number,
		PatternKeys:         hints.PatternKeys,
		QualityScore:        quality,
		EnhancementsApplied: applied,
		Timestamp:           now,
	}
	if err := o.learner.Learn(ctx, t, rec, o.templateFrom(resp, quality)); err != nil {
		return nil, o.fail(t.Number, state, err, start)
	}
	state = StepRecorded

	elapsed := o.now().Sub(start)
	o.metrics.RecordSuccess(sug.Confidence, quality, elapsed)

	rendered := enhance.Render(resp)
	o.history.Add(HistoryEntry{
		Ticket:    t,
		Summary:   resp.Summary,
		Response:  rendered,
		Quality:   quality,
		SLA:       slaStatus,
		Timestamp: now,
	})
	done = true

	o.logger.Info("ticket processed",
		zap.Int("ticket", t.Number),
		zap.Float64("quality", quality),
		zap.Float64("confidence", sug.Confidence),
		zap.Strings("enhancements", applied),
		zap.Bool("sla_breached", slaStatus.Breached),
		zap.Duration("elapsed", elapsed))

	return &Result{
		TicketNumber: t.Number,
		State:        StepDone,
		Summary:      resp.Summary,
		Response:     rendered,
		Quality:      quality,
		Confidence:   sug.Confidence,
		Enhancements: applied,
		SLA:          slaStatus,
		Record:       rec,
		Elapsed:      elapsed,
		ElapsedMs:    float64(elapsed.Microseconds()) / 1000,
	}, nil
}

// templateFrom derives the pattern template stored with this outcome. A
// below-baseline response never overwrites a previously learned template.
func (o *Orchestrator) templateFrom(r enhance.Response, quality float64) string {
	if quality < enhance.BaselineQuality {
		return ""
	}
	body := r.Body
	if len(body) > templateMaxLen {
		body = body[:templateMaxLen]
	}
	return body
}

func (o *Orchestrator) fail(number int, step Step, err error, start time.Time) error {
	kind := Classify(err)
	elapsed := o.now().Sub(start)
	o.metrics.RecordFailure(kind, elapsed)
	o.logger.Warn("ticket pipeline failed",
		zap.Int("ticket", number),
		zap.String("step", string(step)),
		zap.String("kind", string(kind)),
		zap.Error(err))
	return &PipelineError{TicketNumber: number, Step: step, Kind: kind, Err: err}
}

func (o *Orchestrator) touch() {
	o.mu.Lock()
	o.lastActive = time.Now()
	o.mu.Unlock()
}

// Status implements Capability. It reads only committed snapshots and
// never blocks processing.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	last := o.lastActive
	o.mu.Unlock()

	return Status{
		ID:         o.cfg.ID,
		Kind:       "ticket_orchestrator",
		Active:     true,
		StartedAt:  o.startedAt,
		LastActive: last,
		Metrics:    o.metrics.Snapshot(),
		Sub: map[string]any{
			"learning": map[string]any{
				"enabled":     o.learner.Enabled(),
				"threshold":   o.learner.Threshold(),
				"min_samples": o.learner.MinSamples(),
			},
			"enhancement": map[string]any{
				"enabled":         o.enhancer.Enabled(),
				"strategy_faults": o.enhancer.StrategyFaults(),
			},
			"processed_tickets": o.processed.Len(),
			"history_entries":   o.history.Len(),
		},
	}
}

// Healthy implements Capability.
func (o *Orchestrator) Healthy() bool {
	return true
}

// History exposes the session history for the operator surface.
func (o *Orchestrator) History() *History { return o.history }

// ClearProcessed drops every processed-ticket mark and returns how many
// were dropped. Explicit operator action only.
func (o *Orchestrator) ClearProcessed() int {
	n := o.processed.Clear()
	o.logger.Info("processed ticket set cleared", zap.Int("dropped", n))
	return n
}

// Metrics exposes the orchestrator counters for tests and the operator
// surface.
func (o *Orchestrator) Metrics() MetricsSnapshot {
	return o.metrics.Snapshot()
}
