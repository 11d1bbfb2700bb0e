// Package enhance implements the response enhancement pipeline: an
// ordered, fixed list of deterministic strategies applied to the drafted
// response. Order matters because later strategies may build on earlier
// annotations.
package enhance

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/intelligent-ticket-agent/internal/knowledge"
	"github.com/intelligent-ticket-agent/internal/sla"
	"github.com/intelligent-ticket-agent/internal/ticket"
)

// BaselineQuality is the quality score of an unenhanced draft. Strategy
// deltas accumulate from here and the running sum is clamped to [0,1]
// after every step.
const BaselineQuality = 0.5

// Response is the working response as it moves through the pipeline.
// Annotations are advisory lines appended by strategies, kept separate
// from the drafted body so each strategy sees what ran before it.
type Response struct {
	Summary     string   `json:"summary,omitempty"`
	Body        string   `json:"body"`
	Annotations []string `json:"annotations,omitempty"`
}

// Input is what one strategy sees: the response produced by the previous
// strategy, the immutable ticket, the usable patterns, and the pipeline
// clock.
type Input struct {
	Response Response
	Ticket   ticket.Ticket
	Patterns []knowledge.Pattern
	Now      time.Time
}

// Strategy is one deterministic transformation. Apply returns the
// transformed response, a bounded quality delta in [-1,1], and whether
// the strategy actually applied (false means no-op and the input response
// is passed through unchanged).
type Strategy interface {
	Name() string
	Apply(in Input) (Response, float64, bool)
}

// Config controls the enhancer.
type Config struct {
	// Enabled is the ENABLE_RESPONSE_PROCESSING switch. When false,
	// Enhance is the identity: draft unchanged, baseline quality, no
	// strategies applied.
	Enabled bool

	// Thresholds feeds the SLA compliance strategy.
	Thresholds sla.Thresholds
}

// Enhancer runs the strategy pipeline. The strategy list is fixed at
// construction; its order is part of the contract.
type Enhancer struct {
	cfg        Config
	strategies []Strategy
	logger     *zap.Logger
	now        func() time.Time

	// faults counts strategies that panicked and were degraded to no-ops.
	faults atomic.Int64
}

// New builds the enhancer with the stock strategy order: priority
// handling, SLA compliance annotation, clarity rewrite, then template
// substitution from usable patterns.
func New(cfg Config, logger *zap.Logger) *Enhancer {
	if cfg.Thresholds == nil {
		cfg.Thresholds = sla.DefaultThresholds()
	}
	return &Enhancer{
		cfg: cfg,
		strategies: []Strategy{
			priorityHandling{},
			slaCompliance{thresholds: cfg.Thresholds},
			clarityRewrite{},
			templateSubstitution{},
		},
		logger: logger,
		now:    time.Now,
	}
}

// Enhance runs the draft through every strategy in order and returns the
// final response, the clamped quality score, and the names of the
// strategies that applied, in execution order.
func (e *Enhancer) Enhance(draft Response, t ticket.Ticket, usable []knowledge.Pattern) (Response, float64, []string) {
	if !e.cfg.Enabled {
		return draft, BaselineQuality, nil
	}

	current := draft
	quality := BaselineQuality
	var applied []string

	for _, s := range e.strategies {
		in := Input{Response: current, Ticket: t, Patterns: usable, Now: e.now()}
		out, delta, ok := e.runStrategy(s, in)
		if !ok {
			continue
		}
		current = out
		quality = clamp01(quality + clampDelta(delta))
		applied = append(applied, s.Name())
	}

	return current, quality, applied
}

// runStrategy isolates a single strategy: a panic inside it degrades to a
// no-op and bumps the fault counter. The pipeline itself never aborts on
// a strategy failure.
func (e *Enhancer) runStrategy(s Strategy, in Input) (out Response, delta float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.faults.Add(1)
			e.logger.Warn("enhancement strategy fault, degraded to no-op",
				zap.String("strategy", s.Name()),
				zap.Int("ticket", in.Ticket.Number),
				zap.Any("panic", r))
			out, delta, ok = in.Response, 0, false
		}
	}()
	return s.Apply(in)
}

// StrategyFaults reports how many strategy invocations were degraded.
func (e *Enhancer) StrategyFaults() int64 {
	return e.faults.Load()
}

// Enabled reports the kill-switch state.
func (e *Enhancer) Enabled() bool { return e.cfg.Enabled }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampDelta(d float64) float64 {
	if d < -1 {
		return -1
	}
	if d > 1 {
		return 1
	}
	return d
}
