// Package learning implements the learning agent: it turns tickets into
// feature keys, asks the knowledge store for matching patterns, scores an
// aggregate confidence, and gates which patterns are trustworthy enough to
// apply downstream.
package learning

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/intelligent-ticket-agent/internal/knowledge"
	"github.com/intelligent-ticket-agent/internal/ticket"
)

// Defaults for the anti-overfitting gate.
const (
	DefaultThreshold  = 0.7
	DefaultMinSamples = 10
)

// Config controls the learner's gate and kill switch.
type Config struct {
	// Enabled is the ENABLE_LEARNING switch. When false, Suggest returns
	// an empty zero-confidence suggestion and Learn is a no-op.
	Enabled bool

	// Threshold is the minimum success score for a pattern to be usable.
	Threshold float64

	// MinSamples is the evidence floor: below it a pattern contributes
	// zero confidence weight and is never usable, whatever its score.
	MinSamples int
}

// DefaultConfig returns the learner defaults with learning enabled.
func DefaultConfig() Config {
	return Config{Enabled: true, Threshold: DefaultThreshold, MinSamples: DefaultMinSamples}
}

// Suggestion is the learner's read-only answer for one ticket.
type Suggestion struct {
	Features   ticket.Features     `json:"features"`
	Patterns   []knowledge.Pattern `json:"patterns,omitempty"`
	Usable     []knowledge.Pattern `json:"usable,omitempty"`
	Confidence float64             `json:"confidence"`
}

// Learner is the learning agent. It holds no mutable state of its own;
// all learned state lives in the store, so Suggest is deterministic and
// side-effect free.
type Learner struct {
	cfg    Config
	store  knowledge.Store
	logger *zap.Logger
}

// New creates a learner over the given store.
func New(cfg Config, store knowledge.Store, logger *zap.Logger) *Learner {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MinSamples == 0 {
		cfg.MinSamples = DefaultMinSamples
	}
	return &Learner{cfg: cfg, store: store, logger: logger}
}

// Usable reports whether a single pattern passes the gate. Both bounds
// are inclusive.
func (l *Learner) Usable(p knowledge.Pattern) bool {
	return p.SampleCount >= l.cfg.MinSamples && p.SuccessScore >= l.cfg.Threshold
}

// Suggest derives the ticket's features, fetches matching patterns, and
// computes the aggregate confidence. A store outage degrades to an empty
// suggestion: reads must never fail the pipeline.
func (l *Learner) Suggest(ctx context.Context, t ticket.Ticket) Suggestion {
	f := ticket.ExtractFeatures(t)
	if !l.cfg.Enabled {
		return Suggestion{Features: f}
	}

	patterns, err := l.store.FindPatterns(ctx, f)
	if err != nil {
		if errors.Is(err, knowledge.ErrStoreUnavailable) {
			l.logger.Warn("pattern lookup degraded to empty",
				zap.Int("ticket", t.Number), zap.Error(err))
			return Suggestion{Features: f}
		}
		l.logger.Error("pattern lookup failed",
			zap.Int("ticket", t.Number), zap.Error(err))
		return Suggestion{Features: f}
	}

	s := Suggestion{Features: f, Patterns: patterns}
	for _, p := range patterns {
		if l.Usable(p) {
			s.Usable = append(s.Usable, p)
		}
	}
	s.Confidence = l.confidence(patterns)
	return s
}

// confidence is the sample-weighted mean success score over the matched
// patterns. Patterns below the evidence floor carry zero weight, so a
// high-scoring but thin pattern cannot inflate trust.
func (l *Learner) confidence(patterns []knowledge.Pattern) float64 {
	var weighted, weight float64
	for _, p := range patterns {
		if p.SampleCount < l.cfg.MinSamples {
			continue
		}
		w := float64(p.SampleCount)
		weighted += p.SuccessScore * w
		weight += w
	}
	if weight == 0 {
		return 0
	}
	return weighted / weight
}

// Learn records a processed ticket's outcome under the ticket's own
// feature key plus every pattern the record references. The write either
// fully commits or the error is returned; there is no partial update.
func (l *Learner) Learn(ctx context.Context, t ticket.Ticket, rec knowledge.QualityRecord, template string) error {
	if !l.cfg.Enabled {
		return nil
	}

	key := ticket.ExtractFeatures(t).Key()
	seen := map[string]struct{}{key: {}}
	updates := []knowledge.PatternUpdate{{Key: key, Template: template}}
	for _, k := range rec.PatternKeys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		updates = append(updates, knowledge.PatternUpdate{Key: k})
	}

	if err := l.store.RecordOutcome(ctx, rec, updates); err != nil {
		return fmt.Errorf("learn ticket %d: %w", t.Number, err)
	}
	l.logger.Debug("outcome recorded",
		zap.Int("ticket", t.Number),
		zap.String("pattern_key", key),
		zap.Float64("quality", rec.QualityScore))
	return nil
}

// Enabled reports the kill-switch state.
func (l *Learner) Enabled() bool { return l.cfg.Enabled }

// MinSamples exposes the evidence floor for status reporting.
func (l *Learner) MinSamples() int { return l.cfg.MinSamples }

// Threshold exposes the usable-score floor for status reporting.
func (l *Learner) Threshold() float64 { return l.cfg.Threshold }
