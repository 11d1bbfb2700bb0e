package knowledge

import (
	"context"
	"errors"

	"github.com/intelligent-ticket-agent/internal/ticket"
)

// ErrStoreUnavailable wraps any infrastructure failure of the backing
// store. Readers degrade to "no patterns available"; writers must surface
// it, never swallow it.
var ErrStoreUnavailable = errors.New("knowledge store unavailable")

// PatternUpdate names one pattern touched by an outcome. A non-empty
// Template replaces the stored payload; an empty one leaves it alone.
type PatternUpdate struct {
	Key      string
	Template string
}

// Store is the knowledge repository contract. A single implementation
// backs all agents in a process; per-pattern read-modify-write is
// serialized inside the store.
type Store interface {
	// FindPatterns returns the patterns matching the feature set, ranked
	// by success score descending, ties broken by higher sample count,
	// then more recent last use. The lookup is bounded; an empty slice
	// means no match.
	FindPatterns(ctx context.Context, f ticket.Features) ([]Pattern, error)

	// RecordOutcome atomically appends the quality record and applies the
	// incremental-mean update to every referenced pattern:
	//
	//	score' = score + (quality - score) / (count + 1)
	//	count' = count + 1
	//
	// Keys without an existing pattern are seeded (count 0) inside the
	// same transaction, so the first outcome yields score = quality.
	RecordOutcome(ctx context.Context, rec QualityRecord, updates []PatternUpdate) error

	// Cleanup removes quality records older than the cutoff and patterns
	// whose last use predates it AND whose sample count is below
	// MinSignificantSamples. Returns the number of rows removed.
	Cleanup(ctx context.Context, olderThanDays int) (int, error)

	// Stats computes the aggregate view without blocking writers.
	Stats(ctx context.Context) (Stats, error)

	// Export produces a full read-only snapshot for operators.
	Export(ctx context.Context) (Snapshot, error)

	// Close releases the backing resources.
	Close() error
}
