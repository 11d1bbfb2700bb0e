// Package knowledge implements the durable knowledge store: learned
// response patterns, append-only quality records, and the aggregate views
// operators read. Persistence is SQLite with a Ristretto read cache in
// front of pattern lookups.
package knowledge

import (
	"time"
)

// MinSignificantSamples is the evidence floor below which an aged-out
// pattern may be removed by cleanup. Patterns at or above the floor are
// retained regardless of age.
const MinSignificantSamples = 100

// Pattern is a learned association between a ticket feature key and a
// response template, with the evidence accumulated for it. SuccessScore is
// an exact running mean of observed quality; together with SampleCount it
// replaces a per-pattern outcome history.
type Pattern struct {
	Key          string    `json:"key"`
	Template     string    `json:"template"`
	SampleCount  int       `json:"sample_count"`
	SuccessScore float64   `json:"success_score"`
	LastUsed     time.Time `json:"last_used"`
}

// QualityRecord is one processed ticket's outcome. Records are append-only
// and are the source of truth for future learning.
type QualityRecord struct {
	ID                   string    `json:"id"`
	TicketNumber         int       `json:"ticket_number"`
	PatternKeys          []string  `json:"pattern_keys"`
	QualityScore         float64   `json:"quality_score"`
	EnhancementsApplied  []string  `json:"enhancements_applied"`
	Timestamp            time.Time `json:"timestamp"`
}

// Stats is the operator-facing aggregate over the store.
type Stats struct {
	TotalPatterns        int     `json:"total_patterns"`
	TotalQualityRecords  int     `json:"total_quality_records"`
	AvgSuccessScore      float64 `json:"avg_success_score"`
	SignificantPatterns  int     `json:"significant_patterns"`
	RecentRecords7d      int     `json:"recent_records_7d"`
}

// Snapshot is a read-only dump of the store for export. It is derived on
// demand, never stored.
type Snapshot struct {
	ExportedAt time.Time       `json:"exported_at"`
	Stats      Stats           `json:"stats"`
	Patterns   []Pattern       `json:"patterns"`
	Records    []QualityRecord `json:"records"`
}
