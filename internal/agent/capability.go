package agent

import (
	"time"
)

// Status is the operator-facing view of an agent. Each agent variant
// owns its own metrics; there is no shared mutable base state.
type Status struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Active     bool            `json:"active"`
	StartedAt  time.Time       `json:"started_at"`
	LastActive time.Time       `json:"last_active"`
	Metrics    MetricsSnapshot `json:"metrics"`

	// Sub holds variant-specific sections (learning gate settings,
	// enhancement pipeline state) so the aggregate status stays one
	// document.
	Sub map[string]any `json:"sub,omitempty"`
}

// Capability is the common surface every agent variant exposes to the
// operator: readable status and a health probe. Both must be non-blocking
// with respect to ticket processing.
type Capability interface {
	Status() Status
	Healthy() bool
}
