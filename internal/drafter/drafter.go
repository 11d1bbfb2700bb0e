// Package drafter defines the external summarization and response
// drafting capability. The LLM call itself lives outside the core: this
// package holds the contract, an HTTP client for a drafting service, and
// the offline template fallback.
package drafter

import (
	"context"
	"errors"

	"github.com/intelligent-ticket-agent/internal/ticket"
)

// Infrastructure faults of the drafting capability. The orchestrator
// surfaces these as a FAILED state with the matching cause; it never
// retries internally.
var (
	ErrUpstreamUnavailable = errors.New("drafting upstream unavailable")
	ErrUpstreamTimeout     = errors.New("drafting upstream timeout")
)

// Hints is the optional payload built from usable patterns that steers
// the drafting capability toward learned resolutions.
type Hints struct {
	PatternKeys []string `json:"pattern_keys,omitempty"`
	Templates   []string `json:"templates,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`
}

// Empty reports whether there is anything to send upstream.
func (h Hints) Empty() bool {
	return len(h.PatternKeys) == 0 && len(h.Templates) == 0
}

// Result is the drafted output: a ticket summary and a response draft for
// the requester.
type Result struct {
	Summary  string `json:"summary"`
	Response string `json:"response"`
}

// Drafter produces a summary and draft response for a ticket. Calls must
// honor ctx cancellation; this is one of the two operations in the
// pipeline expected to block.
type Drafter interface {
	Draft(ctx context.Context, t ticket.Ticket, hints Hints) (Result, error)
}
