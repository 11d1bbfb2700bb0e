package agent

import (
	"errors"
	"fmt"

	"github.com/intelligent-ticket-agent/internal/drafter"
	"github.com/intelligent-ticket-agent/internal/knowledge"
	"github.com/intelligent-ticket-agent/internal/ticket"
)

// ErrDuplicateRequest is returned when a ticket number has already been
// fully processed in this process lifetime. It is an idempotency guard,
// not a system fault.
var ErrDuplicateRequest = errors.New("duplicate request")

// FailureKind is the stable machine-readable classification attached to
// every pipeline failure.
type FailureKind string

const (
	FailValidation          FailureKind = "validation_error"
	FailDuplicate           FailureKind = "duplicate_request"
	FailStoreUnavailable    FailureKind = "store_unavailable"
	FailUpstreamUnavailable FailureKind = "upstream_unavailable"
	FailUpstreamTimeout     FailureKind = "upstream_timeout"
	FailInternal            FailureKind = "internal"
)

// PipelineError is a terminal pipeline failure: the step it happened at,
// its classification, and the underlying cause.
type PipelineError struct {
	TicketNumber int
	Step         Step
	Kind         FailureKind
	Err          error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("ticket %d failed at %s (%s): %v", e.TicketNumber, e.Step, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Classify maps an underlying error onto its failure kind.
func Classify(err error) FailureKind {
	var verr *ticket.ValidationError
	switch {
	case errors.As(err, &verr):
		return FailValidation
	case errors.Is(err, ErrDuplicateRequest):
		return FailDuplicate
	case errors.Is(err, knowledge.ErrStoreUnavailable):
		return FailStoreUnavailable
	case errors.Is(err, drafter.ErrUpstreamTimeout):
		return FailUpstreamTimeout
	case errors.Is(err, drafter.ErrUpstreamUnavailable):
		return FailUpstreamUnavailable
	default:
		return FailInternal
	}
}
