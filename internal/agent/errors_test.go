package agent

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/intelligent-ticket-agent/internal/drafter"
	"github.com/intelligent-ticket-agent/internal/knowledge"
	"github.com/intelligent-ticket-agent/internal/ticket"
)

func TestClassify(t *testing.T) {
	verr := &ticket.ValidationError{TicketNumber: 1}

	cases := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"validation", verr, FailValidation},
		{"wrapped validation", fmt.Errorf("wrap: %w", verr), FailValidation},
		{"duplicate", fmt.Errorf("%w: ticket 1", ErrDuplicateRequest), FailDuplicate},
		{"store", fmt.Errorf("%w: disk full", knowledge.ErrStoreUnavailable), FailStoreUnavailable},
		{"upstream timeout", drafter.ErrUpstreamTimeout, FailUpstreamTimeout},
		{"upstream unavailable", drafter.ErrUpstreamUnavailable, FailUpstreamUnavailable},
		{"unknown", errors.New("boom"), FailInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestPipelineErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("%w: ticket 42", ErrDuplicateRequest)
	perr := &PipelineError{TicketNumber: 42, Step: StepFeaturesExtracted, Kind: FailDuplicate, Err: cause}

	assert.True(t, errors.Is(perr, ErrDuplicateRequest))
	assert.Contains(t, perr.Error(), "FEATURES_EXTRACTED")
	assert.Contains(t, perr.Error(), "duplicate_request")
}
