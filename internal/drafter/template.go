package drafter

import (
	"context"
	"fmt"
	"strings"

	"github.com/intelligent-ticket-agent/internal/ticket"
)

// TemplateDrafter is the offline fallback used when no drafting service
// is configured. It produces a deterministic acknowledgement draft from
// the ticket fields alone.
type TemplateDrafter struct{}

// Draft implements Drafter. It never fails.
func (TemplateDrafter) Draft(_ context.Context, t ticket.Ticket, hints Hints) (Result, error) {
	summary := fmt.Sprintf("Issue logged: %s. Requires investigation by the support team.", t.Title)

	steps := []string{
		"Review ticket details",
		"Contact the requester if additional information is needed",
		"Update the ticket status",
		"Assign to the appropriate team member",
	}
	if len(hints.Templates) > 0 {
		steps = append([]string{hints.Templates[0]}, steps...)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for reporting this issue (Ticket #%d). ", t.Number)
	b.WriteString("We have logged your request and our technical team has been notified.\n\n")
	b.WriteString("Next steps:\n")
	for _, s := range steps {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	b.WriteString("\nWe appreciate your patience and will keep you updated on our progress.")

	return Result{Summary: summary, Response: b.String()}, nil
}
