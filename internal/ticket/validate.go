package ticket

import (
	"fmt"
	"strings"
	"time"
)

// Size limits applied during normalization. Oversized fields are truncated,
// not rejected; only absent required fields fail validation.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 10000
	MaxCommentsCount     = 1000
	MaxLabelsCount       = 20
)

// FieldError describes a single validation failure on one ticket field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates every field failure found on a ticket payload.
// It is the recoverable "fix your input and resubmit" class of failure.
type ValidationError struct {
	TicketNumber int          `json:"ticket_number"`
	Fields       []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("ticket %d: %s: %s", e.TicketNumber, e.Fields[0].Field, e.Fields[0].Message)
	}
	return fmt.Sprintf("ticket %d: %d validation errors", e.TicketNumber, len(e.Fields))
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Normalize validates a raw payload and produces an immutable Ticket.
// Missing required fields (number, title, description, created_time, state)
// reject with *ValidationError. Oversized fields are truncated to their
// limits. Convertible types are coerced (string ticket numbers, unknown
// states collapse to "other").
func Normalize(p Payload) (Ticket, error) {
	verr := &ValidationError{TicketNumber: int(p.Number)}

	if p.Number <= 0 {
		verr.add("number", "required field is missing or non-positive")
	}
	if strings.TrimSpace(p.Title) == "" {
		verr.add("title", "required field is missing or empty")
	}
	if strings.TrimSpace(p.Description) == "" {
		verr.add("description", "required field is missing or empty")
	}
	if strings.TrimSpace(p.State) == "" {
		verr.add("state", "required field is missing or empty")
	}

	var created time.Time
	if strings.TrimSpace(p.CreatedTime) == "" {
		verr.add("created_time", "required field is missing or empty")
	} else {
		var err error
		created, err = parseTime(p.CreatedTime)
		if err != nil {
			verr.add("created_time", "not a recognized timestamp format")
		}
	}

	if p.Priority != "" && !Priority(strings.ToUpper(p.Priority)).Valid() {
		verr.add("priority", "must be one of P1, P2, P3, P4")
	}

	if len(verr.Fields) > 0 {
		return Ticket{}, verr
	}

	t := Ticket{
		Number:      int(p.Number),
		Title:       truncate(strings.TrimSpace(p.Title), MaxTitleLength),
		Description: truncate(p.Description, MaxDescriptionLength),
		CreatedTime: created,
		State:       normalizeState(p.State),
		Owner:       p.Owner,
	}
	if p.Priority != "" {
		t.Priority = Priority(strings.ToUpper(p.Priority))
	}

	t.Labels = dedupeLabels(p.Labels, MaxLabelsCount)
	if len(p.Comments) > MaxCommentsCount {
		t.Comments = append([]Comment(nil), p.Comments[:MaxCommentsCount]...)
	} else if len(p.Comments) > 0 {
		t.Comments = append([]Comment(nil), p.Comments...)
	}

	return t, nil
}

func normalizeState(s string) State {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open", "reopened", "new":
		return StateOpen
	case "closed", "resolved", "done":
		return StateClosed
	default:
		return StateOther
	}
}

// parseTime accepts RFC 3339 plus the date-time variant without zone that
// some trackers emit.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// dedupeLabels lowercases, trims, and de-duplicates labels, keeping first
// occurrence order, then applies the count cap.
func dedupeLabels(labels []string, max int) []string {
	if len(labels) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
		if len(out) == max {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
