// Package ticket defines the support ticket model, its validation and
// normalization rules, and the feature extraction used for pattern matching.
package ticket

import (
	"strconv"
	"time"

	"github.com/intelligent-ticket-agent/internal/jsonx"
)

// Priority is the ticket urgency class. Higher classes carry tighter SLA
// deadlines.
type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
	PriorityP4 Priority = "P4"
)

// Valid reports whether p is one of the recognized priority classes.
func (p Priority) Valid() bool {
	switch p {
	case PriorityP1, PriorityP2, PriorityP3, PriorityP4:
		return true
	}
	return false
}

// State is the lifecycle state of a ticket at the source tracker.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
	StateOther  State = "other"
)

// Comment is a single entry in a ticket's discussion thread.
type Comment struct {
	Author string    `json:"author,omitempty"`
	Body   string    `json:"body"`
	Time   time.Time `json:"time,omitempty"`
}

// Ticket is one support ticket as handed to the orchestrator. It is
// immutable for the duration of a processing attempt; normalization
// happens once, before processing starts.
type Ticket struct {
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedTime time.Time `json:"created_time"`
	State       State     `json:"state"`
	Priority    Priority  `json:"priority,omitempty"`
	Owner       string    `json:"owner,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	Comments    []Comment `json:"comments,omitempty"`
}

// FlexInt accepts both JSON numbers and numeric strings. Ticket sources
// disagree on whether the ticket number is a string, so ingestion coerces.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler for FlexInt.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	if len(data) >= 2 && data[0] == '"' {
		var s string
		if err := jsonx.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*f = FlexInt(n)
		return nil
	}
	var n int
	if err := jsonx.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexInt(n)
	return nil
}

// Payload is the loosely-typed wire form of a ticket as received from a
// ticket source. Fields may be missing or partially typed; Normalize
// converts a Payload into a validated Ticket.
type Payload struct {
	Number      FlexInt   `json:"number"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedTime string    `json:"created_time"`
	State       string    `json:"state"`
	Priority    string    `json:"priority"`
	Owner       string    `json:"owner"`
	Labels      []string  `json:"labels"`
	Comments    []Comment `json:"comments"`
}
