// Package sla computes SLA deadlines and breach status for tickets and
// defines the alert notifier contract.
package sla

import (
	"math"
	"time"

	"github.com/intelligent-ticket-agent/internal/ticket"
)

// Thresholds maps a priority class to the maximum allowed time from
// ticket creation to response.
type Thresholds map[ticket.Priority]time.Duration

// DefaultThresholds are the stock response-time commitments.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ticket.PriorityP1: 2 * time.Hour,
		ticket.PriorityP2: 4 * time.Hour,
		ticket.PriorityP3: 24 * time.Hour,
		ticket.PriorityP4: 48 * time.Hour,
	}
}

// For returns the threshold for a priority. Unknown or absent priorities
// fall back to the P3 window, matching how tickets without an explicit
// class are triaged.
func (t Thresholds) For(p ticket.Priority) time.Duration {
	if d, ok := t[p]; ok {
		return d
	}
	return 24 * time.Hour
}

// Status is the SLA position of one ticket at a point in time.
type Status struct {
	Priority       ticket.Priority `json:"priority"`
	Deadline       time.Time       `json:"deadline"`
	Breached       bool            `json:"breached"`
	ElapsedHours   float64         `json:"elapsed_hours"`
	ThresholdHours float64         `json:"threshold_hours"`
	RemainingHours float64         `json:"remaining_hours"`
}

// Breach is the alert payload sent to the notifier when a deadline has
// passed.
type Breach struct {
	TicketNumber   int             `json:"ticket_number"`
	Priority       ticket.Priority `json:"priority"`
	ElapsedHours   float64         `json:"elapsed_hours"`
	ThresholdHours float64         `json:"threshold_hours"`
	BreachTime     time.Time       `json:"breach_time"`
}

// Check computes the SLA status of a ticket at the given instant and, on
// breach, the alert payload.
func Check(t ticket.Ticket, now time.Time, th Thresholds) (Status, *Breach) {
	window := th.For(t.Priority)
	deadline := t.CreatedTime.Add(window)
	elapsed := now.Sub(t.CreatedTime)

	st := Status{
		Priority:       t.Priority,
		Deadline:       deadline,
		Breached:       now.After(deadline),
		ElapsedHours:   round2(elapsed.Hours()),
		ThresholdHours: window.Hours(),
		RemainingHours: round2(deadline.Sub(now).Hours()),
	}
	if !st.Breached {
		return st, nil
	}
	return st, &Breach{
		TicketNumber:   t.Number,
		Priority:       t.Priority,
		ElapsedHours:   st.ElapsedHours,
		ThresholdHours: st.ThresholdHours,
		BreachTime:     now,
	}
}

func round2(h float64) float64 {
	return math.Round(h*100) / 100
}
