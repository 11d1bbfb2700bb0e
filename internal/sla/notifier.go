package sla

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/intelligent-ticket-agent/internal/jsonx"
	"github.com/intelligent-ticket-agent/internal/ticket"
)

// Notifier delivers breach alerts. Implementations must be safe for
// concurrent use; the orchestrator calls Alert at most once per processed
// ticket and treats failures as non-fatal.
type Notifier interface {
	Alert(ctx context.Context, t ticket.Ticket, b Breach) error
}

// LogNotifier records breaches in the process log. It is the fallback
// when no alert transport is configured.
type LogNotifier struct {
	Logger *zap.Logger
}

// Alert implements Notifier.
func (n *LogNotifier) Alert(_ context.Context, t ticket.Ticket, b Breach) error {
	n.Logger.Warn("sla breach",
		zap.Int("ticket", b.TicketNumber),
		zap.String("title", t.Title),
		zap.String("priority", string(b.Priority)),
		zap.Float64("elapsed_hours", b.ElapsedHours),
		zap.Float64("threshold_hours", b.ThresholdHours))
	return nil
}

// DefaultBreachSubject is the NATS subject breach alerts publish to.
const DefaultBreachSubject = "tickets.sla.breach"

// NATSNotifier publishes breach alerts to a NATS subject so downstream
// consumers (paging, email bridges) can fan them out.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewNATSNotifier connects to the NATS server at url. An empty subject
// selects DefaultBreachSubject.
func NewNATSNotifier(url, subject string, logger *zap.Logger) (*NATSNotifier, error) {
	conn, err := nats.Connect(url, nats.Name("ticket-agent-sla"))
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	if subject == "" {
		subject = DefaultBreachSubject
	}
	return &NATSNotifier{conn: conn, subject: subject, logger: logger}, nil
}

// Alert implements Notifier by publishing the breach payload as JSON.
func (n *NATSNotifier) Alert(_ context.Context, t ticket.Ticket, b Breach) error {
	payload, err := jsonx.Marshal(struct {
		Breach
		Title string `json:"title"`
		Owner string `json:"owner,omitempty"`
	}{Breach: b, Title: t.Title, Owner: t.Owner})
	if err != nil {
		return fmt.Errorf("encode breach alert: %w", err)
	}
	if err := n.conn.Publish(n.subject, payload); err != nil {
		return fmt.Errorf("publish breach alert: %w", err)
	}
	n.logger.Info("sla breach alert published",
		zap.Int("ticket", b.TicketNumber),
		zap.String("subject", n.subject))
	return nil
}

// Close drains and closes the NATS connection.
func (n *NATSNotifier) Close() {
	n.conn.Drain()
}
