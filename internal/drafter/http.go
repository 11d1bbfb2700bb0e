package drafter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/intelligent-ticket-agent/internal/jsonx"
	"github.com/intelligent-ticket-agent/internal/ticket"
)

// DefaultTimeout bounds a single drafting call.
const DefaultTimeout = 30 * time.Second

// HTTPDrafter calls an external drafting service over HTTP. The service
// wraps whichever LLM backs it; the core only sees summary and response
// text.
type HTTPDrafter struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPDrafter creates a drafter against the service at baseURL. A zero
// timeout selects DefaultTimeout.
func NewHTTPDrafter(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPDrafter {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &HTTPDrafter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type draftRequest struct {
	Ticket ticket.Ticket `json:"ticket"`
	Hints  *Hints        `json:"hints,omitempty"`
}

// Draft implements Drafter. Timeouts surface as ErrUpstreamTimeout, every
// other transport or status failure as ErrUpstreamUnavailable.
func (d *HTTPDrafter) Draft(ctx context.Context, t ticket.Ticket, hints Hints) (Result, error) {
	req := draftRequest{Ticket: t}
	if !hints.Empty() {
		req.Hints = &hints
	}
	body, err := jsonx.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("encode draft request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/api/draft", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build draft request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return Result{}, fmt.Errorf("%w: ticket %d: %v", ErrUpstreamTimeout, t.Number, err)
		}
		return Result{}, fmt.Errorf("%w: ticket %d: %v", ErrUpstreamUnavailable, t.Number, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%w: ticket %d: status %d", ErrUpstreamUnavailable, t.Number, resp.StatusCode)
	}

	var result Result
	if err := jsonx.DecodeBody(resp.Body, &result); err != nil {
		return Result{}, fmt.Errorf("%w: ticket %d: decode: %v", ErrUpstreamUnavailable, t.Number, err)
	}

	d.logger.Debug("draft obtained",
		zap.Int("ticket", t.Number),
		zap.Bool("hinted", !hints.Empty()))
	return result, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}
