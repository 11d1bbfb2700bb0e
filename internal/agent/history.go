package agent

import (
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/intelligent-ticket-agent/internal/sla"
	"github.com/intelligent-ticket-agent/internal/ticket"
)

// DefaultHistorySize bounds the in-memory session history.
const DefaultHistorySize = 256

// HistoryEntry is one processed ticket kept for operator lookups.
type HistoryEntry struct {
	Ticket    ticket.Ticket `json:"ticket"`
	Summary   string        `json:"summary"`
	Response  string        `json:"response"`
	Quality   float64       `json:"quality_score"`
	SLA       sla.Status    `json:"sla_status"`
	Timestamp time.Time     `json:"timestamp"`
}

// History is the bounded session history of processed tickets. The oldest
// entries fall out once the bound is reached; durable history lives in the
// knowledge store's quality records, this is only the operator's recent
// view.
type History struct {
	cache *lru.Cache[int, HistoryEntry]
}

// NewHistory creates a history holding up to size entries. A non-positive
// size selects DefaultHistorySize.
func NewHistory(size int) (*History, error) {
	if size <= 0 {
		size = DefaultHistorySize
	}
	c, err := lru.New[int, HistoryEntry](size)
	if err != nil {
		return nil, err
	}
	return &History{cache: c}, nil
}

// Add records a processed ticket, replacing any earlier entry for the
// same number.
func (h *History) Add(e HistoryEntry) {
	h.cache.Add(e.Ticket.Number, e)
}

// Get returns the entry for a ticket number.
func (h *History) Get(number int) (HistoryEntry, bool) {
	return h.cache.Get(number)
}

// Recent returns all retained entries, newest first.
func (h *History) Recent() []HistoryEntry {
	keys := h.cache.Keys()
	out := make([]HistoryEntry, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if e, ok := h.cache.Peek(keys[i]); ok {
			out = append(out, e)
		}
	}
	return out
}

// Search matches entries whose number, title, or description contains the
// query, case-insensitively.
func (h *History) Search(query string) []HistoryEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []HistoryEntry
	for _, e := range h.Recent() {
		if strings.Contains(strconv.Itoa(e.Ticket.Number), q) ||
			strings.Contains(strings.ToLower(e.Ticket.Title), q) ||
			strings.Contains(strings.ToLower(e.Ticket.Description), q) {
			out = append(out, e)
		}
	}
	return out
}

// Len reports the number of retained entries.
func (h *History) Len() int {
	return h.cache.Len()
}

// Clear empties the history.
func (h *History) Clear() {
	h.cache.Purge()
}
