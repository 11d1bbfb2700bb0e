package agent

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intelligent-ticket-agent/internal/ticket"
)

func entry(number int, title string) HistoryEntry {
	return HistoryEntry{
		Ticket:    ticket.Ticket{Number: number, Title: title, Description: "d"},
		Summary:   "s",
		Response:  "r",
		Quality:   0.6,
		Timestamp: time.Now().UTC(),
	}
}

func TestHistoryEviction(t *testing.T) {
	h, err := NewHistory(3)
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		h.Add(entry(i, fmt.Sprintf("ticket %d", i)))
	}

	assert.Equal(t, 3, h.Len())
	_, ok := h.Get(1)
	assert.False(t, ok, "oldest entries evicted")
	_, ok = h.Get(5)
	assert.True(t, ok)
}

func TestHistoryRecentNewestFirst(t *testing.T) {
	h, err := NewHistory(10)
	require.NoError(t, err)

	h.Add(entry(1, "first"))
	h.Add(entry(2, "second"))
	h.Add(entry(3, "third"))

	got := h.Recent()
	require.Len(t, got, 3)
	assert.Equal(t, 3, got[0].Ticket.Number)
	assert.Equal(t, 1, got[2].Ticket.Number)
}

func TestHistoryReplacesSameNumber(t *testing.T) {
	h, err := NewHistory(10)
	require.NoError(t, err)

	h.Add(entry(1, "old title"))
	h.Add(entry(1, "new title"))

	assert.Equal(t, 1, h.Len())
	e, ok := h.Get(1)
	require.True(t, ok)
	assert.Equal(t, "new title", e.Ticket.Title)
}

func TestHistorySearch(t *testing.T) {
	h, err := NewHistory(10)
	require.NoError(t, err)

	h.Add(entry(101, "Login fails"))
	h.Add(entry(202, "Payment declined"))

	assert.Len(t, h.Search("LOGIN"), 1)
	assert.Len(t, h.Search("202"), 1)
	assert.Len(t, h.Search("nothing"), 0)
	assert.Nil(t, h.Search("  "))
}

func TestHistoryDefaultSize(t *testing.T) {
	h, err := NewHistory(0)
	require.NoError(t, err)
	h.Add(entry(1, "t"))
	assert.Equal(t, 1, h.Len())
}

func TestHistoryClear(t *testing.T) {
	h, err := NewHistory(10)
	require.NoError(t, err)
	h.Add(entry(1, "t"))
	h.Clear()
	assert.Zero(t, h.Len())
}
