// ABOUTME: Tests for the history cache: ordering, dedup, cursor advancement.
// ABOUTME: Covers backward pagination termination and live-edge appends.

package timeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// msg builds a test message whose id and timestamp both derive from seq,
// so chronological order and id order agree.
func msg(seq int) Message {
	return Message{
		ID:             fmt.Sprintf("msg-%03d", seq),
		ConversationID: "abc-123",
		Sender:         SenderCustomer,
		Type:           MessageTypeMessage,
		Timestamp:      baseTime.Add(time.Duration(seq) * time.Minute),
		Content:        fmt.Sprintf("message %d", seq),
	}
}

// wirePage returns messages [from..to] in wire order (newest first).
func wirePage(from, to int) []Message {
	out := make([]Message, 0, to-from+1)
	for i := to; i >= from; i-- {
		out = append(out, msg(i))
	}
	return out
}

func TestCache_InitialFetch(t *testing.T) {
	c := NewCache("abc-123", 20)

	cursor, ok := c.BeginFetch()
	require.True(t, ok)
	assert.Empty(t, cursor, "initial fetch carries no cursor")

	c.CompleteFetch(wirePage(26, 45))

	tl := c.Timeline()
	require.Len(t, tl, 20)
	assert.Equal(t, "msg-026", tl[0].ID)
	assert.Equal(t, "msg-045", tl[19].ID)
	assert.False(t, c.Exhausted(), "full page does not exhaust history")
}

func TestCache_TimelineStrictlyOrdered(t *testing.T) {
	c := NewCache("abc-123", 20)

	_, ok := c.BeginFetch()
	require.True(t, ok)
	c.CompleteFetch(wirePage(26, 45))

	_, ok = c.BeginFetch()
	require.True(t, ok)
	c.CompleteFetch(wirePage(6, 25))

	// Live messages arrive after history.
	assert.True(t, c.AppendLive(msg(46)))
	assert.True(t, c.AppendLive(msg(47)))

	tl := c.Timeline()
	require.Len(t, tl, 42)
	seen := make(map[string]bool)
	for i := 1; i < len(tl); i++ {
		assert.False(t, tl[i].Timestamp.Before(tl[i-1].Timestamp),
			"timeline out of order at index %d", i)
	}
	for _, m := range tl {
		assert.False(t, seen[m.ID], "duplicate id %s", m.ID)
		seen[m.ID] = true
	}
}

func TestCache_ScenarioFortyFiveMessages(t *testing.T) {
	// 45 historical messages, page limit 20: three fetches, then done.
	c := NewCache("abc-123", 20)

	cursor, ok := c.BeginFetch()
	require.True(t, ok)
	require.Empty(t, cursor)
	c.CompleteFetch(wirePage(26, 45))

	cursor, ok = c.BeginFetch()
	require.True(t, ok)
	assert.Equal(t, "msg-026", cursor)
	c.CompleteFetch(wirePage(6, 25))

	cursor, ok = c.BeginFetch()
	require.True(t, ok)
	assert.Equal(t, "msg-006", cursor)
	c.CompleteFetch(wirePage(1, 5)) // 5 < 20: history exhausted

	assert.True(t, c.Exhausted())
	_, ok = c.BeginFetch()
	assert.False(t, ok, "no further fetches after a short page")

	tl := c.Timeline()
	require.Len(t, tl, 45)
	assert.Equal(t, "msg-001", tl[0].ID)
	assert.Equal(t, "msg-045", tl[44].ID)
}

func TestCache_SingleFlight(t *testing.T) {
	c := NewCache("abc-123", 20)

	_, ok := c.BeginFetch()
	require.True(t, ok)

	_, ok = c.BeginFetch()
	assert.False(t, ok, "second fetch must not start while one is in flight")

	c.CompleteFetch(wirePage(26, 45))
	_, ok = c.BeginFetch()
	assert.True(t, ok, "slot released after completion")
}

func TestCache_AbortFetchLeavesCacheUntouched(t *testing.T) {
	c := NewCache("abc-123", 20)

	_, ok := c.BeginFetch()
	require.True(t, ok)
	c.CompleteFetch(wirePage(26, 45))

	_, ok = c.BeginFetch()
	require.True(t, ok)
	c.AbortFetch()

	assert.Equal(t, 20, c.Len())
	assert.False(t, c.Exhausted())

	cursor, ok := c.BeginFetch()
	require.True(t, ok)
	assert.Equal(t, "msg-026", cursor, "cursor unchanged after aborted fetch")
}

func TestCache_EmptyPageExhausts(t *testing.T) {
	c := NewCache("abc-123", 20)

	_, ok := c.BeginFetch()
	require.True(t, ok)
	c.CompleteFetch(nil)

	assert.True(t, c.Exhausted())
	assert.Equal(t, 0, c.Len())
}

func TestCache_AppendLive_Dedup(t *testing.T) {
	c := NewCache("abc-123", 20)

	_, ok := c.BeginFetch()
	require.True(t, ok)
	c.CompleteFetch(wirePage(26, 45))

	// Same message delivered twice: second merge is a no-op.
	assert.True(t, c.AppendLive(msg(46)))
	before := c.Timeline()
	assert.False(t, c.AppendLive(msg(46)))
	assert.Equal(t, before, c.Timeline())

	// A live duplicate of an already-fetched message is also dropped.
	assert.False(t, c.AppendLive(msg(45)))
	assert.Equal(t, 21, c.Len())
}

func TestCache_AppendLive_EmptyCache(t *testing.T) {
	// Live messages can arrive before any history was fetched.
	c := NewCache("abc-123", 20)

	assert.True(t, c.AppendLive(msg(1)))
	assert.True(t, c.AppendLive(msg(2)))

	tl := c.Timeline()
	require.Len(t, tl, 2)
	assert.Equal(t, "msg-001", tl[0].ID)
	assert.Equal(t, "msg-002", tl[1].ID)
}

func TestCache_FetchDedupsOverlappingPage(t *testing.T) {
	// The platform may return a page that overlaps already-cached ids;
	// the overlap is dropped, not duplicated.
	c := NewCache("abc-123", 20)

	_, ok := c.BeginFetch()
	require.True(t, ok)
	c.CompleteFetch(wirePage(26, 45))

	_, ok = c.BeginFetch()
	require.True(t, ok)
	c.CompleteFetch(wirePage(25, 44))

	assert.Equal(t, 21, c.Len())
	tl := c.Timeline()
	assert.Equal(t, "msg-025", tl[0].ID)
}

func TestCache_LimitFallback(t *testing.T) {
	c := NewCache("abc-123", 0)
	assert.Equal(t, DefaultPageLimit, c.Limit())
}
