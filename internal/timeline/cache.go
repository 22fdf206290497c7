// ABOUTME: History cache with cursor-based backward pagination for one conversation.
// ABOUTME: Owns chronological ordering, id dedup, and single-flight fetch arbitration.

package timeline

import (
	"sync"
)

// DefaultPageLimit is the page size requested from the platform when the
// config does not override it.
const DefaultPageLimit = 20

// Cache accumulates fetched history pages and live-merged messages for a
// single conversation. Pages are stored in fetch order: the first fetch is
// the newest page, each subsequent fetch is a progressively older page.
// The timeline is derived by walking pages oldest-fetched-first.
//
// Cursor computation and fetch admission are serialized through
// BeginFetch/CompleteFetch/AbortFetch so that overlapping fetchOlder calls
// cannot race on the cursor.
type Cache struct {
	mu             sync.Mutex
	conversationID string
	limit          int

	// pages[0] is the newest page; each page is stored oldest-first after
	// ingest normalization (the wire delivers newest-first).
	pages     [][]Message
	seen      map[string]struct{}
	exhausted bool
	fetching  bool
}

// NewCache creates an empty cache for the given conversation. A limit of
// zero or less falls back to DefaultPageLimit.
func NewCache(conversationID string, limit int) *Cache {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	return &Cache{
		conversationID: conversationID,
		limit:          limit,
		seen:           make(map[string]struct{}),
	}
}

// ConversationID returns the conversation this cache belongs to.
func (c *Cache) ConversationID() string {
	return c.conversationID
}

// Limit returns the page size the cache was created with.
func (c *Cache) Limit() int {
	return c.limit
}

// BeginFetch reserves the single fetch slot and returns the cursor to use
// for the next request. An empty cursor means "fetch the most recent page"
// (no history loaded yet). ok is false while another fetch is in flight or
// once history is exhausted; callers must not issue a request in that case.
func (c *Cache) BeginFetch() (cursor string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fetching || c.exhausted {
		return "", false
	}
	c.fetching = true

	// Cursor is the id of the oldest message of the most recently
	// appended page. With pages oldest-first internally, that is the head
	// of the last page.
	if n := len(c.pages); n > 0 {
		cursor = c.pages[n-1][0].ID
	}
	return cursor, true
}

// CompleteFetch ingests a fetched page and releases the fetch slot. The
// page is expected in wire order (newest-first); it is reversed on ingest.
// A page shorter than the limit marks history as exhausted. Messages whose
// id is already present are dropped rather than duplicated.
func (c *Cache) CompleteFetch(msgs []Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fetching {
		return
	}
	c.fetching = false

	if len(msgs) < c.limit {
		c.exhausted = true
	}
	if len(msgs) == 0 {
		return
	}

	page := make([]Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if _, dup := c.seen[m.ID]; dup {
			continue
		}
		c.seen[m.ID] = struct{}{}
		page = append(page, m)
	}
	if len(page) > 0 {
		c.pages = append(c.pages, page)
	}
}

// AbortFetch releases the fetch slot without touching cached pages. Used
// when the request failed or its conversation was switched away from.
func (c *Cache) AbortFetch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetching = false
}

// Fetching reports whether a fetch slot is currently reserved.
func (c *Cache) Fetching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetching
}

// AppendLive adds a push-delivered message at the live edge. Returns false
// when a message with the same id is already cached (duplicate delivery).
// Previously cached pages are never reordered; only the newest page grows.
func (c *Cache) AppendLive(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, dup := c.seen[msg.ID]; dup {
		return false
	}
	c.seen[msg.ID] = struct{}{}

	if len(c.pages) == 0 {
		c.pages = append(c.pages, []Message{msg})
		return true
	}
	c.pages[0] = append(c.pages[0], msg)
	return true
}

// Timeline returns the flattened, oldest-first view of everything cached.
// The slice is a copy and safe to retain.
func (c *Cache) Timeline() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, 0, len(c.seen))
	for i := len(c.pages) - 1; i >= 0; i-- {
		out = append(out, c.pages[i]...)
	}
	return out
}

// Len returns the number of cached messages.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Exhausted reports whether a fetch has already returned a short page,
// meaning no older history exists and no further fetches should be issued.
func (c *Cache) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted
}
