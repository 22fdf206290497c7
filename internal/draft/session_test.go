// ABOUTME: Tests for the draft session: round-trips across switches, autosave
// ABOUTME: debounce, the suppression window, and clear-on-send semantics.

package draft

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store for session tests.
type memStore struct {
	mu    sync.Mutex
	rows  map[string]string // "conv\x00field" -> body
	saves int
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]string)}
}

func key(conversationID string, field Field) string {
	return conversationID + "\x00" + string(field)
}

func (m *memStore) Load(_ context.Context, conversationID string) (Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Draft{
		ConversationID: conversationID,
		Reply:          m.rows[key(conversationID, FieldReply)],
		Note:           m.rows[key(conversationID, FieldNote)],
	}, nil
}

func (m *memStore) Save(_ context.Context, conversationID string, field Field, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if text == "" {
		delete(m.rows, key(conversationID, field))
		return nil
	}
	m.rows[key(conversationID, field)] = text
	m.saves++
	return nil
}

func (m *memStore) Delete(_ context.Context, conversationID string, field Field) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, key(conversationID, field))
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) get(conversationID string, field Field) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[key(conversationID, field)]
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// fastConfig keeps timer tests quick while preserving the ordering
// relationships between debounce and suppression.
func fastConfig() SessionConfig {
	return SessionConfig{
		AutosaveDebounce:  40 * time.Millisecond,
		SuppressionWindow: 30 * time.Millisecond,
	}
}

func TestSession_DraftRoundTrip(t *testing.T) {
	store := newMemStore()
	s := NewSession(store, fastConfig(), nil, nil)
	ctx := context.Background()

	// Type "hello" in A, switch to B, come back to A.
	_, err := s.SwitchIn(ctx, "conv-a")
	require.NoError(t, err)
	s.Edit("hello", "")

	require.NoError(t, s.SwitchAway(ctx))
	_, err = s.SwitchIn(ctx, "conv-b")
	require.NoError(t, err)
	s.Edit("something for b", "")
	require.NoError(t, s.SwitchAway(ctx))

	d, err := s.SwitchIn(ctx, "conv-a")
	require.NoError(t, err)
	assert.Equal(t, "hello", d.Reply, "A's draft reflects exactly what was typed")
}

func TestSession_EmptyDraftDoesNotInheritLeftovers(t *testing.T) {
	store := newMemStore()
	s := NewSession(store, fastConfig(), nil, nil)
	ctx := context.Background()

	// A stays empty; B gets text.
	_, err := s.SwitchIn(ctx, "conv-a")
	require.NoError(t, err)
	require.NoError(t, s.SwitchAway(ctx))

	_, err = s.SwitchIn(ctx, "conv-b")
	require.NoError(t, err)
	s.Edit("b text", "")
	require.NoError(t, s.SwitchAway(ctx))

	d, err := s.SwitchIn(ctx, "conv-a")
	require.NoError(t, err)
	assert.Empty(t, d.Reply, "A must not show B's leftover text")
}

func TestSession_SwitchAwayBeforeAutosaveFires(t *testing.T) {
	// Scenario: operator types a note and switches before the debounce
	// fires; switching back within the suppression window still shows it.
	store := newMemStore()
	s := NewSession(store, fastConfig(), nil, nil)
	ctx := context.Background()

	_, err := s.SwitchIn(ctx, "conv-a")
	require.NoError(t, err)
	s.Edit("", "urgent note")

	// Switch away immediately, well inside the 40ms debounce.
	require.NoError(t, s.SwitchAway(ctx))
	assert.Equal(t, "urgent note", store.get("conv-a", FieldNote),
		"switch-away flushes synchronously")

	d, err := s.SwitchIn(ctx, "conv-a")
	require.NoError(t, err)
	assert.Equal(t, "urgent note", d.Note)

	// The cancelled timer must never fire against the reloaded state.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "urgent note", store.get("conv-a", FieldNote))
}

func TestSession_AutosaveDebounce(t *testing.T) {
	store := newMemStore()
	s := NewSession(store, fastConfig(), nil, nil)
	ctx := context.Background()

	_, err := s.SwitchIn(ctx, "conv-a")
	require.NoError(t, err)

	// Wait out the suppression window, then edit rapidly.
	time.Sleep(40 * time.Millisecond)
	s.Edit("h", "")
	s.Edit("he", "")
	s.Edit("hel", "")
	s.Edit("hello", "")

	// Nothing persisted before the debounce elapses.
	assert.Empty(t, store.get("conv-a", FieldReply))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "hello", store.get("conv-a", FieldReply))
	assert.Equal(t, 1, store.saveCount(), "burst of edits coalesces to one save")
}

func TestSession_SuppressionWindowSkipsAutosave(t *testing.T) {
	cfg := SessionConfig{
		// Debounce shorter than suppression so the fire lands inside it.
		AutosaveDebounce:  10 * time.Millisecond,
		SuppressionWindow: 80 * time.Millisecond,
	}
	store := newMemStore()
	require.NoError(t, store.Save(context.Background(), "conv-a", FieldReply, "persisted"))
	s := NewSession(store, cfg, nil, nil)
	ctx := context.Background()

	_, err := s.SwitchIn(ctx, "conv-a")
	require.NoError(t, err)
	s.Edit("", "") // editor clears while suppressed

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, "persisted", store.get("conv-a", FieldReply),
		"autosave inside the suppression window must not overwrite the loaded draft")
}

func TestSession_AutosaveRemovesEmptiedDraft(t *testing.T) {
	store := newMemStore()
	require.NoError(t, store.Save(context.Background(), "conv-a", FieldReply, "old"))
	s := NewSession(store, fastConfig(), nil, nil)
	ctx := context.Background()

	_, err := s.SwitchIn(ctx, "conv-a")
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	s.Edit("", "")
	time.Sleep(100 * time.Millisecond)

	assert.Empty(t, store.get("conv-a", FieldReply), "emptied draft is removed, not stored")
}

func TestSession_ClearBypassesDebounce(t *testing.T) {
	store := newMemStore()
	s := NewSession(store, fastConfig(), nil, nil)
	ctx := context.Background()

	_, err := s.SwitchIn(ctx, "conv-a")
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)
	s.Edit("about to send", "keep this note")
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, "about to send", store.get("conv-a", FieldReply))

	require.NoError(t, s.Clear(ctx, FieldReply))

	assert.Empty(t, store.get("conv-a", FieldReply), "cleared immediately on send")
	assert.Equal(t, "keep this note", store.get("conv-a", FieldNote), "other field untouched")
	assert.Empty(t, s.Reply())
}

func TestSession_WhitespaceOnlyDraftIsDiscarded(t *testing.T) {
	store := newMemStore()
	s := NewSession(store, fastConfig(), nil, nil)
	ctx := context.Background()

	_, err := s.SwitchIn(ctx, "conv-a")
	require.NoError(t, err)
	s.Edit("   \n\t ", "")
	require.NoError(t, s.SwitchAway(ctx))

	assert.Empty(t, store.get("conv-a", FieldReply))
}

func TestSession_EditWithoutConversationIsIgnored(t *testing.T) {
	store := newMemStore()
	s := NewSession(store, fastConfig(), nil, nil)

	s.Edit("orphan", "")
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 0, store.saveCount())
	assert.Empty(t, s.Reply())
}

func TestSession_StateTransitions(t *testing.T) {
	store := newMemStore()
	s := NewSession(store, fastConfig(), nil, nil)
	ctx := context.Background()

	assert.Equal(t, StateIdle, s.State())

	_, err := s.SwitchIn(ctx, "conv-a")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State())

	time.Sleep(40 * time.Millisecond)
	s.Edit("x", "")
	assert.Equal(t, StateEditing, s.State())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateIdle, s.State(), "saving settles back to idle")
}
