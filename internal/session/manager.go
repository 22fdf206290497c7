// ABOUTME: Session context manager: owns the active conversation identity.
// ABOUTME: Arbitrates switching, epoch-guards stale completions, glues all components.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/opdesk/internal/draft"
	"github.com/2389/opdesk/internal/live"
	"github.com/2389/opdesk/internal/metrics"
	"github.com/2389/opdesk/internal/scroll"
	"github.com/2389/opdesk/internal/timeline"
	"github.com/2389/opdesk/internal/typing"
)

// ErrNoActiveConversation is returned for operations that need an open
// conversation when none is selected.
var ErrNoActiveConversation = errors.New("no active conversation")

// State tracks where the manager is in the conversation lifecycle.
type State string

const (
	StateNone      State = "none"
	StateSwitching State = "switching"
	StateActive    State = "active"
)

// Conn is the manager's view of a live channel. Satisfied by
// live.Channel; faked in tests.
type Conn interface {
	SendTyping(isTyping bool, sessionID string) error
	SendMessage(content string, msgType timeline.MessageType, sender timeline.Sender) error
	Close()
}

// Dialer establishes a live channel. The production dialer wraps
// live.Dial; tests substitute their own.
type Dialer func(ctx context.Context, socketURL, conversationID string, onFrame func([]byte), onDisconnect func(error)) (Conn, error)

// Platform is what the manager needs from the request/response surface.
type Platform interface {
	FetchMessages(ctx context.Context, conversationID string, limit int, beforeID string) ([]timeline.Message, error)
	SocketURL(conversationID string) (string, error)
}

// Callbacks notify the UI layer. All fields optional.
type Callbacks struct {
	// MessageAppended fires when a live message lands on the active
	// conversation's timeline.
	MessageAppended func(msg timeline.Message)
	// ContactRefresh fires when the platform signals contact metadata
	// changed; the contact service itself is external.
	ContactRefresh func(contactID string)
	// RemoteTyping fires on the other party's presence changes.
	RemoteTyping func(isTyping bool)
	// Disconnected fires when the live channel drops or could not be
	// established. There is no automatic reconnect.
	Disconnected func(err error)
}

// Deps wires the manager to its collaborators.
type Deps struct {
	Platform  Platform
	Dial      Dialer
	Drafts    *draft.Session
	Typing    *typing.Debouncer
	Scroll    *scroll.Preserver
	PageLimit int
	Callbacks Callbacks
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Manager owns the currently active conversation and orchestrates
// switching: draft flush/restore, live channel teardown/establishment,
// and pagination reset. Every async completion carries the epoch it was
// issued under; completions for a superseded epoch are discarded.
type Manager struct {
	deps    Deps
	logger  *slog.Logger
	metrics *metrics.Metrics

	// switchMu serializes SelectConversation end to end so a switch is
	// observed as one atomic transition.
	switchMu sync.Mutex

	mu     sync.Mutex
	state  State
	active string
	epoch  uint64
	cache  *timeline.Cache
	conn   Conn
}

// New creates a manager. Deps.Dial defaults to the production websocket
// dialer when nil.
func New(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.PageLimit <= 0 {
		deps.PageLimit = timeline.DefaultPageLimit
	}
	if deps.Dial == nil {
		deps.Dial = func(ctx context.Context, socketURL, conversationID string, onFrame func([]byte), onDisconnect func(error)) (Conn, error) {
			ch, err := live.Dial(ctx, socketURL, conversationID, onFrame, onDisconnect, deps.Logger)
			if err != nil {
				return nil, err
			}
			return ch, nil
		}
	}
	return &Manager{
		deps:    deps,
		logger:  deps.Logger.With("component", "session"),
		metrics: deps.Metrics,
	}
}

// SelectConversation makes id the active conversation:
//
//  1. flush the outgoing conversation's draft and tear down its channel
//  2. reset pagination and scroll state for the new id
//  3. fetch the initial history page and attach the live channel
//  4. restore the incoming conversation's draft
//
// A failed initial fetch aborts the switch and leaves no conversation
// active. A failed live attach keeps the conversation usable read-only;
// sends will fail with live.ErrNotConnected until the operator reopens.
func (m *Manager) SelectConversation(ctx context.Context, id string) error {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.mu.Lock()
	if m.active == id && m.state == StateActive {
		m.mu.Unlock()
		return nil
	}
	m.epoch++
	epoch := m.epoch
	oldConn := m.conn
	m.conn = nil
	m.active = id
	m.state = StateSwitching
	cache := timeline.NewCache(id, m.deps.PageLimit)
	m.cache = cache
	m.mu.Unlock()

	m.logger.Info("switching conversation", "conversation_id", id)

	// Outgoing conversation: flush typing, close the channel, persist the
	// draft. The draft flush is synchronous so switch-in below reads a
	// settled store.
	m.deps.Typing.Stop()
	if oldConn != nil {
		oldConn.Close()
	}
	if err := m.deps.Drafts.SwitchAway(ctx); err != nil {
		m.logger.Warn("draft flush on switch-away failed", "error", err)
	}

	m.deps.Scroll.Reset()

	// Initial history fetch under this epoch.
	cursor, ok := cache.BeginFetch()
	if !ok {
		// Fresh cache always admits the first fetch.
		return fmt.Errorf("history cache rejected initial fetch")
	}
	msgs, err := m.deps.Platform.FetchMessages(ctx, id, cache.Limit(), cursor)
	if m.staleEpoch(epoch) {
		cache.AbortFetch()
		m.metrics.StaleDropped()
		return nil
	}
	if err != nil {
		cache.AbortFetch()
		m.metrics.FetchFailed()
		m.abandonSwitch(epoch)
		return fmt.Errorf("loading conversation %s: %w", id, err)
	}
	cache.CompleteFetch(msgs)
	m.metrics.PageFetched()

	// Live channel, frames guarded by the epoch captured at switch time.
	merger := live.NewMerger(cache, live.Callbacks{
		MessageAppended: m.deps.Callbacks.MessageAppended,
		ContactRefresh:  m.deps.Callbacks.ContactRefresh,
		RemoteTyping:    m.deps.Callbacks.RemoteTyping,
	}, m.deps.Logger, m.metrics)

	conn := m.attachLive(ctx, id, epoch, merger)

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	m.conn = conn
	m.state = StateActive
	m.mu.Unlock()

	if conn != nil {
		m.deps.Typing.Attach(conn, uuid.New().String())
	}

	// Incoming draft restore happens strictly after switch-away settled.
	if _, err := m.deps.Drafts.SwitchIn(ctx, id); err != nil {
		m.logger.Warn("draft restore failed", "conversation_id", id, "error", err)
	}

	m.logger.Info("conversation active",
		"conversation_id", id,
		"history", cache.Len(),
		"live", conn != nil)
	return nil
}

// attachLive dials the push channel for id. Failure is surfaced through
// the Disconnected callback and leaves the conversation history-only.
func (m *Manager) attachLive(ctx context.Context, id string, epoch uint64, merger *live.Merger) Conn {
	socketURL, err := m.deps.Platform.SocketURL(id)
	if err != nil {
		m.logger.Warn("building socket URL failed", "conversation_id", id, "error", err)
		m.notifyDisconnected(err)
		return nil
	}

	conn, err := m.deps.Dial(ctx, socketURL, id,
		func(raw []byte) {
			if m.staleEpoch(epoch) {
				m.metrics.StaleDropped()
				return
			}
			merger.OnPush(raw)
		},
		func(err error) {
			if m.staleEpoch(epoch) {
				return
			}
			m.mu.Lock()
			m.conn = nil
			m.mu.Unlock()
			m.notifyDisconnected(err)
		},
	)
	if err != nil {
		m.logger.Warn("live channel unavailable", "conversation_id", id, "error", err)
		m.notifyDisconnected(err)
		return nil
	}
	return conn
}

// abandonSwitch rolls the manager back to no active conversation after a
// failed switch, unless a newer switch already took over.
func (m *Manager) abandonSwitch(epoch uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return
	}
	m.active = ""
	m.cache = nil
	m.state = StateNone
}

func (m *Manager) notifyDisconnected(err error) {
	if m.deps.Callbacks.Disconnected != nil {
		m.deps.Callbacks.Disconnected(err)
	}
}

// staleEpoch reports whether the given epoch has been superseded by a
// newer conversation switch.
func (m *Manager) staleEpoch(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch != epoch
}

// FetchOlder loads the next older history page for the active
// conversation. Calls while a fetch is in flight or after history is
// exhausted are no-ops. A failing fetch leaves the cache untouched and is
// returned to the caller; there is no retry.
func (m *Manager) FetchOlder(ctx context.Context) error {
	m.mu.Lock()
	cache := m.cache
	id := m.active
	epoch := m.epoch
	m.mu.Unlock()

	if cache == nil {
		return ErrNoActiveConversation
	}

	cursor, ok := cache.BeginFetch()
	if !ok {
		return nil
	}

	msgs, err := m.deps.Platform.FetchMessages(ctx, id, cache.Limit(), cursor)
	if m.staleEpoch(epoch) {
		cache.AbortFetch()
		m.metrics.StaleDropped()
		return nil
	}
	if err != nil {
		cache.AbortFetch()
		m.metrics.FetchFailed()
		return fmt.Errorf("fetching older history: %w", err)
	}

	cache.CompleteFetch(msgs)
	m.metrics.PageFetched()
	return nil
}

// SendReply sends the reply text over the live channel. On success the
// reply draft clears immediately and the typing burst ends; on failure
// the draft is untouched so nothing the operator typed is lost.
func (m *Manager) SendReply(ctx context.Context, text string) error {
	return m.send(ctx, text, timeline.MessageTypeMessage, draft.FieldReply)
}

// SendNote sends an internal note over the live channel with the same
// draft semantics as SendReply.
func (m *Manager) SendNote(ctx context.Context, text string) error {
	return m.send(ctx, text, timeline.MessageTypeNote, draft.FieldNote)
}

func (m *Manager) send(ctx context.Context, text string, msgType timeline.MessageType, field draft.Field) error {
	m.mu.Lock()
	conn := m.conn
	active := m.active
	m.mu.Unlock()

	if active == "" {
		return ErrNoActiveConversation
	}
	if conn == nil {
		return live.ErrNotConnected
	}

	if err := conn.SendMessage(text, msgType, timeline.SenderAgent); err != nil {
		return fmt.Errorf("sending %s: %w", msgType, err)
	}

	m.deps.Typing.OnSend()
	if err := m.deps.Drafts.Clear(ctx, field); err != nil {
		m.logger.Warn("clearing draft after send failed", "field", field, "error", err)
	}
	return nil
}

// OnKeystroke feeds one editor change into the typing debouncer and the
// draft autosave path.
func (m *Manager) OnKeystroke(reply, note string) {
	m.deps.Typing.OnKeystroke()
	m.deps.Drafts.Edit(reply, note)
}

// Timeline returns the active conversation's merged timeline, oldest
// first. Empty when nothing is selected.
func (m *Manager) Timeline() []timeline.Message {
	m.mu.Lock()
	cache := m.cache
	m.mu.Unlock()

	if cache == nil {
		return nil
	}
	return cache.Timeline()
}

// HistoryExhausted reports whether all older history has been fetched.
func (m *Manager) HistoryExhausted() bool {
	m.mu.Lock()
	cache := m.cache
	m.mu.Unlock()
	return cache != nil && cache.Exhausted()
}

// Active returns the active conversation id, empty when none.
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == "" {
		return StateNone
	}
	return m.state
}

// Connected reports whether a live channel is currently attached.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Close tears down the active conversation: typing flushed, channel
// closed, draft persisted.
func (m *Manager) Close(ctx context.Context) error {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.mu.Lock()
	m.epoch++
	conn := m.conn
	m.conn = nil
	m.active = ""
	m.cache = nil
	m.state = StateNone
	m.mu.Unlock()

	m.deps.Typing.Stop()
	if conn != nil {
		conn.Close()
	}
	if err := m.deps.Drafts.SwitchAway(ctx); err != nil {
		return fmt.Errorf("flushing draft on close: %w", err)
	}
	return nil
}
