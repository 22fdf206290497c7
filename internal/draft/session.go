// ABOUTME: Per-conversation draft editing session with debounced autosave.
// ABOUTME: Handles switch-away/switch-in, the suppression window, and clear-on-send.

package draft

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/2389/opdesk/internal/metrics"
)

// Autosave timing defaults, overridable through SessionConfig.
const (
	DefaultAutosaveDebounce  = 500 * time.Millisecond
	DefaultSuppressionWindow = 100 * time.Millisecond
)

// State describes what the session is currently doing. Saving is a
// debounced side effect, not a blocking state: edits keep flowing while a
// flush is pending.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateEditing State = "editing"
	StateSaving  State = "saving"
)

// SessionConfig tunes the autosave timers. Zero values fall back to the
// defaults.
type SessionConfig struct {
	AutosaveDebounce  time.Duration
	SuppressionWindow time.Duration
}

// Session tracks the live reply/note text for the active conversation and
// keeps the store in sync. All state lives in one place and is passed by
// reference into the timer callback, so a stale timer can never read a
// desynchronized shadow copy.
type Session struct {
	store   Store
	cfg     SessionConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu             sync.Mutex
	conversationID string
	reply          string
	note           string
	state          State
	timer          *time.Timer
	suppressUntil  time.Time
}

// NewSession creates a session backed by the given store.
func NewSession(store Store, cfg SessionConfig, logger *slog.Logger, m *metrics.Metrics) *Session {
	if cfg.AutosaveDebounce <= 0 {
		cfg.AutosaveDebounce = DefaultAutosaveDebounce
	}
	if cfg.SuppressionWindow <= 0 {
		cfg.SuppressionWindow = DefaultSuppressionWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		store:   store,
		cfg:     cfg,
		logger:  logger.With("component", "drafts"),
		metrics: m,
		state:   StateIdle,
	}
}

// SwitchAway flushes the outgoing conversation's draft synchronously:
// trimmed non-empty text is persisted, empty text removes any stored
// entry. The pending autosave timer is cancelled so it cannot fire against
// the next conversation. Must complete before SwitchIn reads storage.
func (s *Session) SwitchAway(ctx context.Context) error {
	s.mu.Lock()
	id := s.conversationID
	reply := s.reply
	note := s.note
	s.cancelTimerLocked()
	s.conversationID = ""
	s.reply = ""
	s.note = ""
	s.state = StateIdle
	s.mu.Unlock()

	if id == "" {
		return nil
	}

	if err := s.flushField(ctx, id, FieldReply, reply); err != nil {
		return err
	}
	if err := s.flushField(ctx, id, FieldNote, note); err != nil {
		return err
	}
	return nil
}

// flushField persists or removes one field depending on its trimmed text.
func (s *Session) flushField(ctx context.Context, conversationID string, field Field, text string) error {
	if strings.TrimSpace(text) == "" {
		if err := s.store.Delete(ctx, conversationID, field); err != nil {
			return fmt.Errorf("removing %s draft: %w", field, err)
		}
		return nil
	}
	if err := s.store.Save(ctx, conversationID, field, text); err != nil {
		return fmt.Errorf("persisting %s draft: %w", field, err)
	}
	s.metrics.DraftSaved()
	return nil
}

// SwitchIn loads the persisted draft for the incoming conversation and
// opens the suppression window during which autosave fires are skipped.
// The window prevents a stale debounce timer from overwriting the text
// that was just loaded.
func (s *Session) SwitchIn(ctx context.Context, conversationID string) (Draft, error) {
	s.mu.Lock()
	s.state = StateLoading
	s.mu.Unlock()

	d, err := s.store.Load(ctx, conversationID)
	if err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		return Draft{}, fmt.Errorf("loading draft: %w", err)
	}

	s.mu.Lock()
	s.conversationID = conversationID
	s.reply = d.Reply
	s.note = d.Note
	s.suppressUntil = time.Now().Add(s.cfg.SuppressionWindow)
	s.state = StateIdle
	s.mu.Unlock()

	s.logger.Debug("draft loaded",
		"conversation_id", conversationID,
		"has_reply", d.Reply != "",
		"has_note", d.Note != "")
	return d, nil
}

// Edit records the current editor text and (re)arms the autosave debounce.
func (s *Session) Edit(reply, note string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conversationID == "" {
		return
	}

	s.reply = reply
	s.note = note
	s.state = StateEditing

	id := s.conversationID
	s.cancelTimerLocked()
	s.timer = time.AfterFunc(s.cfg.AutosaveDebounce, func() {
		s.autosave(id)
	})
}

// autosave is the debounce fire path. It skips inside the suppression
// window and when the active conversation changed since the timer was
// armed.
func (s *Session) autosave(conversationID string) {
	s.mu.Lock()
	if s.conversationID != conversationID {
		s.mu.Unlock()
		return
	}
	if time.Now().Before(s.suppressUntil) {
		s.logger.Debug("autosave suppressed after switch-in", "conversation_id", conversationID)
		s.mu.Unlock()
		return
	}
	reply := s.reply
	note := s.note
	s.state = StateSaving
	s.mu.Unlock()

	ctx := context.Background()
	if err := s.saveOrDelete(ctx, conversationID, FieldReply, reply); err != nil {
		s.logger.Warn("autosave failed", "field", FieldReply, "error", err)
	}
	if err := s.saveOrDelete(ctx, conversationID, FieldNote, note); err != nil {
		s.logger.Warn("autosave failed", "field", FieldNote, "error", err)
	}

	s.mu.Lock()
	if s.state == StateSaving {
		s.state = StateIdle
	}
	s.mu.Unlock()
}

func (s *Session) saveOrDelete(ctx context.Context, conversationID string, field Field, text string) error {
	if text == "" {
		return s.store.Delete(ctx, conversationID, field)
	}
	if err := s.store.Save(ctx, conversationID, field, text); err != nil {
		return err
	}
	s.metrics.DraftSaved()
	return nil
}

// Clear removes one field's draft immediately, bypassing the debounce.
// Used after a successful send.
func (s *Session) Clear(ctx context.Context, field Field) error {
	s.mu.Lock()
	id := s.conversationID
	switch field {
	case FieldReply:
		s.reply = ""
	case FieldNote:
		s.note = ""
	}
	s.mu.Unlock()

	if id == "" {
		return nil
	}
	if err := s.store.Delete(ctx, id, field); err != nil {
		return fmt.Errorf("clearing %s draft: %w", field, err)
	}
	s.metrics.DraftCleared()
	return nil
}

// Reply returns the current reply text.
func (s *Session) Reply() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reply
}

// Note returns the current note text.
func (s *Session) Note() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.note
}

// ConversationID returns the conversation the session currently edits.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// cancelTimerLocked stops a pending autosave. Must be called with mu held.
func (s *Session) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
