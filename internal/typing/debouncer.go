// ABOUTME: Typing presence debouncer: keystrokes in, start/stop signals out.
// ABOUTME: One idle timer per active conversation, cancelled on send or teardown.

package typing

import (
	"log/slog"
	"sync"
	"time"

	"github.com/2389/opdesk/internal/metrics"
)

// DefaultIdleTimeout is how long after the last keystroke a typing burst
// is considered over.
const DefaultIdleTimeout = 2000 * time.Millisecond

// SignalSender emits presence frames on the live channel. Satisfied by
// live.Channel.
type SignalSender interface {
	SendTyping(isTyping bool, sessionID string) error
}

// Debouncer converts raw keystroke events into at most one started/stopped
// signal pair per continuous burst. State is scoped to the active
// conversation: Attach rebinds the debouncer when the operator switches.
type Debouncer struct {
	idleTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics

	mu        sync.Mutex
	sender    SignalSender
	sessionID string
	typing    bool
	timer     *time.Timer
}

// NewDebouncer creates a debouncer. A non-positive idleTimeout falls back
// to DefaultIdleTimeout.
func NewDebouncer(idleTimeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Debouncer {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Debouncer{
		idleTimeout: idleTimeout,
		logger:      logger.With("component", "typing"),
		metrics:     m,
	}
}

// Attach binds the debouncer to the live channel of the newly active
// conversation. Any state from the previous conversation is discarded
// without emitting: its channel is already being torn down.
func (d *Debouncer) Attach(sender SignalSender, sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cancelTimerLocked()
	d.typing = false
	d.sender = sender
	d.sessionID = sessionID
}

// OnKeystroke handles one keystroke. The first keystroke of a burst emits
// "typing started" and arms the idle timer; subsequent keystrokes only
// reset the timer.
func (d *Debouncer) OnKeystroke() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sender == nil {
		return
	}

	if !d.typing {
		d.typing = true
		d.emitLocked(true)
	}

	d.cancelTimerLocked()
	d.timer = time.AfterFunc(d.idleTimeout, d.onIdle)
}

// onIdle fires when the idle timeout elapses with no further keystrokes.
func (d *Debouncer) onIdle() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.typing {
		return
	}
	d.typing = false
	d.timer = nil
	d.emitLocked(false)
}

// OnSend ends the burst immediately: the idle timer is cancelled and
// "typing stopped" is emitted without waiting for it.
func (d *Debouncer) OnSend() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cancelTimerLocked()
	if !d.typing {
		return
	}
	d.typing = false
	d.emitLocked(false)
}

// Stop tears the debouncer down, flushing a final "stopped" if a burst is
// open. Called before the live channel closes.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cancelTimerLocked()
	if d.typing {
		d.typing = false
		d.emitLocked(false)
	}
	d.sender = nil
	d.sessionID = ""
}

// emitLocked sends a presence signal. Must be called with mu held.
func (d *Debouncer) emitLocked(isTyping bool) {
	if err := d.sender.SendTyping(isTyping, d.sessionID); err != nil {
		d.logger.Warn("typing signal failed", "is_typing", isTyping, "error", err)
		return
	}
	if isTyping {
		d.metrics.TypingStarted()
	} else {
		d.metrics.TypingStopped()
	}
}

// cancelTimerLocked stops the idle timer. Must be called with mu held.
func (d *Debouncer) cancelTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
