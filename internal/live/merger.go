// ABOUTME: Live update merger: decodes push frames and extends the timeline's live edge.
// ABOUTME: Control frames are filtered, duplicates dropped, malformed payloads logged.

package live

import (
	"errors"
	"log/slog"

	"github.com/2389/opdesk/internal/metrics"
	"github.com/2389/opdesk/internal/timeline"
	"github.com/2389/opdesk/internal/wire"
)

// Callbacks are the merger's outward notifications. All fields are
// optional; nil callbacks are skipped.
type Callbacks struct {
	// MessageAppended fires after a new message was added at the live edge.
	MessageAppended func(msg timeline.Message)
	// ContactRefresh fires on contact_updated frames. The contact data
	// itself is owned by an external service; the merger only signals.
	ContactRefresh func(contactID string)
	// RemoteTyping fires on typing presence frames from the other party.
	RemoteTyping func(isTyping bool)
}

// Merger consumes raw push payloads for one conversation and applies them
// to the history cache. It never reorders previously cached pages; it only
// extends the newest edge of the timeline.
type Merger struct {
	cache   *timeline.Cache
	cb      Callbacks
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewMerger creates a merger bound to the given cache.
func NewMerger(cache *timeline.Cache, cb Callbacks, logger *slog.Logger, m *metrics.Metrics) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{
		cache:   cache,
		cb:      cb,
		logger:  logger.With("component", "merger", "conversation_id", cache.ConversationID()),
		metrics: m,
	}
}

// OnPush handles one raw payload from the live channel. A payload that
// fails decoding is logged and dropped; it never crashes the merger and
// never touches the timeline.
func (m *Merger) OnPush(raw []byte) {
	frame, err := wire.DecodeInbound(raw)
	if err != nil {
		m.metrics.MalformedFrame()
		if errors.Is(err, wire.ErrUnknownFrame) {
			m.logger.Warn("unknown push frame dropped", "error", err)
		} else {
			m.logger.Warn("malformed push payload dropped", "error", err)
		}
		return
	}

	switch f := frame.(type) {
	case wire.Ping:
		m.metrics.Frame("ping")
	case wire.Pong:
		m.metrics.Frame("pong")
	case wire.ContactUpdated:
		m.metrics.Frame("contact_updated")
		if m.cb.ContactRefresh != nil {
			m.cb.ContactRefresh(f.ContactID)
		}
	case wire.TypingSignal:
		m.metrics.Frame("typing")
		if m.cb.RemoteTyping != nil {
			m.cb.RemoteTyping(f.IsTyping)
		}
	case wire.IncomingMessage:
		m.metrics.Frame("message")
		m.applyMessage(f.Message)
	}
}

// applyMessage deduplicates and appends a candidate message.
func (m *Merger) applyMessage(msg timeline.Message) {
	if msg.ConversationID != m.cache.ConversationID() {
		// Stray event from a superseded subscription; epoch guarding in
		// the session layer should prevent this, but the id tag makes the
		// drop safe regardless.
		m.metrics.StaleDropped()
		m.logger.Warn("message for inactive conversation dropped",
			"message_id", msg.ID,
			"message_conversation_id", msg.ConversationID)
		return
	}

	if !m.cache.AppendLive(msg) {
		m.metrics.DuplicateDropped()
		m.logger.Debug("duplicate live message ignored", "message_id", msg.ID)
		return
	}

	m.logger.Debug("live message appended", "message_id", msg.ID, "type", msg.Type)
	if m.cb.MessageAppended != nil {
		m.cb.MessageAppended(msg)
	}
}
