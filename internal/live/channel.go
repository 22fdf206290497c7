// ABOUTME: Persistent websocket channel scoped to one (agent, conversation) pair.
// ABOUTME: Owns the read loop, keepalive, and rate-limited outbound frame writes.

package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/2389/opdesk/internal/timeline"
	"github.com/2389/opdesk/internal/wire"
)

// ErrNotConnected is returned when a send is attempted on a channel that
// is closed or was never established. Callers must keep the unsent text
// (the draft is not cleared) and surface the failure to the operator.
var ErrNotConnected = errors.New("live channel not connected")

const (
	readLimit    = 1 << 20
	readTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second

	// typingBurst bounds how many presence frames may go out back to back;
	// the debouncer already throttles, this is a transport-level backstop.
	typingRate  = rate.Limit(5)
	typingBurst = 5
)

// Channel is a live connection for a single conversation. It is torn down
// on conversation switch and never reconnects on its own.
type Channel struct {
	conversationID string
	conn           *websocket.Conn
	logger         *slog.Logger

	writeMu sync.Mutex
	limiter *rate.Limiter

	onFrame      func(raw []byte)
	onDisconnect func(err error)

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial establishes the live channel for a conversation. socketURL must
// already carry the bearer token (see platform.SocketURL). onFrame is
// invoked from the read loop for every received payload; onDisconnect is
// invoked once if the connection drops for any reason other than Close.
func Dial(ctx context.Context, socketURL, conversationID string, onFrame func([]byte), onDisconnect func(error), logger *slog.Logger) (*Channel, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, socketURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing live channel (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing live channel: %w", err)
	}

	c := &Channel{
		conversationID: conversationID,
		conn:           conn,
		logger:         logger.With("component", "live", "conversation_id", conversationID),
		limiter:        rate.NewLimiter(typingRate, typingBurst),
		onFrame:        onFrame,
		onDisconnect:   onDisconnect,
		closed:         make(chan struct{}),
	}

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go c.readLoop()
	go c.keepalive()

	c.logger.Debug("live channel established")
	return c, nil
}

// ConversationID returns the conversation this channel was dialed for.
func (c *Channel) ConversationID() string {
	return c.conversationID
}

// readLoop delivers raw payloads to the frame handler until the
// connection drops or the channel is closed.
func (c *Channel) readLoop() {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				// Deliberate teardown; not a disconnect.
			default:
				c.logger.Warn("live channel dropped", "error", err)
				c.markClosed()
				if c.onDisconnect != nil {
					c.onDisconnect(err)
				}
			}
			return
		}
		if c.onFrame != nil {
			c.onFrame(raw)
		}
	}
}

// keepalive sends websocket pings so the read deadline keeps advancing.
func (c *Channel) keepalive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// SendTyping emits an agent_typing presence frame. Excess frames beyond
// the transport rate limit are dropped silently; presence is advisory.
func (c *Channel) SendTyping(isTyping bool, sessionID string) error {
	if c.isClosed() {
		return ErrNotConnected
	}
	if !c.limiter.Allow() {
		c.logger.Debug("typing frame dropped by rate limiter")
		return nil
	}
	return c.writeJSON(wire.NewAgentTyping(isTyping, sessionID))
}

// SendMessage emits a send-message frame for a reply or note.
func (c *Channel) SendMessage(content string, msgType timeline.MessageType, sender timeline.Sender) error {
	if c.isClosed() {
		return ErrNotConnected
	}
	return c.writeJSON(wire.OutgoingMessage{
		Message:     content,
		MessageType: string(msgType),
		Sender:      string(sender),
	})
}

func (c *Channel) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

func (c *Channel) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Channel) markClosed() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// Close tears the channel down. Safe to call multiple times; sends after
// Close fail with ErrNotConnected.
func (c *Channel) Close() {
	c.markClosed()
	_ = c.conn.Close()
	c.logger.Debug("live channel closed")
}
