// ABOUTME: Wire codec for the live channel: inbound push frames and outbound frames.
// ABOUTME: Inbound payloads decode into a closed tagged-variant set, never ad hoc shape-sniffing.

package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2389/opdesk/internal/timeline"
)

// Decode errors.
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrUnknownFrame   = errors.New("unknown frame type")
)

// InboundFrame is the closed set of push frames the platform delivers.
// Handlers switch exhaustively over the concrete types: Ping, Pong,
// ContactUpdated, TypingSignal, IncomingMessage.
type InboundFrame interface {
	inboundFrame()
}

// Ping is a keepalive control frame. Never enters the timeline.
type Ping struct{}

// Pong is the keepalive reply control frame. Never enters the timeline.
type Pong struct{}

// ContactUpdated signals that contact metadata changed on the platform
// side. It triggers an external refresh only, never a timeline mutation.
type ContactUpdated struct {
	ContactID string
}

// TypingSignal is a presence notification from the remote party. It is
// consumed for presence display and never enters the timeline.
type TypingSignal struct {
	IsTyping bool
}

// IncomingMessage wraps a candidate timeline message delivered over the
// push channel.
type IncomingMessage struct {
	Message timeline.Message
}

func (Ping) inboundFrame()            {}
func (Pong) inboundFrame()            {}
func (ContactUpdated) inboundFrame()  {}
func (TypingSignal) inboundFrame()    {}
func (IncomingMessage) inboundFrame() {}

// probe is the minimal shape sniffed before committing to a variant.
type probe struct {
	Type        string          `json:"type"`
	MessageType string          `json:"message_type"`
	IsTyping    *bool           `json:"is_typing"`
	ContactID   string          `json:"contact_id"`
	Message     json.RawMessage `json:"message"`
}

// DecodeInbound parses a raw push payload into one of the closed inbound
// variants. Message payloads arrive either bare or wrapped as
// {type:"message", message:{...}}; both forms are accepted. Anything that
// fails structural validation returns an error so the caller can log and
// drop it without touching the timeline.
func DecodeInbound(raw []byte) (InboundFrame, error) {
	var p probe
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	// Some producers tag typing on message_type instead of type.
	if p.MessageType == "typing" {
		return TypingSignal{IsTyping: boolVal(p.IsTyping, true)}, nil
	}

	switch p.Type {
	case "ping":
		return Ping{}, nil
	case "pong":
		return Pong{}, nil
	case "contact_updated":
		return ContactUpdated{ContactID: p.ContactID}, nil
	case "typing":
		return TypingSignal{IsTyping: boolVal(p.IsTyping, true)}, nil
	case "message":
		if len(p.Message) > 0 {
			return decodeMessage(p.Message)
		}
		// A bare message whose kind happens to be "message".
		return decodeMessage(raw)
	case string(timeline.MessageTypeNote),
		string(timeline.MessageTypeSystem),
		string(timeline.MessageTypeCallInvitation):
		// Bare message payloads are tagged by their message kind.
		return decodeMessage(raw)
	case "":
		return nil, fmt.Errorf("%w: missing type tag", ErrMalformedFrame)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrame, p.Type)
	}
}

// decodeMessage unmarshals and structurally validates a candidate message.
func decodeMessage(raw []byte) (InboundFrame, error) {
	var m timeline.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: message body: %v", ErrMalformedFrame, err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("%w: message missing id", ErrMalformedFrame)
	}
	if m.ConversationID == "" {
		return nil, fmt.Errorf("%w: message missing conversation_id", ErrMalformedFrame)
	}
	if m.Type == "" {
		m.Type = timeline.MessageTypeMessage
	}
	return IncomingMessage{Message: m}, nil
}

func boolVal(p *bool, fallback bool) bool {
	if p == nil {
		return fallback
	}
	return *p
}

// AgentTyping is the outbound presence frame emitted by the typing
// debouncer.
type AgentTyping struct {
	Type      string `json:"type"`
	IsTyping  bool   `json:"is_typing"`
	SessionID string `json:"session_id"`
}

// NewAgentTyping builds an outbound agent_typing frame.
func NewAgentTyping(isTyping bool, sessionID string) AgentTyping {
	return AgentTyping{Type: "agent_typing", IsTyping: isTyping, SessionID: sessionID}
}

// OutgoingMessage is the outbound send-message frame.
type OutgoingMessage struct {
	Message     string `json:"message"`
	MessageType string `json:"message_type"`
	Sender      string `json:"sender"`
}
