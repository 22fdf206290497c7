// ABOUTME: Message and Page types for the conversation timeline.
// ABOUTME: Messages are immutable once created; the timeline only appends.

package timeline

import "time"

// Sender identifies who authored a message.
type Sender string

const (
	SenderCustomer Sender = "customer"
	SenderAgent    Sender = "agent"
)

// MessageType categorizes the kind of timeline entry.
type MessageType string

const (
	MessageTypeMessage        MessageType = "message"
	MessageTypeNote           MessageType = "note"
	MessageTypeSystem         MessageType = "system"
	MessageTypeCallInvitation MessageType = "call_invitation"
)

// Attachment is a file or media object carried by a message.
type Attachment struct {
	ID   string `json:"id,omitempty"`
	Kind string `json:"type,omitempty"`
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Message is a single entry in a conversation timeline. Messages are
// immutable: the platform never mutates one after creation, only appends
// new ones.
type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	Sender         Sender       `json:"sender"`
	Type           MessageType  `json:"type"`
	Timestamp      time.Time    `json:"timestamp"`
	Content        string       `json:"content"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	Options        []string     `json:"options,omitempty"`
}
