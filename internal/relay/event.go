// Package relay implements the real-time core of the chat service: the
// room-based pub/sub hub, the protocol service shared by the websocket and
// REST transports, and the websocket endpoint itself.
package relay

import (
	json "github.com/goccy/go-json"

	"github.com/estatehub/chat-service/internal/domain"
)

// Inbound event names. A client sends these wrapped in an Envelope.
const (
	EventJoinVisitor    = "join-visitor"
	EventJoinAdmin      = "join-admin"
	EventVisitorMessage = "visitor-message"
	EventAdminMessage   = "admin-message"
	EventMarkRead       = "mark-read"
	EventTypingStart    = "typing-start"
	EventTypingStop     = "typing-stop"
)

// Outbound event names.
const (
	EventNewMessage           = "new-message"
	EventMessageSent          = "message-sent"
	EventMessagesRead         = "messages-read"
	EventAdminTyping          = "admin-typing"
	EventVisitorTyping        = "visitor-typing"
	EventAdminStoppedTyping   = "admin-stopped-typing"
	EventVisitorStoppedTyping = "visitor-stopped-typing"
)

// Event is an outbound event with its typed payload.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// Encode serializes the event into its wire envelope.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Envelope is the wire frame for inbound events; Data is decoded into the
// payload type matching Event in the dispatch switch.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a raw websocket frame.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// JoinVisitorPayload subscribes the connection to one visitor's room.
type JoinVisitorPayload struct {
	SessionID string `json:"sessionId"`
}

// VisitorMessagePayload is a visitor-authored message; the conversation is
// created on first use of a session ID.
type VisitorMessagePayload struct {
	SessionID   string `json:"sessionId"`
	Content     string `json:"content"`
	VisitorName string `json:"visitorName"`
}

// AdminMessagePayload is an operator reply into an existing conversation.
type AdminMessagePayload struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
}

// MarkReadPayload marks one direction of a thread as read.
type MarkReadPayload struct {
	SessionID string `json:"sessionId"`
	IsAdmin   bool   `json:"isAdmin"`
}

// TypingPayload signals a transient typing start/stop.
type TypingPayload struct {
	SessionID string `json:"sessionId"`
	IsAdmin   bool   `json:"isAdmin"`
}

// NewMessagePayload announces an appended message. Conversation is included
// only on the admin-bound copy, so the dashboard list can update without a
// second fetch; the visitor widget gets the message alone.
type NewMessagePayload struct {
	ConversationID string                   `json:"conversationId"`
	Message        *domain.Message          `json:"message"`
	Conversation   *domain.ConversationView `json:"conversation,omitempty"`
}

// MessageSentPayload acknowledges a send back to the authoring connection.
type MessageSentPayload struct {
	Message *domain.Message `json:"message"`
}

// MessagesReadPayload notifies the other party that a thread was read.
type MessagesReadPayload struct {
	ConversationID string `json:"conversationId"`
}

// TypingNotifyPayload is the outbound form of a typing signal.
type TypingNotifyPayload struct {
	SessionID string `json:"sessionId"`
}
