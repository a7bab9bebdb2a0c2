package relay

import (
	"errors"
	"sync"

	"github.com/estatehub/chat-service/internal/domain"
	"github.com/estatehub/chat-service/internal/store"
)

// Content validation errors. The REST facade renders these as 400; the
// websocket dispatcher logs and drops.
var (
	ErrMissingSession = errors.New("missing session id")
	ErrEmptyContent   = errors.New("message content is empty")
	ErrMessageTooLong = errors.New("message content exceeds the configured limit")
)

// Service is the protocol core: every mutation goes through it, from either
// transport, so the resulting broadcast is identical no matter how the
// mutation arrived. The mutex spans mutate+publish, which keeps broadcast
// order equal to append order within a conversation.
type Service struct {
	mu               sync.Mutex
	store            *store.ConversationStore
	hub              *Hub
	typing           *typingTracker
	maxContentLength int
}

// NewService creates the protocol service. maxContentLength of 0 disables
// the length check.
func NewService(st *store.ConversationStore, hub *Hub, maxContentLength int) *Service {
	return &Service{
		store:            st,
		hub:              hub,
		typing:           newTypingTracker(),
		maxContentLength: maxContentLength,
	}
}

func (s *Service) validate(sessionID, content string) error {
	if sessionID == "" {
		return ErrMissingSession
	}
	if content == "" {
		return ErrEmptyContent
	}
	if s.maxContentLength > 0 && len(content) > s.maxContentLength {
		return ErrMessageTooLong
	}
	return nil
}

// Start records a visitor message, creating the conversation on first use of
// the session ID, and notifies the admin room. It returns the updated
// conversation and the appended message.
func (s *Service) Start(sessionID string, profile domain.VisitorProfile, content string) (*domain.Conversation, *domain.Message, error) {
	if err := s.validate(sessionID, content); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.GetOrCreate(sessionID, profile)
	msg, view, err := s.store.Append(sessionID, content, true)
	if err != nil {
		return nil, nil, err
	}

	s.hub.Publish(AdminRoom, Event{Name: EventNewMessage, Data: NewMessagePayload{
		ConversationID: sessionID,
		Message:        msg,
		Conversation:   view,
	}})

	conv, err := s.store.Get(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return conv, msg, nil
}

// SendVisitorMessage appends a visitor message to an existing conversation
// and notifies the admin room.
func (s *Service) SendVisitorMessage(sessionID, content string) (*domain.Message, error) {
	if err := s.validate(sessionID, content); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg, view, err := s.store.Append(sessionID, content, true)
	if err != nil {
		return nil, err
	}

	s.hub.Publish(AdminRoom, Event{Name: EventNewMessage, Data: NewMessagePayload{
		ConversationID: sessionID,
		Message:        msg,
		Conversation:   view,
	}})
	return msg, nil
}

// SendAdminReply appends an operator message to an existing conversation and
// notifies the visitor's room. The visitor copy carries the message only.
func (s *Service) SendAdminReply(sessionID, content string) (*domain.Message, error) {
	if err := s.validate(sessionID, content); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg, _, err := s.store.Append(sessionID, content, false)
	if err != nil {
		return nil, err
	}

	s.hub.Publish(VisitorRoom(sessionID), Event{Name: EventNewMessage, Data: NewMessagePayload{
		ConversationID: sessionID,
		Message:        msg,
	}})
	return msg, nil
}

// MarkRead marks one direction of the thread as read and notifies the other
// party's room.
func (s *Service) MarkRead(sessionID string, byAdmin bool) error {
	if sessionID == "" {
		return ErrMissingSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.MarkRead(sessionID, byAdmin); err != nil {
		return err
	}

	target := AdminRoom
	if byAdmin {
		target = VisitorRoom(sessionID)
	}
	s.hub.Publish(target, Event{Name: EventMessagesRead, Data: MessagesReadPayload{
		ConversationID: sessionID,
	}})
	return nil
}

// Delete removes a conversation and its whole message log. Idempotent.
func (s *Service) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Delete(sessionID)
}

// Conversation returns a copy of one conversation.
func (s *Service) Conversation(sessionID string) (*domain.Conversation, error) {
	return s.store.Get(sessionID)
}

// Conversations returns the dashboard list projection, newest first.
func (s *Service) Conversations() []*domain.ConversationView {
	return s.store.List()
}

// Typing relays a transient typing signal to the other party's room. Typing
// state is never persisted; active signals are tracked only so the expiry
// sweeper can clear abandoned ones.
func (s *Service) Typing(sessionID string, fromAdmin, active bool) {
	if sessionID == "" {
		return
	}

	key := typingKey{sessionID: sessionID, fromAdmin: fromAdmin}
	if active {
		s.typing.Touch(key)
	} else {
		s.typing.Clear(key)
	}
	s.hub.Publish(typingTarget(key), Event{
		Name: typingEventName(key, active),
		Data: TypingNotifyPayload{SessionID: sessionID},
	})
}

func typingTarget(key typingKey) string {
	if key.fromAdmin {
		return VisitorRoom(key.sessionID)
	}
	return AdminRoom
}

func typingEventName(key typingKey, active bool) string {
	switch {
	case key.fromAdmin && active:
		return EventAdminTyping
	case key.fromAdmin:
		return EventAdminStoppedTyping
	case active:
		return EventVisitorTyping
	default:
		return EventVisitorStoppedTyping
	}
}
