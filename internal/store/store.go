// Package store provides the in-memory conversation store.
//
// State lives in process memory only and is lost on restart; the frontends
// are written against that contract.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/estatehub/chat-service/internal/domain"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no conversation exists for a session ID.
var ErrNotFound = errors.New("conversation not found")

// ConversationStore holds all conversations, keyed by session ID. All reads
// return copies; the only way to mutate stored state is through the methods
// below, which keep hasUnread and updatedAt consistent.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
}

// New creates an empty conversation store.
func New() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[string]*domain.Conversation),
	}
}

// GetOrCreate returns the conversation for sessionID, creating it if absent.
// Non-empty profile fields overwrite the stored ones on every call; empty
// fields never clobber values set earlier.
func (s *ConversationStore) GetOrCreate(sessionID string, profile domain.VisitorProfile) *domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[sessionID]
	if !ok {
		now := time.Now().UTC()
		conv = &domain.Conversation{
			ID:          uuid.NewString(),
			SessionID:   sessionID,
			VisitorName: domain.DefaultVisitorName,
			Messages:    []domain.Message{},
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.conversations[sessionID] = conv
	}

	if profile.Name != "" {
		conv.VisitorName = profile.Name
	}
	if profile.Email != "" {
		conv.VisitorEmail = profile.Email
	}
	if profile.Phone != "" {
		conv.VisitorPhone = profile.Phone
	}

	return cloneConversation(conv)
}

// Get returns a copy of the conversation for sessionID.
func (s *ConversationStore) Get(sessionID string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneConversation(conv), nil
}

// List returns every conversation with derived lastMessage and unreadCount,
// sorted by updatedAt descending.
func (s *ConversationStore) List() []*domain.ConversationView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]*domain.ConversationView, 0, len(s.conversations))
	for _, conv := range s.conversations {
		views = append(views, cloneView(conv))
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].UpdatedAt.After(views[j].UpdatedAt)
	})
	return views
}

// Append adds a message to an existing conversation, bumping updatedAt and
// setting hasUnread when the message comes from the visitor. It returns the
// new message and a full view snapshot of the conversation.
func (s *ConversationStore) Append(sessionID, content string, fromVisitor bool) (*domain.Message, *domain.ConversationView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[sessionID]
	if !ok {
		return nil, nil, ErrNotFound
	}

	now := time.Now().UTC()
	msg := domain.Message{
		ID:            uuid.NewString(),
		Content:       content,
		IsFromVisitor: fromVisitor,
		CreatedAt:     now,
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = now
	if fromVisitor {
		conv.HasUnread = true
	}

	return &msg, cloneView(conv), nil
}

// MarkRead marks one direction of the thread as read: the visitor's messages
// when byAdmin is true (clearing hasUnread), the admin's otherwise.
// Idempotent.
func (s *ConversationStore) MarkRead(sessionID string, byAdmin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[sessionID]
	if !ok {
		return ErrNotFound
	}

	for i := range conv.Messages {
		if conv.Messages[i].IsFromVisitor == byAdmin {
			conv.Messages[i].IsRead = true
		}
	}
	if byAdmin {
		conv.HasUnread = false
	}
	return nil
}

// Delete removes a conversation and its entire message log. Deleting an
// absent session is a no-op.
func (s *ConversationStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, sessionID)
}

// cloneConversation deep-copies a conversation so callers never hold a live
// reference into the store.
func cloneConversation(conv *domain.Conversation) *domain.Conversation {
	c := *conv
	c.Messages = append([]domain.Message{}, conv.Messages...)
	return &c
}

func cloneView(conv *domain.Conversation) *domain.ConversationView {
	c := cloneConversation(conv)
	return &domain.ConversationView{
		Conversation: *c,
		LastMessage:  c.LastMessage(),
		UnreadCount:  c.UnreadCount(),
	}
}
