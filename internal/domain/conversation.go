// Package domain contains core domain types for the chat service.
package domain

import (
	"time"
)

// DefaultVisitorName is used when a conversation is started without a name.
const DefaultVisitorName = "Visitor"

// Message is a single chat message within a conversation.
type Message struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	IsFromVisitor bool      `json:"isFromVisitor"`
	IsRead        bool      `json:"isRead"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Conversation is the message thread between one visitor session and the
// admin pool. SessionID is the client-generated natural key; exactly one
// conversation exists per session.
type Conversation struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	VisitorName  string    `json:"visitorName"`
	VisitorEmail string    `json:"visitorEmail"`
	VisitorPhone string    `json:"visitorPhone"`
	Messages     []Message `json:"messages"`
	HasUnread    bool      `json:"hasUnread"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UnreadCount returns the number of visitor messages not yet read by an admin.
func (c *Conversation) UnreadCount() int {
	n := 0
	for _, m := range c.Messages {
		if m.IsFromVisitor && !m.IsRead {
			n++
		}
	}
	return n
}

// LastMessage returns the most recent message, or nil for an empty thread.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	m := c.Messages[len(c.Messages)-1]
	return &m
}

// ConversationView is a conversation annotated with the derived fields the
// admin dashboard list renders without a second fetch.
type ConversationView struct {
	Conversation
	LastMessage *Message `json:"lastMessage"`
	UnreadCount int      `json:"unreadCount"`
}

// VisitorProfile carries the optional contact fields a visitor may supply
// when starting a conversation or on any later message. Empty fields never
// overwrite values already set.
type VisitorProfile struct {
	Name  string
	Email string
	Phone string
}
