package relay

import (
	"sync"
)

// AdminRoom is the single room shared by every admin connection.
const AdminRoom = "admin-room"

// VisitorRoom returns the private room name for a visitor session.
func VisitorRoom(sessionID string) string {
	return "visitor-" + sessionID
}

// Subscriber receives events published to a room. Implementations must not
// block; the websocket subscriber buffers and drops instead.
type Subscriber interface {
	Send(e Event)
}

// Room is an ephemeral broadcast group of subscribers.
type Room struct {
	mu   sync.RWMutex
	subs map[Subscriber]struct{}
}

func newRoom() *Room {
	return &Room{subs: make(map[Subscriber]struct{})}
}

// Subscribe adds a subscriber; re-subscribing is harmless.
func (r *Room) Subscribe(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub] = struct{}{}
}

// Unsubscribe removes a subscriber and reports how many remain.
func (r *Room) Unsubscribe(sub Subscriber) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, sub)
	return len(r.subs)
}

// Publish fans the event out to every current subscriber.
func (r *Room) Publish(e Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for sub := range r.subs {
		sub.Send(e)
	}
}

// Len returns the current subscriber count.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Hub manages named rooms and per-subscriber membership so a disconnecting
// connection can be dropped from everything it joined. Rooms are transport
// constructs, not persisted entities; empty ones are pruned.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	membership map[Subscriber]map[string]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		membership: make(map[Subscriber]map[string]struct{}),
	}
}

// JoinVisitor places the subscriber in the visitor's private room. A session
// may have several simultaneous connections, all receiving the same
// broadcasts.
func (h *Hub) JoinVisitor(sub Subscriber, sessionID string) {
	h.join(sub, VisitorRoom(sessionID))
}

// JoinAdmin places the subscriber in the shared admin room.
func (h *Hub) JoinAdmin(sub Subscriber) {
	h.join(sub, AdminRoom)
}

func (h *Hub) join(sub Subscriber, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[name]
	if !ok {
		room = newRoom()
		h.rooms[name] = room
	}
	room.Subscribe(sub)

	if h.membership[sub] == nil {
		h.membership[sub] = make(map[string]struct{})
	}
	h.membership[sub][name] = struct{}{}
}

// Leave removes the subscriber from every room it joined.
func (h *Hub) Leave(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for name := range h.membership[sub] {
		if room, ok := h.rooms[name]; ok {
			if room.Unsubscribe(sub) == 0 {
				delete(h.rooms, name)
			}
		}
	}
	delete(h.membership, sub)
}

// Publish fans the event out to the named room. Publishing to a room with no
// subscribers is a no-op.
func (h *Hub) Publish(name string, e Event) {
	h.mu.RLock()
	room, ok := h.rooms[name]
	h.mu.RUnlock()
	if !ok {
		return
	}
	room.Publish(e)
}
