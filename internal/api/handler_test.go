package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/estatehub/chat-service/internal/domain"
	"github.com/estatehub/chat-service/internal/relay"
	"github.com/estatehub/chat-service/internal/store"
)

// recordingSubscriber observes room broadcasts triggered by REST calls.
type recordingSubscriber struct {
	mu     sync.Mutex
	events []relay.Event
}

func (r *recordingSubscriber) Send(e relay.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSubscriber) Events() []relay.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]relay.Event{}, r.events...)
}

func newTestServer() (http.Handler, *relay.Hub) {
	hub := relay.NewHub()
	svc := relay.NewService(store.New(), hub, 0)
	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r)
	return r, hub
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer()

	w := doRequest(t, h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var got map[string]string
	decodeBody(t, w, &got)
	if got["status"] != "ok" {
		t.Errorf("Expected status ok, got %q", got["status"])
	}
}

// Scenario: a visitor starts a conversation, the dashboard list shows one
// unread message, and a joined admin connection receives exactly one
// new-message broadcast.
func TestStartConversation(t *testing.T) {
	h, hub := newTestServer()
	admin := &recordingSubscriber{}
	hub.JoinAdmin(admin)

	w := doRequest(t, h, http.MethodPost, "/conversations/start",
		`{"sessionId":"v1","visitorName":"Alice","message":"Hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var conv domain.Conversation
	decodeBody(t, w, &conv)
	if len(conv.Messages) != 1 || !conv.HasUnread {
		t.Errorf("Expected 1 message and hasUnread=true, got %+v", conv)
	}
	if conv.VisitorName != "Alice" {
		t.Errorf("Expected visitor name Alice, got %q", conv.VisitorName)
	}

	w = doRequest(t, h, http.MethodGet, "/conversations", "")
	var list struct {
		Results []domain.ConversationView `json:"results"`
	}
	decodeBody(t, w, &list)
	if len(list.Results) != 1 {
		t.Fatalf("Expected 1 conversation, got %d", len(list.Results))
	}
	if list.Results[0].UnreadCount != 1 {
		t.Errorf("Expected unreadCount 1, got %d", list.Results[0].UnreadCount)
	}

	events := admin.Events()
	if len(events) != 1 || events[0].Name != relay.EventNewMessage {
		t.Fatalf("Expected exactly one new-message broadcast, got %+v", events)
	}
	payload, ok := events[0].Data.(relay.NewMessagePayload)
	if !ok || payload.ConversationID != "v1" {
		t.Errorf("Unexpected broadcast payload: %+v", events[0].Data)
	}
}

func TestStartConversation_MissingFields(t *testing.T) {
	h, _ := newTestServer()

	if w := doRequest(t, h, http.MethodPost, "/conversations/start", `{"sessionId":"v1"}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a missing message, got %d", w.Code)
	}
	if w := doRequest(t, h, http.MethodPost, "/conversations/start", `{"message":"Hi"}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a missing sessionId, got %d", w.Code)
	}
	if w := doRequest(t, h, http.MethodPost, "/conversations/start", `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a malformed body, got %d", w.Code)
	}
}

// Scenario: an admin reply lands in the visitor's log with the right
// direction flag and reaches the visitor's room.
func TestReply(t *testing.T) {
	h, hub := newTestServer()
	visitor := &recordingSubscriber{}
	hub.JoinVisitor(visitor, "v1")

	doRequest(t, h, http.MethodPost, "/conversations/start", `{"sessionId":"v1","message":"Hi"}`)

	w := doRequest(t, h, http.MethodPost, "/conversations/v1/reply", `{"content":"Hello, how can I help?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var msg domain.Message
	decodeBody(t, w, &msg)
	if msg.IsFromVisitor || msg.IsRead {
		t.Errorf("Expected an unread admin message, got %+v", msg)
	}

	w = doRequest(t, h, http.MethodGet, "/conversations/v1", "")
	var conv domain.Conversation
	decodeBody(t, w, &conv)
	if len(conv.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(conv.Messages))
	}
	if conv.Messages[1].IsFromVisitor {
		t.Error("Expected the second message to be from the admin")
	}

	events := visitor.Events()
	if len(events) != 1 || events[0].Name != relay.EventNewMessage {
		t.Fatalf("Expected one new-message for the visitor, got %+v", events)
	}
	payload := events[0].Data.(relay.NewMessagePayload)
	if payload.Conversation != nil {
		t.Error("Expected no conversation snapshot on the visitor copy")
	}
}

func TestReply_NotFound(t *testing.T) {
	h, _ := newTestServer()

	w := doRequest(t, h, http.MethodPost, "/conversations/missing/reply", `{"content":"hello?"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

// Scenario: admin mark-read clears hasUnread and flips only visitor-authored
// messages to read.
func TestMarkRead(t *testing.T) {
	h, hub := newTestServer()
	visitor := &recordingSubscriber{}
	hub.JoinVisitor(visitor, "v1")

	doRequest(t, h, http.MethodPost, "/conversations/start", `{"sessionId":"v1","message":"Hi"}`)
	doRequest(t, h, http.MethodPost, "/conversations/v1/reply", `{"content":"Hello, how can I help?"}`)

	w := doRequest(t, h, http.MethodPost, "/conversations/v1/read", `{"isAdmin":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var ack map[string]bool
	decodeBody(t, w, &ack)
	if !ack["success"] {
		t.Error("Expected success=true")
	}

	w = doRequest(t, h, http.MethodGet, "/conversations/v1", "")
	var conv domain.Conversation
	decodeBody(t, w, &conv)
	if conv.HasUnread {
		t.Error("Expected hasUnread=false after admin mark-read")
	}
	if !conv.Messages[0].IsRead {
		t.Error("Expected the visitor message to be read")
	}
	if conv.Messages[1].IsRead {
		t.Error("Expected the admin message to stay unread")
	}

	events := visitor.Events()
	last := events[len(events)-1]
	if last.Name != relay.EventMessagesRead {
		t.Errorf("Expected a messages-read broadcast to the visitor, got %q", last.Name)
	}
}

func TestMarkRead_NotFound(t *testing.T) {
	h, _ := newTestServer()

	w := doRequest(t, h, http.MethodPost, "/conversations/missing/read", `{"isAdmin":true}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

// A message posted via REST must come back identically on a subsequent GET.
func TestSendMessage_RoundTrip(t *testing.T) {
	h, _ := newTestServer()

	doRequest(t, h, http.MethodPost, "/conversations/start", `{"sessionId":"v1","message":"Hi"}`)

	w := doRequest(t, h, http.MethodPost, "/conversations/v1/messages", `{"content":"Is the unit still available?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var sent domain.Message
	decodeBody(t, w, &sent)

	w = doRequest(t, h, http.MethodGet, "/conversations/v1", "")
	var conv domain.Conversation
	decodeBody(t, w, &conv)
	if len(conv.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(conv.Messages))
	}
	got := conv.Messages[1]
	if got.ID != sent.ID || got.Content != sent.Content || !got.CreatedAt.Equal(sent.CreatedAt) {
		t.Errorf("Round-trip mismatch: sent %+v, got %+v", sent, got)
	}
}

func TestSendMessage_NotFound(t *testing.T) {
	h, _ := newTestServer()

	w := doRequest(t, h, http.MethodPost, "/conversations/missing/messages", `{"content":"Hi"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestSendMessage_EmptyContent(t *testing.T) {
	h, _ := newTestServer()

	doRequest(t, h, http.MethodPost, "/conversations/start", `{"sessionId":"v1","message":"Hi"}`)

	w := doRequest(t, h, http.MethodPost, "/conversations/v1/messages", `{"content":""}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty content, got %d", w.Code)
	}
}

func TestDeleteConversation_Idempotent(t *testing.T) {
	h, _ := newTestServer()

	doRequest(t, h, http.MethodPost, "/conversations/start", `{"sessionId":"v1","message":"Hi"}`)

	w := doRequest(t, h, http.MethodDelete, "/conversations/v1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	// Deleting again still succeeds.
	w = doRequest(t, h, http.MethodDelete, "/conversations/v1", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 on repeat delete, got %d", w.Code)
	}

	w = doRequest(t, h, http.MethodGet, "/conversations/v1", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestGetConversation_NotFound(t *testing.T) {
	h, _ := newTestServer()

	w := doRequest(t, h, http.MethodGet, "/conversations/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
	var got map[string]string
	decodeBody(t, w, &got)
	if got["error"] == "" {
		t.Error("Expected an error body")
	}
}

func TestListConversations_Empty(t *testing.T) {
	h, _ := newTestServer()

	w := doRequest(t, h, http.MethodGet, "/conversations", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var list struct {
		Results []domain.ConversationView `json:"results"`
	}
	decodeBody(t, w, &list)
	if len(list.Results) != 0 {
		t.Errorf("Expected an empty list, got %d entries", len(list.Results))
	}
}
