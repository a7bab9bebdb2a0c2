// Package api provides the REST facade of the chat service.
//
// Every mutation reachable over the websocket is also reachable here, and
// runs the identical service path, so the other party sees the same
// broadcast no matter which transport carried the request.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/estatehub/chat-service/internal/domain"
	"github.com/estatehub/chat-service/internal/relay"
	"github.com/estatehub/chat-service/internal/store"
)

// Handler exposes the conversation endpoints.
type Handler struct {
	svc      *relay.Service
	validate *validator.Validate
}

// NewHandler creates a new Handler.
func NewHandler(svc *relay.Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RegisterRoutes registers all conversation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", h.ListConversations)
		r.Post("/start", h.StartConversation)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetConversation)
			r.Post("/messages", h.SendMessage)
			r.Post("/reply", h.Reply)
			r.Post("/read", h.MarkRead)
			r.Delete("/", h.DeleteConversation)
		})
	})
}

// Health returns the liveness status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "chat-service",
	})
}

// ListConversations returns every conversation with derived lastMessage and
// unreadCount, newest first.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"results": h.svc.Conversations(),
	})
}

// GetConversation returns a single conversation with its full message log.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conv, err := h.svc.Conversation(sessionID)
	if err != nil {
		h.writeServiceError(w, sessionID, err)
		return
	}
	JSON(w, http.StatusOK, conv)
}

type startConversationRequest struct {
	SessionID    string `json:"sessionId" validate:"required"`
	VisitorName  string `json:"visitorName"`
	VisitorEmail string `json:"visitorEmail"`
	VisitorPhone string `json:"visitorPhone"`
	Message      string `json:"message" validate:"required"`
}

// StartConversation creates the conversation if needed, records the first
// visitor message, and notifies the admin room.
func (h *Handler) StartConversation(w http.ResponseWriter, r *http.Request) {
	var req startConversationRequest
	if !h.decode(w, r, &req) {
		return
	}

	conv, _, err := h.svc.Start(req.SessionID, domain.VisitorProfile{
		Name:  req.VisitorName,
		Email: req.VisitorEmail,
		Phone: req.VisitorPhone,
	}, req.Message)
	if err != nil {
		h.writeServiceError(w, req.SessionID, err)
		return
	}
	JSON(w, http.StatusOK, conv)
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// SendMessage appends a visitor message to an existing conversation.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req sendMessageRequest
	if !h.decode(w, r, &req) {
		return
	}

	msg, err := h.svc.SendVisitorMessage(sessionID, req.Content)
	if err != nil {
		h.writeServiceError(w, sessionID, err)
		return
	}
	JSON(w, http.StatusOK, msg)
}

// Reply appends an operator message to an existing conversation.
func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req sendMessageRequest
	if !h.decode(w, r, &req) {
		return
	}

	msg, err := h.svc.SendAdminReply(sessionID, req.Content)
	if err != nil {
		h.writeServiceError(w, sessionID, err)
		return
	}
	JSON(w, http.StatusOK, msg)
}

type markReadRequest struct {
	IsAdmin bool `json:"isAdmin"`
}

// MarkRead marks one direction of the thread as read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req markReadRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.MarkRead(sessionID, req.IsAdmin); err != nil {
		h.writeServiceError(w, sessionID, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// DeleteConversation removes a conversation and its message log. Deleting an
// absent session still succeeds.
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	h.svc.Delete(chi.URLParam(r, "sessionID"))
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// decode parses and validates a JSON request body, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, sessionID string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		Error(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, relay.ErrMissingSession),
		errors.Is(err, relay.ErrEmptyContent),
		errors.Is(err, relay.ErrMessageTooLong):
		Error(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("Unexpected service error", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
