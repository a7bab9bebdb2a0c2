package relay

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"

	"github.com/estatehub/chat-service/internal/domain"
)

const (
	outboundBuffer = 64
	writeTimeout   = 10 * time.Second
)

// WebSocketHandler serves the real-time transport. Each connection runs a
// read loop dispatching typed inbound events and a write pump draining the
// subscriber's outbound buffer.
type WebSocketHandler struct {
	svc            *Service
	hub            *Hub
	originPatterns []string
}

// NewWebSocketHandler creates the websocket endpoint. allowedOrigins are the
// same full origins the REST CORS layer accepts.
func NewWebSocketHandler(svc *Service, hub *Hub, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		svc:            svc,
		hub:            hub,
		originPatterns: originPatterns(allowedOrigins),
	}
}

// originPatterns reduces full origins to the host patterns the websocket
// accept check matches against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "http://")
		o = strings.TrimPrefix(o, "https://")
		if o != "" {
			patterns = append(patterns, o)
		}
	}
	return patterns
}

// ServeHTTP upgrades the connection and relays events until the peer goes
// away. Malformed frames and events referencing unknown sessions are logged
// and dropped; they never close the connection.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slog.Info("WebSocket connection request", "ip", r.RemoteAddr)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "connection closed"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := newConnSubscriber(ws)
	go sub.writePump(ctx)
	defer h.hub.Leave(sub)

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			// Expected when the client disconnects.
			slog.Debug("WebSocket read ended", "error", err)
			return
		}

		env, err := DecodeEnvelope(data)
		if err != nil {
			slog.Warn("Dropping malformed frame", "error", err)
			continue
		}
		h.dispatch(sub, env)
	}
}

func (h *WebSocketHandler) dispatch(sub *connSubscriber, env *Envelope) {
	switch env.Event {
	case EventJoinVisitor:
		var p JoinVisitorPayload
		if !decodePayload(env, &p) {
			return
		}
		if p.SessionID == "" {
			slog.Warn("Dropping join-visitor without session id")
			return
		}
		h.hub.JoinVisitor(sub, p.SessionID)
		slog.Info("Visitor joined room", "room", VisitorRoom(p.SessionID))

	case EventJoinAdmin:
		h.hub.JoinAdmin(sub)
		slog.Info("Admin joined room", "room", AdminRoom)

	case EventVisitorMessage:
		var p VisitorMessagePayload
		if !decodePayload(env, &p) {
			return
		}
		_, msg, err := h.svc.Start(p.SessionID, domain.VisitorProfile{Name: p.VisitorName}, p.Content)
		if err != nil {
			slog.Warn("Dropping visitor message", "session_id", p.SessionID, "error", err)
			return
		}
		sub.Send(Event{Name: EventMessageSent, Data: MessageSentPayload{Message: msg}})

	case EventAdminMessage:
		var p AdminMessagePayload
		if !decodePayload(env, &p) {
			return
		}
		msg, err := h.svc.SendAdminReply(p.SessionID, p.Content)
		if err != nil {
			slog.Warn("Dropping admin message", "session_id", p.SessionID, "error", err)
			return
		}
		sub.Send(Event{Name: EventMessageSent, Data: MessageSentPayload{Message: msg}})

	case EventMarkRead:
		var p MarkReadPayload
		if !decodePayload(env, &p) {
			return
		}
		if err := h.svc.MarkRead(p.SessionID, p.IsAdmin); err != nil {
			slog.Warn("Dropping mark-read", "session_id", p.SessionID, "error", err)
		}

	case EventTypingStart:
		var p TypingPayload
		if !decodePayload(env, &p) {
			return
		}
		h.svc.Typing(p.SessionID, p.IsAdmin, true)

	case EventTypingStop:
		var p TypingPayload
		if !decodePayload(env, &p) {
			return
		}
		h.svc.Typing(p.SessionID, p.IsAdmin, false)

	default:
		slog.Warn("Dropping unknown event", "event", env.Event)
	}
}

func decodePayload(env *Envelope, v any) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		slog.Warn("Dropping event with malformed payload", "event", env.Event, "error", err)
		return false
	}
	return true
}

// connSubscriber adapts a websocket connection to the Subscriber interface.
// Send never blocks: a subscriber that falls outboundBuffer events behind
// starts losing broadcasts instead of stalling the publisher.
type connSubscriber struct {
	conn *websocket.Conn
	out  chan Event
}

func newConnSubscriber(conn *websocket.Conn) *connSubscriber {
	return &connSubscriber{
		conn: conn,
		out:  make(chan Event, outboundBuffer),
	}
}

// Send queues an event for the write pump.
func (c *connSubscriber) Send(e Event) {
	select {
	case c.out <- e:
	default:
		slog.Warn("Dropping event for slow connection", "event", e.Name)
	}
}

func (c *connSubscriber) writePump(ctx context.Context) {
	for {
		select {
		case e := <-c.out:
			data, err := e.Encode()
			if err != nil {
				slog.Error("Failed to encode event", "event", e.Name, "error", err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				slog.Debug("WebSocket write error", "error", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
