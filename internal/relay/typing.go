package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const typingSweepInterval = time.Second

// typingKey identifies one active typing signal: one party's keyboard in one
// conversation.
type typingKey struct {
	sessionID string
	fromAdmin bool
}

// typingTracker remembers when each typing signal was last refreshed.
// Clients are expected to emit typing-stop after an idle window, but one that
// disconnects mid-typing would leave the other party showing a stale
// indicator forever, so the sweeper clears signals that stop refreshing.
type typingTracker struct {
	mu     sync.Mutex
	active map[typingKey]time.Time
}

func newTypingTracker() *typingTracker {
	return &typingTracker{active: make(map[typingKey]time.Time)}
}

// Touch records a typing-start (or refresh).
func (t *typingTracker) Touch(key typingKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[key] = time.Now()
}

// Clear removes a signal after an explicit typing-stop.
func (t *typingTracker) Clear(key typingKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, key)
}

// Expire removes and returns every signal older than ttl.
func (t *typingTracker) Expire(ttl time.Duration) []typingKey {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []typingKey
	cutoff := time.Now().Add(-ttl)
	for key, touched := range t.active {
		if touched.Before(cutoff) {
			expired = append(expired, key)
			delete(t.active, key)
		}
	}
	return expired
}

// StartTypingSweeper runs a background goroutine that broadcasts the
// stopped-typing event for signals not refreshed within ttl. A ttl of 0
// disables the sweeper and indicators only clear on an explicit stop.
func (s *Service) StartTypingSweeper(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	ticker := time.NewTicker(typingSweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Typing sweeper started", "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				for _, key := range s.typing.Expire(ttl) {
					slog.Debug("Typing signal expired", "session_id", key.sessionID, "from_admin", key.fromAdmin)
					s.hub.Publish(typingTarget(key), Event{
						Name: typingEventName(key, false),
						Data: TypingNotifyPayload{SessionID: key.sessionID},
					})
				}
			case <-ctx.Done():
				slog.Info("Typing sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
