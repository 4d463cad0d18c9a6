// Package server coordinates room sessions for the chat WebSocket system via
// the Hub type, which starts sessions and stops them on shutdown.
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// ErrHubClosed is returned by AcceptConnection once Shutdown has begun.
var ErrHubClosed = errors.New("hub is shut down")

// Hub accepts upgraded connections and runs a Session for each. It tracks
// live sessions so Shutdown can cancel them and wait for them to finish.
type Hub struct {
	registry *Registry
	messages chat.MessageStore
	users    chat.UserDirectory
	cfg      Config
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[*Session]struct{}
	closed   bool
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewHub creates a Hub that serves sessions from registry using the given
// stores.
func NewHub(registry *Registry, messages chat.MessageStore, users chat.UserDirectory, cfg Config, log zerolog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	cfg = SanitizeConfig(cfg)
	return &Hub{
		registry: registry,
		messages: messages,
		users:    users,
		cfg:      cfg,
		log:      log.With().Str("component", "hub").Logger(),
		sessions: make(map[*Session]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// AcceptConnection runs a session for userID in roomID over t and blocks until
// it ends. The session is cancelled when ctx is done or the hub shuts down.
func (h *Hub) AcceptConnection(ctx context.Context, roomID, userID uuid.UUID, t Transport) error {
	session := h.newSession(roomID, userID, t)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = t.Close()
		return ErrHubClosed
	}
	h.sessions[session] = struct{}{}
	count := len(h.sessions)
	h.wg.Add(1)
	h.mu.Unlock()

	defer h.wg.Done()
	defer h.remove(session)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	session.log.Info().Int("sessions", count).Msg("session started")
	err := session.Run(ctx)
	session.log.Info().AnErr("reason", err).Msg("session ended")
	return err
}

func (h *Hub) newSession(roomID, userID uuid.UUID, t Transport) *Session {
	return &Session{
		roomID:       roomID,
		userID:       userID,
		transport:    t,
		registry:     h.registry,
		messages:     h.messages,
		users:        h.users,
		limiter:      newRateLimiter(h.cfg.RateLimit.Burst, h.cfg.RateLimit.RefillInterval),
		historyLimit: h.cfg.Chat.HistoryLimit,
		pingPeriod:   h.cfg.WebSocket.PingPeriod(),
		log: h.log.With().
			Str("room_id", roomID.String()).
			Str("user_id", userID.String()).
			Str("addr", t.RemoteAddr()).
			Logger(),
	}
}

func (h *Hub) remove(session *Session) {
	h.mu.Lock()
	delete(h.sessions, session)
	h.mu.Unlock()
}

// SessionCount returns the number of live sessions.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Registry returns the topic registry sessions publish through.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Shutdown stops accepting sessions, cancels the live ones and waits for them
// to finish, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.mu.Lock()
	h.closed = true
	count := len(h.sessions)
	h.mu.Unlock()

	h.log.Info().Int("sessions", count).Msg("initiating hub shutdown")
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info().Msg("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn().Msg("hub shutdown timeout reached, some sessions may still be running")
		return context.DeadlineExceeded
	}
}
