// Package server runs one connected client's session: the history backfill
// followed by paired inbound and outbound tasks that stop together.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// SessionState is the lifecycle stage of a Session.
type SessionState int32

// Session states, in the order a session moves through them.
const (
	StateHandshaking SessionState = iota
	StateStreaming
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int32(s))
	}
}

var errSubscriptionClosed = errors.New("subscription closed")

// Session serves one client connected to one room.
type Session struct {
	roomID    uuid.UUID
	userID    uuid.UUID
	transport Transport

	registry     *Registry
	messages     chat.MessageStore
	users        chat.UserDirectory
	limiter      *rateLimiter
	historyLimit int
	pingPeriod   time.Duration
	log          zerolog.Logger

	displayName string
	state       atomic.Int32
}

// State returns the current lifecycle stage.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) setState(state SessionState) {
	s.state.Store(int32(state))
}

// Run drives the session to completion. It returns when both tasks have
// stopped and the subscription has been released. The returned error
// describes why the session ended.
func (s *Session) Run(ctx context.Context) error {
	defer s.setState(StateClosed)

	name, err := s.users.ResolveDisplayName(ctx, s.userID)
	if err != nil {
		s.closeTransport()
		return fmt.Errorf("resolve display name: %w", err)
	}
	s.displayName = name

	s.setState(StateStreaming)
	topic := s.registry.Acquire(s.roomID)
	defer s.registry.Release(s.roomID)

	sub := topic.Subscribe()
	defer func() {
		sub.Close()
		if dropped := sub.Dropped(); dropped > 0 {
			s.log.Warn().Uint64("dropped", dropped).Msg("slow subscriber missed events")
		}
	}()

	if err := s.sendHistory(ctx); err != nil {
		s.setState(StateClosing)
		s.closeTransport()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, s.closeTransport)
	defer stop()

	var g errgroup.Group
	g.Go(func() error {
		defer s.finish(cancel)
		return s.writeLoop(ctx, sub)
	})
	g.Go(func() error {
		defer s.finish(cancel)
		return s.readLoop(ctx, topic)
	})

	err = g.Wait()
	s.closeTransport()
	return err
}

// finish is run by whichever task stops; the first one cancels the other.
func (s *Session) finish(cancel context.CancelFunc) {
	s.state.CompareAndSwap(int32(StateStreaming), int32(StateClosing))
	cancel()
}

func (s *Session) sendHistory(ctx context.Context) error {
	messages, err := s.messages.LoadRecentMessages(ctx, s.roomID, s.historyLimit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load history")
		return nil
	}

	data, err := EncodeServerEvent(newHistoryEvent(messages))
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode history")
		return nil
	}

	if err := s.transport.WriteFrame(data); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

func (s *Session) writeLoop(ctx context.Context, sub *Subscription) error {
	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-sub.Events():
			if !ok {
				return errSubscriptionClosed
			}
			if err := s.writeEvent(event); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		case <-ticker.C:
			if err := s.transport.Ping(); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (s *Session) writeEvent(event ServerEvent) error {
	data, err := EncodeServerEvent(event)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode event")
		return nil
	}
	if err := s.transport.WriteFrame(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (s *Session) readLoop(ctx context.Context, topic *Topic) error {
	for {
		data, err := s.transport.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		if !s.limiter.allow() {
			s.log.Warn().Msg("rate limit exceeded; discarding frame")
			continue
		}

		event, err := DecodeClientEvent(data)
		if err != nil {
			s.log.Warn().Err(err).Msg("discarding malformed frame")
			continue
		}

		s.handleEvent(ctx, topic, event)
	}
}

func (s *Session) handleEvent(ctx context.Context, topic *Topic, event ClientEvent) {
	switch e := event.(type) {
	case ChatSend:
		content, err := chat.NormalizeContent(e.Content)
		if err != nil {
			s.log.Debug().Err(err).Msg("discarding chat message")
			return
		}

		msg, err := s.messages.CreateMessage(ctx, s.roomID, s.userID, content)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to persist message")
			return
		}

		if msg.AuthorName == "" {
			msg.AuthorName = s.displayName
		}
		delivered := topic.Publish(newChatMessageEvent(msg))
		s.log.Debug().Str("message_id", msg.ID.String()).Int("subscribers", delivered).Msg("published message")
	case Ping:
		topic.Publish(PongEvent{})
	}
}

func (s *Session) closeTransport() {
	if err := s.transport.Close(); err != nil && !isExpectedCloseError(err) {
		s.log.Debug().Err(err).Msg("error closing transport")
	}
}
