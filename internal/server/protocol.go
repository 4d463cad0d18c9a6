// Package server defines the JSON events exchanged with room clients and the
// codec that turns them into and out of transport frames.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// Wire event type tags.
const (
	typeChatSend    = "chat_send"
	typePing        = "ping"
	typeHistory     = "history"
	typeChatMessage = "chat_message"
	typePong        = "pong"
)

// ErrUnknownEvent is returned by DecodeClientEvent for an unrecognized type tag.
var ErrUnknownEvent = errors.New("unknown event type")

// ClientEvent is an event sent by a client. It is one of ChatSend or Ping.
type ClientEvent interface {
	clientEvent()
}

// ChatSend asks the server to persist and broadcast a chat message.
type ChatSend struct {
	Content string
}

// Ping asks the server to publish a pong to the room.
type Ping struct{}

func (ChatSend) clientEvent() {}
func (Ping) clientEvent()     {}

// ServerEvent is an event sent to clients. It is one of HistoryEvent,
// ChatMessageEvent or PongEvent.
type ServerEvent interface {
	serverEvent()
}

// ChatMessageEvent is a persisted message as broadcast to a room.
type ChatMessageEvent struct {
	ID        uuid.UUID `json:"id"`
	User      string    `json:"user"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryEvent is the backlog sent once to a joining client, newest first.
type HistoryEvent struct {
	Messages []ChatMessageEvent `json:"messages"`
}

// PongEvent answers a Ping.
type PongEvent struct{}

func (HistoryEvent) serverEvent()     {}
func (ChatMessageEvent) serverEvent() {}
func (PongEvent) serverEvent()        {}

// newChatMessageEvent converts a stored message into its broadcast form.
func newChatMessageEvent(m chat.Message) ChatMessageEvent {
	return ChatMessageEvent{
		ID:        m.ID,
		User:      m.AuthorName,
		Message:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func newHistoryEvent(messages []chat.Message) HistoryEvent {
	events := make([]ChatMessageEvent, 0, len(messages))
	for _, m := range messages {
		events = append(events, newChatMessageEvent(m))
	}
	return HistoryEvent{Messages: events}
}

type clientFrame struct {
	Type    string  `json:"type"`
	Content *string `json:"content,omitempty"`
}

// DecodeClientEvent parses one client frame.
func DecodeClientEvent(data []byte) (ClientEvent, error) {
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("decode client event: %w", err)
	}

	switch frame.Type {
	case typeChatSend:
		if frame.Content == nil {
			return nil, errors.New("decode client event: chat_send without content")
		}
		return ChatSend{Content: *frame.Content}, nil
	case typePing:
		return Ping{}, nil
	default:
		return nil, fmt.Errorf("decode client event %q: %w", frame.Type, ErrUnknownEvent)
	}
}

// EncodeServerEvent renders a server event as one JSON frame.
func EncodeServerEvent(event ServerEvent) ([]byte, error) {
	var frame any

	switch e := event.(type) {
	case HistoryEvent:
		messages := e.Messages
		if messages == nil {
			messages = []ChatMessageEvent{}
		}
		frame = struct {
			Type     string             `json:"type"`
			Messages []ChatMessageEvent `json:"messages"`
		}{typeHistory, messages}
	case ChatMessageEvent:
		frame = struct {
			Type string `json:"type"`
			ChatMessageEvent
		}{typeChatMessage, e}
	case PongEvent:
		frame = struct {
			Type string `json:"type"`
		}{typePong}
	default:
		return nil, fmt.Errorf("encode server event: unsupported %T", event)
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode server event: %w", err)
	}
	return data, nil
}
