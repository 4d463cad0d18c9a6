package chat

import (
	"context"

	"github.com/google/uuid"
)

// MessageStore persists and reads back chat messages.
type MessageStore interface {
	// CreateMessage stores one message and returns it with its id and timestamp.
	CreateMessage(ctx context.Context, roomID, authorID uuid.UUID, content string) (Message, error)
	// LoadRecentMessages returns at most limit messages for the room, newest first.
	LoadRecentMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]Message, error)
}

// RoomStore creates and reads rooms.
type RoomStore interface {
	CreateRoom(ctx context.Context, ownerID uuid.UUID, in RoomInput) (Room, error)
	// GetRoom returns ErrRoomNotFound when no room has the id.
	GetRoom(ctx context.Context, roomID uuid.UUID) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
}

// UserDirectory resolves authenticated identities to display names.
type UserDirectory interface {
	// ResolveDisplayName returns ErrUserNotFound for unknown ids.
	ResolveDisplayName(ctx context.Context, userID uuid.UUID) (string, error)
}

// Store is the full persistence surface used by the application.
type Store interface {
	MessageStore
	RoomStore
	UserDirectory
	CreateUser(ctx context.Context, name, email string) (User, error)
	Close() error
}
