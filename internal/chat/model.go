// Package chat defines the room and message domain shared by the realtime
// server and the storage backends.
package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Room is a chat room created by its owner. Rooms are immutable once created.
type Room struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	ProfilePic  *string   `json:"profile_pic"`
	CreatedAt   time.Time `json:"created_at"`
}

// Message is a persisted chat message. AuthorName is resolved from the author's
// identity when the message is read back.
type Message struct {
	ID         uuid.UUID `json:"id"`
	RoomID     uuid.UUID `json:"room_id"`
	AuthorID   uuid.UUID `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// User is the minimal identity record the chat core reads display names from.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomInput carries the caller-supplied attributes of a new room.
type RoomInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	ProfilePic  *string `json:"profile_pic"`
}

// Validate trims the room name and checks the optional attributes. Optional
// attributes, when present, must not be blank.
func (in RoomInput) Validate() (RoomInput, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return RoomInput{}, ErrInvalidRoomName
	}

	if in.Description != nil && strings.TrimSpace(*in.Description) == "" {
		return RoomInput{}, ErrDescriptionEmpty
	}

	if in.ProfilePic != nil && strings.TrimSpace(*in.ProfilePic) == "" {
		return RoomInput{}, ErrInvalidProfilePic
	}

	return RoomInput{
		Name:        name,
		Description: in.Description,
		ProfilePic:  in.ProfilePic,
	}, nil
}

// NormalizeContent trims chat content and rejects it when nothing is left.
func NormalizeContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrInvalidMessage
	}
	return trimmed, nil
}
