package chat

import "errors"

// Validation errors.
var (
	ErrInvalidMessage    = errors.New("message should not be empty")
	ErrInvalidRoomName   = errors.New("room name is required")
	ErrDescriptionEmpty  = errors.New("description cannot be blank")
	ErrInvalidProfilePic = errors.New("invalid profile pic")
)

// Lookup errors.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrRoomNotFound = errors.New("room not found")
)

// IsValidation reports whether err is one of the input validation errors.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidMessage) ||
		errors.Is(err, ErrInvalidRoomName) ||
		errors.Is(err, ErrDescriptionEmpty) ||
		errors.Is(err, ErrInvalidProfilePic)
}
