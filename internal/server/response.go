// Package server writes the JSON envelope shared by all API responses.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// Response is the envelope every API endpoint replies with.
type Response struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Message: message, Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Message: message, Success: false})
}

// statusForError maps domain errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case chat.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrRoomNotFound), errors.Is(err, chat.ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
