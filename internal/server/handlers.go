// Package server exposes HTTP handlers, including room management, WebSocket
// upgrades and health checks.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/chat"
)

const maxRequestBody = 1 << 20

// HealthHandler provides a simple health check endpoint that returns server status.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "roomchat server is running! (%d rooms live)", s.registry.Len())
}

// CreateRoomHandler creates a room owned by the caller.
func (s *Server) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var in chat.RoomInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	in, err := in.Validate()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	room, err := s.store.CreateRoom(r.Context(), ownerID, in)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}

	s.log.Info().Str("room_id", room.ID.String()).Str("owner_id", ownerID.String()).Msg("room created")
	respondOK(w, http.StatusCreated, "Room created successfully", room)
}

// GetRoomHandler returns one room by id.
func (s *Server) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID, ok := parseRoomID(w, r)
	if !ok {
		return
	}

	room, err := s.store.GetRoom(r.Context(), roomID)
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}

	respondOK(w, http.StatusOK, "Room fetched successfully", room)
}

// ListRoomsHandler returns every room.
func (s *Server) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.store.ListRooms(r.Context())
	if err != nil {
		s.respondStoreError(w, r, err)
		return
	}
	if rooms == nil {
		rooms = []chat.Room{}
	}

	respondOK(w, http.StatusOK, "Rooms fetched successfully", rooms)
}

// WebSocketHandler upgrades the request to a WebSocket and runs a room
// session on it until the client disconnects.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	roomID, ok := parseRoomID(w, r)
	if !ok {
		return
	}

	if _, err := s.store.GetRoom(r.Context(), roomID); err != nil {
		s.respondStoreError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	transport := newWSTransport(conn, r.RemoteAddr, s.cfg, s.log)
	_ = s.hub.AcceptConnection(r.Context(), roomID, userID, transport)
}

func parseRoomID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	roomID, err := uuid.Parse(r.PathValue("roomID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid room id")
		return uuid.Nil, false
	}
	return roomID, true
}

func (s *Server) respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondError(w, status, "Internal server error")
		return
	}
	respondError(w, status, err.Error())
}
