// Package server wires HTTP handlers into a ServeMux for the room chat
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
// Everything under /api requires an authenticated caller.
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.HealthHandler)
	mux.Handle("POST /api/room", s.requireUser(http.HandlerFunc(s.CreateRoomHandler)))
	mux.Handle("GET /api/room/info/{roomID}", s.requireUser(http.HandlerFunc(s.GetRoomHandler)))
	mux.Handle("GET /api/rooms", s.requireUser(http.HandlerFunc(s.ListRoomsHandler)))
	mux.Handle("GET /api/room/{roomID}", s.requireUser(http.HandlerFunc(s.WebSocketHandler)))
	return mux
}
