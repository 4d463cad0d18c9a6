// Package server assembles the room chat HTTP service from its configuration,
// store and token verifier.
package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/chat"
)

// Store is the persistence surface the server depends on.
type Store interface {
	chat.MessageStore
	chat.RoomStore
	chat.UserDirectory
}

// Server holds the dependencies shared by the HTTP handlers.
type Server struct {
	cfg      Config
	store    Store
	tokens   *auth.TokenManager
	registry *Registry
	hub      *Hub
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// New builds a Server with its own topic registry and session hub.
func New(cfg Config, store Store, tokens *auth.TokenManager, log zerolog.Logger) *Server {
	cfg = SanitizeConfig(cfg)
	log = log.With().Str("component", "server").Logger()

	registry := NewRegistry(cfg.Chat.TopicBuffer, cfg.Chat.EvictIdleTopics, log)
	origins := newOriginPolicy(cfg.AllowedOrigins, log)

	return &Server{
		cfg:      cfg,
		store:    store,
		tokens:   tokens,
		registry: registry,
		hub:      NewHub(registry, store, store, cfg, log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		log: log,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.SetupRoutes()
}

// Hub returns the session hub for shutdown coordination.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Config returns the sanitized configuration the server runs with.
func (s *Server) Config() Config {
	return s.cfg
}
