// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the room chat service.
package server

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// RateLimitConfig defines the parameters for per-connection frame rate limiting.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"           env:"BURST"`
	RefillInterval time.Duration `yaml:"refill_interval" env:"REFILL_INTERVAL"`
}

// WebSocketConfig controls connection keepalive and write deadlines.
type WebSocketConfig struct {
	PongWait  time.Duration `yaml:"pong_wait"  env:"PONG_WAIT"`
	WriteWait time.Duration `yaml:"write_wait" env:"WRITE_WAIT"`
}

// PingPeriod is how often the server pings an idle connection. It must be
// shorter than PongWait.
func (c WebSocketConfig) PingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// ChatConfig controls the room fan-out engine.
type ChatConfig struct {
	// TopicBuffer is the per-subscriber queue capacity of a room topic.
	TopicBuffer int `yaml:"topic_buffer" env:"TOPIC_BUFFER"`
	// HistoryLimit is the number of recent messages sent on join.
	HistoryLimit int `yaml:"history_limit" env:"HISTORY_LIMIT"`
	// EvictIdleTopics removes a room topic once no session references it.
	EvictIdleTopics bool `yaml:"evict_idle_topics" env:"EVICT_IDLE_TOPICS"`
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"ROOMCHAT_DATABASE_DRIVER"`
	DSN    string `yaml:"dsn"    env:"DATABASE_URL"`
}

// AuthConfig configures caller token verification.
type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"  env:"JWT_SECRET"`
	CookieName string        `yaml:"cookie_name" env:"ROOMCHAT_AUTH_COOKIE"`
	TokenTTL   time.Duration `yaml:"token_ttl"   env:"ROOMCHAT_AUTH_TOKEN_TTL"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port           string          `yaml:"port"             env:"ROOMCHAT_PORT"`
	AllowedOrigins []string        `yaml:"allowed_origins"  env:"ROOMCHAT_ALLOWED_ORIGINS" envSeparator:","`
	MaxMessageSize int64           `yaml:"max_message_size" env:"ROOMCHAT_MAX_MESSAGE_SIZE"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"       envPrefix:"ROOMCHAT_RATE_LIMIT_"`
	WebSocket      WebSocketConfig `yaml:"websocket"        envPrefix:"ROOMCHAT_WS_"`
	Chat           ChatConfig      `yaml:"chat"             envPrefix:"ROOMCHAT_CHAT_"`
	Database       DatabaseConfig  `yaml:"database"`
	Auth           AuthConfig      `yaml:"auth"`
}

// DefaultConfig returns a Config populated with default values for all settings.
func DefaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 4096,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		WebSocket: WebSocketConfig{
			PongWait:  60 * time.Second,
			WriteWait: 10 * time.Second,
		},
		Chat: ChatConfig{
			TopicBuffer:  100,
			HistoryLimit: 50,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "data/roomchat.db",
		},
		Auth: AuthConfig{
			CookieName: "jwt",
			TokenTTL:   24 * time.Hour,
		},
	}
}

// LoadConfig builds a Config from defaults, the optional YAML file at path,
// and environment variables, in increasing order of precedence.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// a missing config file means defaults plus environment
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	return SanitizeConfig(cfg), nil
}

// SanitizeConfig replaces unusable values with defaults and normalizes the
// origin list.
func SanitizeConfig(cfg Config) Config {
	defaults := DefaultConfig()

	if cfg.Port == "" {
		cfg.Port = defaults.Port
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaults.RateLimit.Burst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaults.RateLimit.RefillInterval
	}

	if cfg.WebSocket.PongWait <= 0 {
		cfg.WebSocket.PongWait = defaults.WebSocket.PongWait
	}

	if cfg.WebSocket.WriteWait <= 0 {
		cfg.WebSocket.WriteWait = defaults.WebSocket.WriteWait
	}

	if cfg.Chat.TopicBuffer <= 0 {
		cfg.Chat.TopicBuffer = defaults.Chat.TopicBuffer
	}

	if cfg.Chat.HistoryLimit <= 0 {
		cfg.Chat.HistoryLimit = defaults.Chat.HistoryLimit
	}

	if strings.TrimSpace(cfg.Database.Driver) == "" {
		cfg.Database.Driver = defaults.Database.Driver
	}

	if strings.TrimSpace(cfg.Auth.CookieName) == "" {
		cfg.Auth.CookieName = defaults.Auth.CookieName
	}

	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = defaults.Auth.TokenTTL
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// Validate reports settings that cannot be defaulted.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database dsn is required")
	}
	return nil
}
