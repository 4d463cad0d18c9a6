package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 100, cfg.Chat.TopicBuffer)
	assert.Equal(t, 50, cfg.Chat.HistoryLimit)
	assert.False(t, cfg.Chat.EvictIdleTopics)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "jwt", cfg.Auth.CookieName)
	assert.Equal(t, 54*time.Second, cfg.WebSocket.PingPeriod())
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roomchat.yaml")
	content := `
port: ":9090"
allowed_origins:
  - https://chat.example.com
max_message_size: 2048
rate_limit:
  burst: 10
  refill_interval: 2s
chat:
  topic_buffer: 32
  history_limit: 20
  evict_idle_topics: true
database:
  driver: postgres
  dsn: postgres://localhost/roomchat
auth:
  jwt_secret: from-file
  token_ttl: 1h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, []string{"https://chat.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(2048), cfg.MaxMessageSize)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 32, cfg.Chat.TopicBuffer)
	assert.Equal(t, 20, cfg.Chat.HistoryLimit)
	assert.True(t, cfg.Chat.EvictIdleTopics)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/roomchat", cfg.Database.DSN)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	// unset keys keep their defaults
	assert.Equal(t, 60*time.Second, cfg.WebSocket.PongWait)
	assert.Equal(t, "jwt", cfg.Auth.CookieName)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roomchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \":9090\"\nauth:\n  jwt_secret: from-file\n"), 0o600))

	t.Setenv("ROOMCHAT_PORT", ":7070")
	t.Setenv("ROOMCHAT_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("ROOMCHAT_RATE_LIMIT_BURST", "3")
	t.Setenv("ROOMCHAT_CHAT_HISTORY_LIMIT", "10")
	t.Setenv("ROOMCHAT_WS_PONG_WAIT", "30s")
	t.Setenv("DATABASE_URL", "/tmp/chat.db")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 3, cfg.RateLimit.Burst)
	assert.Equal(t, 10, cfg.Chat.HistoryLimit)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PongWait)
	assert.Equal(t, "/tmp/chat.db", cfg.Database.DSN)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roomchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigInvalidEnv(t *testing.T) {
	t.Setenv("ROOMCHAT_RATE_LIMIT_BURST", "many")
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestSanitizeConfigRestoresDefaults(t *testing.T) {
	cfg := SanitizeConfig(Config{
		MaxMessageSize: -1,
		RateLimit:      RateLimitConfig{Burst: 0, RefillInterval: -time.Second},
		Chat:           ChatConfig{TopicBuffer: -5},
		Auth:           AuthConfig{CookieName: "  "},
	})
	defaults := DefaultConfig()

	assert.Equal(t, defaults.Port, cfg.Port)
	assert.Equal(t, defaults.MaxMessageSize, cfg.MaxMessageSize)
	assert.Equal(t, defaults.RateLimit, cfg.RateLimit)
	assert.Equal(t, defaults.WebSocket, cfg.WebSocket)
	assert.Equal(t, defaults.Chat.TopicBuffer, cfg.Chat.TopicBuffer)
	assert.Equal(t, defaults.Chat.HistoryLimit, cfg.Chat.HistoryLimit)
	assert.Equal(t, defaults.Database.Driver, cfg.Database.Driver)
	assert.Equal(t, defaults.Auth.CookieName, cfg.Auth.CookieName)
	assert.Equal(t, defaults.Auth.TokenTTL, cfg.Auth.TokenTTL)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate())

	cfg.Auth.JWTSecret = "secret"
	assert.NoError(t, cfg.Validate())

	cfg.Database.DSN = " "
	assert.Error(t, cfg.Validate())
}
