// Package store selects and opens the configured chat.Store backend.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/store/postgres"
	"github.com/Tyrowin/roomchat/internal/store/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open opens the backend named by driver using dsn (a file path for sqlite,
// a connection URL for postgres).
func Open(ctx context.Context, driver, dsn string, log zerolog.Logger) (chat.Store, error) {
	log = log.With().Str("component", "store").Str("driver", driver).Logger()

	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "":
		s, err := sqlite.Open(dsn, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres, "postgresql", "pgx":
		s, err := postgres.Open(ctx, dsn, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
