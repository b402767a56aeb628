package store

import (
	"context"
	"strings"
	"time"

	"github.com/i474232898/weathera/internal/chat"
	"github.com/i474232898/weathera/internal/weather"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when no data is available for a given location.
var ErrNotFound = weather.ErrNotFound

// Store persists weather logs and chat turns.
type Store interface {
	weather.LogStore
	chat.TurnStore
	Close() error
}

// Options selects and tunes the backing store.
type Options struct {
	// DatabaseURL selects Postgres when set.
	DatabaseURL string
	// SQLitePath selects SQLite when set and DatabaseURL is empty.
	SQLitePath string
	// MaxHistory and MaxAge bound the in-memory log retention per location.
	MaxHistory int
	MaxAge     time.Duration
}

// Open returns a Postgres store when a database URL is configured, a SQLite
// store when a path is configured, and an in-memory store otherwise.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch {
	case strings.TrimSpace(opts.DatabaseURL) != "":
		log.Info().Msg("using postgres store")
		return NewPostgresStore(ctx, opts.DatabaseURL)
	case strings.TrimSpace(opts.SQLitePath) != "":
		log.Info().Str("path", opts.SQLitePath).Msg("using sqlite store")
		return NewSQLiteStore(SQLiteDSNForFile(opts.SQLitePath))
	default:
		log.Warn().Msg("no database configured; using in-memory store")
		return NewMemoryStore(opts.MaxHistory, opts.MaxAge), nil
	}
}

func reverseTurns(turns []chat.Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}

func defaultSession(id string) string {
	if strings.TrimSpace(id) == "" {
		return chat.DefaultSessionID
	}
	return id
}
