package store

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/i474232898/weathera/internal/chat"
	"github.com/i474232898/weathera/internal/weather"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PostgresStore persists logs and turns in PostgreSQL. Location patterns are
// evaluated with the ~ operator; weather.LocationPattern output is a valid ARE.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = &PostgresStore{}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS weather_logs (
			id TEXT PRIMARY KEY,
			location TEXT NOT NULL,
			lat DOUBLE PRECISION,
			lon DOUBLE PRECISION,
			temperature DOUBLE PRECISION NOT NULL,
			humidity DOUBLE PRECISION NOT NULL,
			wind_speed DOUBLE PRECISION NOT NULL,
			pressure DOUBLE PRECISION NOT NULL DEFAULT 0,
			condition TEXT NOT NULL DEFAULT '',
			is_day BOOLEAN NOT NULL DEFAULT TRUE,
			ts TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_weather_logs_location_ts ON weather_logs (location, ts DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_weather_logs_ts ON weather_logs (ts DESC);`,
		`CREATE TABLE IF NOT EXISTS chat_turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_message TEXT NOT NULL,
			ai_reply TEXT NOT NULL,
			context JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chat_turns_session_created ON chat_turns (session_id, created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "init schema failed on %q", stmt)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) AppendLog(ctx context.Context, rec weather.LogRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO weather_logs (id, location, lat, lon, temperature, humidity, wind_speed, pressure, condition, is_day, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.Location, rec.Lat, rec.Lon, rec.Temperature, rec.Humidity, rec.WindSpeed,
		rec.Pressure, rec.Condition, rec.IsDay, rec.Timestamp,
	)
	return errors.Wrap(err, "append log")
}

const pgLogColumns = `id, location, lat, lon, temperature, humidity, wind_speed, pressure, condition, is_day, ts`

func scanPgLog(row pgx.Row) (weather.LogRecord, error) {
	var rec weather.LogRecord
	err := row.Scan(&rec.ID, &rec.Location, &rec.Lat, &rec.Lon, &rec.Temperature, &rec.Humidity,
		&rec.WindSpeed, &rec.Pressure, &rec.Condition, &rec.IsDay, &rec.Timestamp)
	if rec.Lat == nil || rec.Lon == nil {
		rec.Lat, rec.Lon = nil, nil
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, err
}

func (s *PostgresStore) QueryLogs(ctx context.Context, q weather.LogQuery) ([]weather.LogRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgLogColumns+` FROM weather_logs
		 WHERE ($1::text = '' OR location ~ $1::text)
		 ORDER BY ts DESC LIMIT $2`,
		q.LocationPattern, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query logs")
	}
	defer rows.Close()

	var out []weather.LogRecord
	for rows.Next() {
		rec, err := scanPgLog(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan log row")
		}
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "iterate log rows")
}

func (s *PostgresStore) LatestLog(ctx context.Context, name string) (weather.LogRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgLogColumns+` FROM weather_logs
		 WHERE lower(location) = lower($1)
		 ORDER BY ts DESC LIMIT 1`, strings.TrimSpace(name))
	rec, err := scanPgLog(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return weather.LogRecord{}, ErrNotFound
	}
	if err != nil {
		return weather.LogRecord{}, errors.Wrap(err, "latest log")
	}
	return rec, nil
}

func (s *PostgresStore) Heatmap(ctx context.Context) ([]weather.HeatPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (location) location, lat, lon, temperature
		 FROM weather_logs
		 WHERE lat IS NOT NULL AND lon IS NOT NULL
		 ORDER BY location, ts DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "heatmap")
	}
	defer rows.Close()

	points := []weather.HeatPoint{}
	for rows.Next() {
		var p weather.HeatPoint
		if err := rows.Scan(&p.Location, &p.Lat, &p.Lon, &p.Temperature); err != nil {
			return nil, errors.Wrap(err, "scan heat point")
		}
		points = append(points, p)
	}
	return points, errors.Wrap(rows.Err(), "iterate heatmap rows")
}

func (s *PostgresStore) AppendTurn(ctx context.Context, turn chat.Turn) error {
	contextJSON, err := json.Marshal(turn.Context)
	if err != nil {
		return errors.Wrap(err, "marshal turn context")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO chat_turns (id, session_id, user_message, ai_reply, context, created_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		turn.ID, defaultSession(turn.SessionID), turn.UserMessage, turn.AIReply, string(contextJSON), turn.Timestamp,
	)
	return errors.Wrap(err, "save turn")
}

func (s *PostgresStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]chat.Turn, error) {
	// LIMIT NULL is no limit.
	var maxRows *int
	if limit > 0 {
		maxRows = &limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, user_message, ai_reply, context::text, created_at
		 FROM chat_turns WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`,
		defaultSession(sessionID), maxRows,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query recent turns")
	}
	defer rows.Close()

	var turns []chat.Turn
	for rows.Next() {
		var (
			t           chat.Turn
			contextJSON string
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.UserMessage, &t.AIReply, &contextJSON, &t.Timestamp); err != nil {
			return nil, errors.Wrap(err, "scan turn row")
		}
		if err := json.Unmarshal([]byte(contextJSON), &t.Context); err != nil {
			return nil, errors.Wrap(err, "decode turn context")
		}
		t.Timestamp = t.Timestamp.UTC()
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate turn rows")
	}

	// Reverse into chronological order for prompt coherence.
	reverseTurns(turns)
	return turns, nil
}
