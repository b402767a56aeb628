package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/weathera/internal/chat"
	"github.com/i474232898/weathera/internal/weather"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// sqliteDriver is go-sqlite3 with a REGEXP function backed by Go regexps, so
// location patterns behave the same as in the memory store.
const sqliteDriver = "sqlite3_weathera"

var regexpCache sync.Map // pattern -> *regexp.Regexp

func sqliteRegexp(pattern, s string) (bool, error) {
	if v, ok := regexpCache.Load(pattern); ok {
		return v.(*regexp.Regexp).MatchString(s), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	regexpCache.Store(pattern, re)
	return re.MatchString(s), nil
}

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("regexp", sqliteRegexp, true)
		},
	})
}

// SQLiteDSNForFile builds a DSN with WAL and a busy timeout for path.
func SQLiteDSNForFile(path string) string {
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
}

// SQLiteStore persists logs and turns in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = &SQLiteStore{}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite store: empty dsn")
	}
	db, err := sql.Open(sqliteDriver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: open")
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS weather_logs (
			id TEXT PRIMARY KEY,
			location TEXT NOT NULL,
			lat REAL,
			lon REAL,
			temperature REAL NOT NULL,
			humidity REAL NOT NULL,
			wind_speed REAL NOT NULL,
			pressure REAL NOT NULL DEFAULT 0,
			condition TEXT NOT NULL DEFAULT '',
			is_day INTEGER NOT NULL DEFAULT 1,
			ts_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS weather_logs_by_location_ts ON weather_logs(location, ts_ms DESC);`,
		`CREATE INDEX IF NOT EXISTS weather_logs_by_ts ON weather_logs(ts_ms DESC);`,
		`CREATE TABLE IF NOT EXISTS chat_turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_message TEXT NOT NULL,
			ai_reply TEXT NOT NULL,
			context_json TEXT NOT NULL DEFAULT '{}',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS chat_turns_by_session ON chat_turns(session_id, created_at_ms DESC);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite store: migrate")
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) AppendLog(ctx context.Context, rec weather.LogRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weather_logs (id, location, lat, lon, temperature, humidity, wind_speed, pressure, condition, is_day, ts_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Location, rec.Lat, rec.Lon, rec.Temperature, rec.Humidity, rec.WindSpeed,
		rec.Pressure, rec.Condition, rec.IsDay, rec.Timestamp.UnixMilli(),
	)
	return errors.Wrap(err, "sqlite store: append log")
}

const sqliteLogColumns = `id, location, lat, lon, temperature, humidity, wind_speed, pressure, condition, is_day, ts_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteLog(row rowScanner) (weather.LogRecord, error) {
	var (
		rec      weather.LogRecord
		lat, lon sql.NullFloat64
		tsMs     int64
	)
	if err := row.Scan(&rec.ID, &rec.Location, &lat, &lon, &rec.Temperature, &rec.Humidity,
		&rec.WindSpeed, &rec.Pressure, &rec.Condition, &rec.IsDay, &tsMs); err != nil {
		return weather.LogRecord{}, err
	}
	if lat.Valid && lon.Valid {
		rec.Lat, rec.Lon = &lat.Float64, &lon.Float64
	}
	rec.Timestamp = time.UnixMilli(tsMs).UTC()
	return rec, nil
}

func (s *SQLiteStore) QueryLogs(ctx context.Context, q weather.LogQuery) ([]weather.LogRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteLogColumns+` FROM weather_logs
		WHERE (? = '' OR location REGEXP ?)
		ORDER BY ts_ms DESC, rowid DESC
		LIMIT ?`,
		q.LocationPattern, q.LocationPattern, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: query logs")
	}
	defer func() { _ = rows.Close() }()

	var out []weather.LogRecord
	for rows.Next() {
		rec, err := scanSQLiteLog(rows)
		if err != nil {
			return nil, errors.Wrap(err, "sqlite store: scan log")
		}
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "sqlite store: iterate logs")
}

func (s *SQLiteStore) LatestLog(ctx context.Context, name string) (weather.LogRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sqliteLogColumns+` FROM weather_logs
		WHERE lower(location) = lower(?)
		ORDER BY ts_ms DESC, rowid DESC
		LIMIT 1`, strings.TrimSpace(name))
	rec, err := scanSQLiteLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.LogRecord{}, ErrNotFound
	}
	if err != nil {
		return weather.LogRecord{}, errors.Wrap(err, "sqlite store: latest log")
	}
	return rec, nil
}

func (s *SQLiteStore) Heatmap(ctx context.Context) ([]weather.HeatPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.location, w.lat, w.lon, w.temperature FROM weather_logs w
		WHERE w.lat IS NOT NULL AND w.lon IS NOT NULL
		AND w.rowid = (
			SELECT l.rowid FROM weather_logs l
			WHERE l.location = w.location AND l.lat IS NOT NULL AND l.lon IS NOT NULL
			ORDER BY l.ts_ms DESC, l.rowid DESC LIMIT 1
		)
		ORDER BY w.location`)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: heatmap")
	}
	defer func() { _ = rows.Close() }()

	points := []weather.HeatPoint{}
	for rows.Next() {
		var p weather.HeatPoint
		if err := rows.Scan(&p.Location, &p.Lat, &p.Lon, &p.Temperature); err != nil {
			return nil, errors.Wrap(err, "sqlite store: scan heat point")
		}
		points = append(points, p)
	}
	return points, errors.Wrap(rows.Err(), "sqlite store: iterate heatmap")
}

func (s *SQLiteStore) AppendTurn(ctx context.Context, turn chat.Turn) error {
	contextJSON, err := json.Marshal(turn.Context)
	if err != nil {
		return errors.Wrap(err, "sqlite store: marshal turn context")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_turns (id, session_id, user_message, ai_reply, context_json, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID, defaultSession(turn.SessionID), turn.UserMessage, turn.AIReply, string(contextJSON),
		turn.Timestamp.UnixMilli(),
	)
	return errors.Wrap(err, "sqlite store: append turn")
}

func (s *SQLiteStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]chat.Turn, error) {
	if limit <= 0 {
		limit = -1 // LIMIT -1 is unbounded in SQLite
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, user_message, ai_reply, context_json, created_at_ms
		FROM chat_turns WHERE session_id = ?
		ORDER BY created_at_ms DESC, rowid DESC
		LIMIT ?`, defaultSession(sessionID), limit)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: query turns")
	}
	defer func() { _ = rows.Close() }()

	var turns []chat.Turn
	for rows.Next() {
		var (
			t           chat.Turn
			contextJSON string
			createdMs   int64
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.UserMessage, &t.AIReply, &contextJSON, &createdMs); err != nil {
			return nil, errors.Wrap(err, "sqlite store: scan turn")
		}
		if err := json.Unmarshal([]byte(contextJSON), &t.Context); err != nil {
			return nil, errors.Wrap(err, "sqlite store: decode turn context")
		}
		t.Timestamp = time.UnixMilli(createdMs).UTC()
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite store: iterate turns")
	}

	reverseTurns(turns)
	return turns, nil
}
