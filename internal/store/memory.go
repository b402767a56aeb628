package store

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/weathera/internal/chat"
	"github.com/i474232898/weathera/internal/weather"
	"github.com/pkg/errors"
)

// maxTurnsPerSession bounds the in-memory conversation of one session.
const maxTurnsPerSession = 100

// logHistory holds the time-ordered logs of one location.
type logHistory struct {
	records []weather.LogRecord
}

// MemoryStore is a concurrency-safe in-memory Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: lower-cased location
	logs map[string]*logHistory
	// key: session id, oldest first
	turns map[string][]chat.Turn

	maxHistory int           // max number of logs per location
	maxAge     time.Duration // optional max age for logs
}

// NewMemoryStore creates a MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		logs:       make(map[string]*logHistory),
		turns:      make(map[string][]chat.Turn),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

func locationKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AppendLog stores rec and enforces retention for its location.
func (s *MemoryStore) AppendLog(_ context.Context, rec weather.LogRecord) error {
	key := locationKey(rec.Location)
	if key == "" {
		return errors.New("memory store: empty location")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.logs[key]
	if !ok {
		h = &logHistory{}
		s.logs[key] = h
	}
	h.records = append(h.records, rec)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(h.records) > s.maxHistory {
		over := len(h.records) - s.maxHistory
		h.records = h.records[over:]
	}

	// Enforce retention by age, always keeping the newest record.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(h.records)-1; i++ {
			if !h.records[i].Timestamp.Before(cutoff) {
				break
			}
		}
		h.records = h.records[i:]
	}
	return nil
}

// QueryLogs returns logs whose location matches q.LocationPattern, newest first.
func (s *MemoryStore) QueryLogs(_ context.Context, q weather.LogQuery) ([]weather.LogRecord, error) {
	var re *regexp.Regexp
	if q.LocationPattern != "" {
		var err error
		re, err = regexp.Compile(q.LocationPattern)
		if err != nil {
			return nil, errors.Wrap(err, "memory store: compile location pattern")
		}
	}

	s.mu.RLock()
	var out []weather.LogRecord
	for _, h := range s.logs {
		for _, rec := range h.records {
			if re == nil || re.MatchString(rec.Location) {
				out = append(out, rec)
			}
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// LatestLog returns the most recent log for a location.
func (s *MemoryStore) LatestLog(_ context.Context, name string) (weather.LogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.logs[locationKey(name)]
	if !ok || len(h.records) == 0 {
		return weather.LogRecord{}, ErrNotFound
	}
	return h.records[len(h.records)-1], nil
}

// Heatmap returns the newest log with coordinates of every location.
func (s *MemoryStore) Heatmap(_ context.Context) ([]weather.HeatPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := make([]weather.HeatPoint, 0, len(s.logs))
	for _, h := range s.logs {
		for i := len(h.records) - 1; i >= 0; i-- {
			rec := h.records[i]
			if rec.Lat == nil || rec.Lon == nil {
				continue
			}
			points = append(points, weather.HeatPoint{
				Location:    rec.Location,
				Lat:         *rec.Lat,
				Lon:         *rec.Lon,
				Temperature: rec.Temperature,
			})
			break
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Location < points[j].Location })
	return points, nil
}

// AppendTurn stores one chat exchange.
func (s *MemoryStore) AppendTurn(_ context.Context, turn chat.Turn) error {
	turn.SessionID = defaultSession(turn.SessionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.turns[turn.SessionID], turn)
	if len(turns) > maxTurnsPerSession {
		turns = turns[len(turns)-maxTurnsPerSession:]
	}
	s.turns[turn.SessionID] = turns
	return nil
}

// RecentTurns returns the last limit turns of a session, oldest first.
func (s *MemoryStore) RecentTurns(_ context.Context, sessionID string, limit int) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[defaultSession(sessionID)]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return append([]chat.Turn(nil), turns...), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
