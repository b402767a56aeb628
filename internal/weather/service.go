package weather

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service orchestrates fetching from providers and persisting weather logs.
type Service struct {
	store     LogStore
	providers []Provider
}

// NewService creates a new Service. Providers are tried in the given order.
func NewService(store LogStore, providers []Provider) *Service {
	return &Service{
		store:     store,
		providers: providers,
	}
}

// FetchForecast returns the first successful reading for the named location.
// Providers are tried in order; a failing provider only moves on to the next one.
func (s *Service) FetchForecast(ctx context.Context, location string, days int) (Reading, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return Reading{}, fmt.Errorf("location is required")
	}
	if days <= 0 {
		return Reading{}, fmt.Errorf("days must be greater than zero")
	}
	if len(s.providers) == 0 {
		return Reading{}, ErrNoProvider
	}

	loc := Location{City: location}
	var errs []error
	for _, p := range s.providers {
		r, err := p.FetchForecast(ctx, loc, days)
		if err != nil {
			log.Warn().Err(err).Str("provider", p.Name()).Str("location", location).Msg("forecast fetch failed")
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return r, nil
	}
	return Reading{}, errors.Join(errs...)
}

// FetchAndStore fetches the current reading for loc and appends it to the log store.
func (s *Service) FetchAndStore(ctx context.Context, loc Location) error {
	r, err := s.FetchForecast(ctx, loc.Query(), 1)
	if err != nil {
		return err
	}
	rec := LogFromReading(r)
	if rec.Location == "" {
		rec.Location = loc.City
	}
	if _, err := s.LogReading(ctx, rec); err != nil {
		return err
	}
	return nil
}

// LogReading appends rec unless it is identical to the newest record for the same
// location. It reports whether the record was skipped.
func (s *Service) LogReading(ctx context.Context, rec LogRecord) (bool, error) {
	rec.Location = strings.TrimSpace(rec.Location)
	if rec.Location == "" {
		return false, fmt.Errorf("location is required")
	}

	last, err := s.store.LatestLog(ctx, rec.Location)
	switch {
	case err == nil:
		if last.SameReading(rec) {
			log.Debug().Str("location", rec.Location).Msg("weather log unchanged; skipping")
			return true, nil
		}
	case errors.Is(err, ErrNotFound):
	default:
		return false, fmt.Errorf("lookup latest log: %w", err)
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if err := s.store.AppendLog(ctx, rec); err != nil {
		return false, fmt.Errorf("append log: %w", err)
	}
	return false, nil
}

// History returns up to limit logs whose location contains name (case-insensitive),
// newest first. An empty name returns logs for every location.
func (s *Service) History(ctx context.Context, name string, limit int) ([]LogRecord, error) {
	return s.store.QueryLogs(ctx, LogQuery{
		LocationPattern: LocationPattern(name),
		Limit:           limit,
	})
}

// Heatmap delegates to the underlying store.
func (s *Service) Heatmap(ctx context.Context) ([]HeatPoint, error) {
	return s.store.Heatmap(ctx)
}
