package weather

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no data is available for a given location.
	ErrNotFound = errors.New("no weather data for location")
	// ErrNoProvider is returned when the service has no providers configured.
	ErrNoProvider = errors.New("no weather providers configured")
)

// Provider abstracts a weather data source (e.g. WeatherAPI, Open-Meteo).
// Implementations signal non-OK upstream responses through the returned error.
type Provider interface {
	Name() string
	FetchForecast(ctx context.Context, loc Location, days int) (Reading, error)
}

// LogQuery filters stored weather logs.
type LogQuery struct {
	// LocationPattern is an already escaped regexp (see LocationPattern).
	// Empty matches every location.
	LocationPattern string
	Limit           int
}

// LogStore is the contract the weather log stores (memory, SQLite, Postgres) satisfy.
type LogStore interface {
	AppendLog(ctx context.Context, rec LogRecord) error
	// QueryLogs returns matching records ordered newest first.
	QueryLogs(ctx context.Context, q LogQuery) ([]LogRecord, error)
	// LatestLog returns the newest record whose location equals name
	// case-insensitively, or ErrNotFound.
	LatestLog(ctx context.Context, name string) (LogRecord, error)
	// Heatmap returns the latest reading per location that carries coordinates.
	Heatmap(ctx context.Context) ([]HeatPoint, error)
}
