package weather

import (
	"regexp"
	"strings"
	"time"
)

// Location represents a logical place for which we fetch weather.
// City must be provided; Lat/Lon are optional hints for coordinate-based providers.
type Location struct {
	City    string   `json:"city"`
	Country string   `json:"country,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// Key returns a canonical string key for logging and indexing this location.
func (l Location) Key() string {
	if l.Country == "" {
		return l.City
	}
	return l.City + ":" + l.Country
}

// Query returns the free-text query string providers accept ("city,country").
func (l Location) Query() string {
	if l.Country == "" {
		return l.City
	}
	return l.City + "," + l.Country
}

// ForecastDay is a single day of a short forecast.
type ForecastDay struct {
	Day       string  `json:"day"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Condition string  `json:"condition"`
}

// Reading is the normalized current + short forecast view returned by a provider.
type Reading struct {
	ProviderName string    `json:"provider"`
	Location     string    `json:"location"`
	LocalTime    string    `json:"localTime"` // HH:MM in the location's own zone
	IsDay        bool      `json:"isDay"`
	Timestamp    time.Time `json:"timestamp"` // always UTC

	TemperatureC float64 `json:"temperature"`
	FeelsLikeC   float64 `json:"feelsLike"`
	HumidityPct  float64 `json:"humidity"`
	WindKph      float64 `json:"windSpeed"`
	PressureHpa  float64 `json:"pressure"`
	PrecipMm     float64 `json:"precip"`
	Condition    string  `json:"condition"`

	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`

	Forecast []ForecastDay `json:"forecast"`
}

// LogRecord is one persisted weather observation. Immutable once stored.
type LogRecord struct {
	ID          string    `json:"id"`
	Location    string    `json:"location"`
	Lat         *float64  `json:"lat,omitempty"`
	Lon         *float64  `json:"lon,omitempty"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	WindSpeed   float64   `json:"windSpeed"`
	Pressure    float64   `json:"pressure"`
	Condition   string    `json:"condition"`
	IsDay       bool      `json:"isDay"`
	Timestamp   time.Time `json:"timestamp"`
}

// SameReading reports whether two records carry identical observations. Used to
// debounce clients that re-post an unchanged reading.
func (r LogRecord) SameReading(o LogRecord) bool {
	return r.Temperature == o.Temperature &&
		r.Humidity == o.Humidity &&
		r.WindSpeed == o.WindSpeed &&
		r.Condition == o.Condition &&
		r.IsDay == o.IsDay
}

// LogFromReading converts a provider reading into a log record.
func LogFromReading(r Reading) LogRecord {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return LogRecord{
		Location:    r.Location,
		Lat:         r.Lat,
		Lon:         r.Lon,
		Temperature: r.TemperatureC,
		Humidity:    r.HumidityPct,
		WindSpeed:   r.WindKph,
		Pressure:    r.PressureHpa,
		Condition:   r.Condition,
		IsDay:       r.IsDay,
		Timestamp:   ts,
	}
}

// HeatPoint is the latest temperature of a location that has coordinates.
type HeatPoint struct {
	Location    string  `json:"location"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Temperature float64 `json:"temp"`
}

// LocationPattern turns a user-supplied location name into a case-insensitive
// substring pattern with every regexp metacharacter escaped. The result is valid
// both as a Go regexp and as a PostgreSQL ARE.
func LocationPattern(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return "(?i)" + regexp.QuoteMeta(name)
}

var indonesianWeekdays = [...]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}

// IndonesianWeekday returns the Indonesian day name shown in forecast summaries.
func IndonesianWeekday(d time.Weekday) string {
	return indonesianWeekdays[d]
}

var indonesianMonths = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// IndonesianMonth returns the Indonesian month name.
func IndonesianMonth(m time.Month) string {
	return indonesianMonths[m-1]
}
