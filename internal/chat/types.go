package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weathera/internal/weather"
)

// MaxForecastDays bounds the forecast carried in a WeatherContext.
const MaxForecastDays = 3

// Number is a float that tolerates JSON numbers, numeric strings and null.
// Anything unparseable or non-finite decodes to 0 so a sloppy client never
// fails a chat.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*n = 0
			return nil
		}
		b = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		*n = 0
		return nil
	}
	*n = Number(v)
	return nil
}

// String renders n the way a JS template literal would ("27", "27.5").
func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'f', -1, 64)
}

// DayFlag is the day/night marker of a context. Clients send it as a bool, 0/1,
// or an already localized label ("Siang"/"Malam").
type DayFlag string

const (
	DayFlagUnknown DayFlag = ""
	DayFlagDay     DayFlag = "Siang"
	DayFlagNight   DayFlag = "Malam"
)

func DayFlagOf(isDay bool) DayFlag {
	if isDay {
		return DayFlagDay
	}
	return DayFlagNight
}

func (d *DayFlag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		*d = DayFlagUnknown
		return nil
	}
	switch t := v.(type) {
	case bool:
		*d = DayFlagOf(t)
	case float64:
		*d = DayFlagOf(t == 1)
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "day", "siang", "pagi", "sore":
			*d = DayFlagDay
		case "0", "false", "night", "malam":
			*d = DayFlagNight
		default:
			*d = DayFlagUnknown
		}
	default:
		*d = DayFlagUnknown
	}
	return nil
}

// Label returns the flag for display, "Unknown" when absent.
func (d DayFlag) Label() string {
	if d == DayFlagUnknown {
		return "Unknown"
	}
	return string(d)
}

// ForecastSummary is one forecast day as sent by the dashboard.
type ForecastSummary struct {
	Day       string `json:"day"`
	High      Number `json:"high"`
	Low       Number `json:"low"`
	Condition string `json:"condition"`
}

// WeatherContext is the live snapshot handed to the chat pipeline per request.
// It is request-scoped and mutated in place by the Enricher.
type WeatherContext struct {
	Location    string            `json:"location"`
	LocalTime   string            `json:"localTime"`
	IsDay       DayFlag           `json:"isDay"`
	Temperature Number            `json:"temperature"`
	FeelsLike   Number            `json:"feelsLike"`
	Condition   string            `json:"condition"`
	WindSpeed   Number            `json:"windSpeed"`
	Humidity    Number            `json:"humidity"`
	Precip      Number            `json:"precip"`
	Forecast    []ForecastSummary `json:"forecast"`
}

// Normalize trims text fields and bounds the forecast.
func (c *WeatherContext) Normalize() {
	c.Location = strings.TrimSpace(c.Location)
	c.Condition = strings.TrimSpace(c.Condition)
	c.LocalTime = strings.TrimSpace(c.LocalTime)
	if len(c.Forecast) > MaxForecastDays {
		c.Forecast = c.Forecast[:MaxForecastDays]
	}
}

// ApplyReading overwrites every field of c with r.
func (c *WeatherContext) ApplyReading(r weather.Reading) {
	c.Location = r.Location
	c.LocalTime = r.LocalTime
	c.IsDay = DayFlagOf(r.IsDay)
	c.Temperature = Number(r.TemperatureC)
	c.FeelsLike = Number(r.FeelsLikeC)
	c.Condition = r.Condition
	c.WindSpeed = Number(r.WindKph)
	c.Humidity = Number(r.HumidityPct)
	c.Precip = Number(r.PrecipMm)

	days := r.Forecast
	if len(days) > MaxForecastDays {
		days = days[:MaxForecastDays]
	}
	c.Forecast = make([]ForecastSummary, 0, len(days))
	for _, d := range days {
		c.Forecast = append(c.Forecast, ForecastSummary{
			Day:       d.Day,
			High:      Number(d.High),
			Low:       Number(d.Low),
			Condition: d.Condition,
		})
	}
}

// Clone returns a deep copy.
func (c WeatherContext) Clone() WeatherContext {
	out := c
	if c.Forecast != nil {
		out.Forecast = append([]ForecastSummary(nil), c.Forecast...)
	}
	return out
}

// DefaultSessionID is used when a client does not send a session id.
const DefaultSessionID = "default_session"

// Turn is one persisted exchange: a user message and the assistant reply.
type Turn struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"sessionId"`
	UserMessage string         `json:"userMessage"`
	AIReply     string         `json:"aiReply"`
	Timestamp   time.Time      `json:"timestamp"`
	Context     WeatherContext `json:"context"`
}

// TurnStore persists and retrieves conversation turns.
type TurnStore interface {
	AppendTurn(ctx context.Context, turn Turn) error
	// RecentTurns returns up to limit most recent turns of a session,
	// ordered oldest first. A non-positive limit returns every turn.
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error)
}
