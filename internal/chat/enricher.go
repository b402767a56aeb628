package chat

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/i474232898/weathera/internal/weather"
	"github.com/rs/zerolog/log"
)

// TriggerWords introduce a place name in a chat message ("cuaca di Bandung").
var TriggerWords = []string{"cuaca", "suhu", "kondisi", "di", "kota", "tau", "tentang"}

// RegionNouns end a captured place name.
var RegionNouns = []string{"kecamatan", "kabupaten", "provinsi"}

// Honorifics are stripped from the front of a captured name ("mas Budi").
var Honorifics = []string{"mas", "kak", "bang", "pak", "bu", "dek"}

// Stopwords are captures that are never a place.
var Stopwords = []string{
	"sana", "sini", "mana", "situ", "indonesia",
	"hari", "besok", "lusa", "pagi", "siang", "malam",
	"kamu", "tahu", "apa", "bagaimana", "ini", "hari ini",
}

var (
	cityPattern = regexp.MustCompile(
		`(?i)\b(?:` + strings.Join(TriggerWords, "|") + `)\s+(?:di\s+)?([a-z\s]+?)\s*(?:[?!.,]|\b(?:` +
			strings.Join(RegionNouns, "|") + `)\b|$)`)
	honorificPattern = regexp.MustCompile(`(?i)^(?:` + strings.Join(Honorifics, "|") + `)\s+`)

	stopwordSet = func() map[string]struct{} {
		m := make(map[string]struct{}, len(Stopwords))
		for _, w := range Stopwords {
			m[w] = struct{}{}
		}
		return m
	}()
)

// DetectCity extracts a candidate place name from a chat message. The second
// result is false when the message does not name a place.
func DetectCity(message string) (string, bool) {
	m := cityPattern.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	candidate := strings.TrimSpace(m[1])
	candidate = strings.TrimSpace(honorificPattern.ReplaceAllString(candidate, ""))
	if candidate == "" {
		return "", false
	}
	return candidate, true
}

// AcceptCandidate decides whether a detected name should replace the current
// location. Short names, stopwords and names overlapping the current location
// (in either direction, case-insensitive) are rejected.
func AcceptCandidate(candidate, current string) bool {
	c := strings.ToLower(strings.TrimSpace(candidate))
	if utf8.RuneCountInString(c) <= 2 {
		return false
	}
	if _, stop := stopwordSet[c]; stop {
		return false
	}
	cur := strings.ToLower(strings.TrimSpace(current))
	if cur != "" && (strings.Contains(cur, c) || strings.Contains(c, cur)) {
		return false
	}
	return true
}

// ForecastFetcher resolves a place name to a current reading plus forecast.
type ForecastFetcher interface {
	FetchForecast(ctx context.Context, location string, days int) (weather.Reading, error)
}

// Enricher switches the weather context to a place named in the message.
type Enricher struct {
	fetcher  ForecastFetcher
	timeout  time.Duration
	onSwitch func(from, to string)
}

// NewEnricher creates an Enricher. A non-positive timeout defaults to 5s.
func NewEnricher(fetcher ForecastFetcher, timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Enricher{fetcher: fetcher, timeout: timeout}
}

// OnSwitch registers a callback invoked after every successful context switch.
func (e *Enricher) OnSwitch(fn func(from, to string)) {
	e.onSwitch = fn
}

// Candidate returns the place name the message asks about, if it should
// replace the current location.
func (e *Enricher) Candidate(message string, wc *WeatherContext) (string, bool) {
	candidate, ok := DetectCity(message)
	if !ok || !AcceptCandidate(candidate, wc.Location) {
		return "", false
	}
	return candidate, true
}

// Enrich returns wc, replaced in place with fresh data when the message asks
// about another place and the lookup succeeds. Failures leave wc untouched.
func (e *Enricher) Enrich(ctx context.Context, message string, wc *WeatherContext) *WeatherContext {
	if candidate, ok := e.Candidate(message, wc); ok {
		e.Switch(ctx, candidate, wc)
	}
	return wc
}

// Switch fetches candidate and overwrites wc with the result. It reports
// whether the context changed.
func (e *Enricher) Switch(ctx context.Context, candidate string, wc *WeatherContext) (switched bool) {
	if e.fetcher == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("candidate", candidate).Msg("forecast lookup panicked")
			switched = false
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reading, err := e.fetcher.FetchForecast(ctx, candidate, MaxForecastDays)
	if err != nil {
		log.Warn().Err(err).Str("candidate", candidate).Msg("context switch lookup failed; keeping current location")
		return false
	}
	if strings.TrimSpace(reading.Location) == "" {
		log.Warn().Str("candidate", candidate).Msg("context switch lookup returned no location")
		return false
	}

	from := wc.Location
	wc.ApplyReading(reading)
	log.Info().Str("from", from).Str("to", wc.Location).Msg("context switched")
	if e.onSwitch != nil {
		e.onSwitch(from, wc.Location)
	}
	return true
}
