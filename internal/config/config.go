package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weathera/internal/weather"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type AppConfig struct {
	Port string

	WeatherAPIKey string
	OpenMeteoURL  string
	HTTPTimeout   time.Duration

	GroqKeys          []string
	GroqModels        []string
	GeminiKey         string
	GeminiModels      []string
	GeminiEnabled     bool
	LLMAttemptTimeout time.Duration

	// DatabaseURL selects Postgres; SQLitePath selects SQLite; neither keeps
	// everything in memory.
	DatabaseURL string
	SQLitePath  string

	// In-memory store retention.
	StoreMaxHistory int           // max number of logs per location (0 = unlimited)
	StoreMaxAge     time.Duration // max age of logs (0 = unlimited)

	RateLimitMax    int
	RateLimitWindow time.Duration
	RateLimitSweep  time.Duration

	// FetchInterval controls how often we poll weather for Locations.
	FetchInterval time.Duration
	Locations     []weather.Location

	ServerTimezone   string
	LogLevel         string
	MetricsNamespace string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Err(err).Msg("no .env file loaded")
	}
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "3000")

	cfg.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	cfg.OpenMeteoURL = os.Getenv("OPEN_METEO_URL")
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	cfg.GroqKeys = nonEmpty(os.Getenv("GROQ_API_KEY"), os.Getenv("GROQ_API_KEY_2"))
	cfg.GroqModels = splitList(getenvDefault("GROQ_MODELS", "llama-3.3-70b-versatile,llama-3.1-8b-instant,gemma2-9b-it"))
	cfg.GeminiKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModels = splitList(getenvDefault("GEMINI_MODEL", "gemini-1.5-flash-001"))
	cfg.GeminiEnabled = getenvBool("GEMINI_ENABLED", true)
	if cfg.LLMAttemptTimeout, err = getenvDuration("LLM_ATTEMPT_TIMEOUT", 8*time.Second); err != nil {
		return nil, err
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.SQLitePath = os.Getenv("SQLITE_PATH")
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96) // roughly 24h at 15-minute intervals
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", 48*time.Hour); err != nil {
		return nil, err
	}

	cfg.RateLimitMax = getenvInt("RATE_LIMIT_MAX", 15)
	if cfg.RateLimitWindow, err = getenvDuration("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitSweep, err = getenvDuration("RATE_LIMIT_SWEEP", 5*time.Minute); err != nil {
		return nil, err
	}

	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	cfg.Locations = ParseLocations(os.Getenv("WEATHER_LOCATIONS"))

	cfg.ServerTimezone = getenvDefault("SERVER_TIMEZONE", "Asia/Jakarta")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.MetricsNamespace = getenvDefault("METRICS_NAMESPACE", "weathera")

	return cfg, nil
}

// ParseLocations parses "Jepara:ID;Kudus;Semarang:ID" into locations. Entries
// are separated by ';' and the optional country follows ':'.
func ParseLocations(v string) []weather.Location {
	var locs []weather.Location
	for _, entry := range strings.Split(v, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		city, country, _ := strings.Cut(entry, ":")
		city = strings.TrimSpace(city)
		if city == "" {
			continue
		}
		locs = append(locs, weather.Location{City: city, Country: strings.TrimSpace(country)})
	}
	return locs
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
