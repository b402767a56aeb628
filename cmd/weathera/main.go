package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpapi "github.com/i474232898/weathera/internal/api/http"
	"github.com/i474232898/weathera/internal/chat"
	"github.com/i474232898/weathera/internal/config"
	"github.com/i474232898/weathera/internal/llm"
	"github.com/i474232898/weathera/internal/observability"
	"github.com/i474232898/weathera/internal/ratelimit"
	"github.com/i474232898/weathera/internal/scheduler"
	"github.com/i474232898/weathera/internal/store"
	"github.com/i474232898/weathera/internal/weather"
	"github.com/i474232898/weathera/internal/weather/providers"
)

func main() {
	// Load configuration (also reads .env when present).
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound weather provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	st, err := store.Open(ctx, store.Options{
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
		MaxHistory:  cfg.StoreMaxHistory,
		MaxAge:      cfg.StoreMaxAge,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}

	// Providers with resilience (backoff + circuit breaker), tried in order.
	var provs []weather.Provider
	if cfg.WeatherAPIKey != "" {
		provs = append(provs, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey))
	} else {
		log.Warn().Msg("WEATHER_API_KEY not set; using Open-Meteo only")
	}
	provs = append(provs, providers.NewOpenMeteoProvider(httpClient, cfg.OpenMeteoURL))

	weatherSvc := weather.NewService(st, provs)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(cfg.MetricsNamespace, reg)

	enricher := chat.NewEnricher(weatherSvc, 0)
	enricher.OnSwitch(func(_, _ string) { metrics.IncContextSwitch() })

	orchestrator := llm.NewOrchestrator(buildPlan(cfg), cfg.LLMAttemptTimeout)
	orchestrator.Observe(func(a llm.Attempt, outcome llm.Outcome, elapsed time.Duration) {
		metrics.ObserveAttempt(a.Provider.Name(), a.Model, outcome.String(), elapsed)
	})
	if len(orchestrator.Plan()) == 0 {
		log.Warn().Msg("no LLM credentials configured; every chat request will fail")
	}

	chatSvc := chat.NewService(chat.Config{
		Enricher: enricher,
		History:  chat.NewHistoryRetriever(st),
		Turns:    st,
		LLM:      orchestrator,
		Zone:     chat.LoadZone(cfg.ServerTimezone, 7),
	})

	limiter := ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow)

	// Scheduler that periodically fetches weather and prunes rate windows.
	sched := scheduler.New()
	if len(cfg.Locations) > 0 {
		if err := sched.PollWeather(cfg.Locations, cfg.FetchInterval, weatherSvc, metrics.ObserveWeatherFetch); err != nil {
			log.Fatal().Err(err).Msg("failed to schedule weather polling")
		}
	}
	if err := sched.SweepLimiter(limiter, cfg.RateLimitSweep, metrics.SetRateWindows); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule rate limiter sweep")
	}
	sched.Start()

	app := fiber.New(fiber.Config{
		AppName:               "weathera",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Chat:    chatSvc,
		Weather: weatherSvc,
		Limiter: limiter,
		Metrics: metrics,
	})

	go func() {
		log.Info().Str("port", cfg.Port).Msg("weathera listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	sched.Stop()
	chatSvc.Wait()
	if err := st.Close(); err != nil {
		log.Error().Err(err).Msg("error closing store")
	}
}

// buildPlan lists every Groq key x model, then the Gemini models.
func buildPlan(cfg *config.AppConfig) []llm.Attempt {
	var fallbacks []llm.Attempt
	if cfg.GeminiEnabled && cfg.GeminiKey != "" {
		gemini := llm.NewGemini("", cfg.LLMAttemptTimeout)
		for _, model := range cfg.GeminiModels {
			fallbacks = append(fallbacks, llm.Attempt{Provider: gemini, Credential: cfg.GeminiKey, Model: model})
		}
	}
	return llm.BuildPlan(llm.NewGroq("", cfg.LLMAttemptTimeout), cfg.GroqKeys, cfg.GroqModels, fallbacks...)
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
	if isatty.IsTerminal(os.Stdout.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	}
}
