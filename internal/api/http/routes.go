package httpapi

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/weathera/internal/chat"
	"github.com/i474232898/weathera/internal/observability"
	"github.com/i474232898/weathera/internal/weather"
)

// User-facing error messages.
const (
	MsgTooManyRequests = "Too Many Requests. Santai dulu kak, jangan spam ya! 🛑 (Tunggu 1 menit)"
	MsgInvalidMessage  = "Invalid message format"
	MsgServerError     = "Maaf, otak saya sedang beku (Server Error). Coba lagi nanti! 🥶"
)

// historyLimit bounds /api/weather-history.
const historyLimit = 500

var validate = validator.New()

// ChatService answers chat messages.
type ChatService interface {
	Reply(ctx context.Context, req chat.Request) (string, error)
}

// WeatherService logs and reads weather observations.
type WeatherService interface {
	LogReading(ctx context.Context, rec weather.LogRecord) (bool, error)
	History(ctx context.Context, name string, limit int) ([]weather.LogRecord, error)
	Heatmap(ctx context.Context) ([]weather.HeatPoint, error)
}

// RateLimiter admits or rejects a request per client key.
type RateLimiter interface {
	Allow(key string) bool
}

// Deps are the collaborators of the HTTP layer. Metrics may be nil.
type Deps struct {
	Chat    ChatService
	Weather WeatherService
	Limiter RateLimiter
	Metrics *observability.Metrics
}

// ErrorHandler renders every error as {"error": message}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := MsgServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		msg = e.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weathera",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))

	api := app.Group("/api")
	api.Post("/chat", chatHandler(d))
	api.Post("/log-weather", logWeatherHandler(d))

	api.Get("/weather-history", func(c *fiber.Ctx) error {
		records, err := d.Weather.History(c.UserContext(), strings.TrimSpace(c.Query("location")), historyLimit)
		if err != nil {
			log.Error().Err(err).Msg("weather history query failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch history")
		}
		if records == nil {
			records = []weather.LogRecord{}
		}
		return c.JSON(records)
	})

	api.Get("/heatmap-data", func(c *fiber.Ctx) error {
		points, err := d.Weather.Heatmap(c.UserContext())
		if err != nil {
			log.Error().Err(err).Msg("heatmap query failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch heatmap data")
		}
		if points == nil {
			points = []weather.HeatPoint{}
		}
		return c.JSON(points)
	})
}

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	SessionID string              `json:"sessionId"`
	Message   *string             `json:"message" validate:"required"`
	Context   chat.WeatherContext `json:"context"`
}

func chatHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if d.Limiter != nil && !d.Limiter.Allow(c.IP()) {
			d.Metrics.ObserveChat("rate_limited", time.Since(start))
			return fiber.NewError(fiber.StatusTooManyRequests, MsgTooManyRequests)
		}

		var req chatRequest
		if err := c.BodyParser(&req); err != nil {
			d.Metrics.ObserveChat("invalid", time.Since(start))
			return fiber.NewError(fiber.StatusBadRequest, MsgInvalidMessage)
		}
		if err := validate.Struct(req); err != nil {
			d.Metrics.ObserveChat("invalid", time.Since(start))
			return fiber.NewError(fiber.StatusBadRequest, MsgInvalidMessage)
		}

		reply, err := d.Chat.Reply(c.UserContext(), chat.Request{
			SessionID: req.SessionID,
			Message:   *req.Message,
			Context:   req.Context,
		})
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			d.Metrics.ObserveChat("invalid", time.Since(start))
			return fiber.NewError(fiber.StatusBadRequest, MsgInvalidMessage)
		case err != nil:
			log.Error().Err(err).Str("session", req.SessionID).Msg("chat failed")
			d.Metrics.ObserveChat("failed", time.Since(start))
			return fiber.NewError(fiber.StatusInternalServerError, MsgServerError)
		}

		d.Metrics.ObserveChat("ok", time.Since(start))
		return c.JSON(fiber.Map{"reply": reply})
	}
}

// logWeatherRequest is the body of POST /api/log-weather.
type logWeatherRequest struct {
	Location    string       `json:"location" validate:"required"`
	Lat         *float64     `json:"lat" validate:"omitempty,latitude"`
	Lon         *float64     `json:"lon" validate:"omitempty,longitude"`
	Temperature *float64     `json:"temperature" validate:"required"`
	Humidity    float64      `json:"humidity" validate:"gte=0,lte=100"`
	WindSpeed   float64      `json:"windSpeed" validate:"gte=0"`
	Pressure    float64      `json:"pressure"`
	Condition   string       `json:"condition"`
	IsDay       chat.DayFlag `json:"isDay"`
}

func (r logWeatherRequest) toRecord() weather.LogRecord {
	rec := weather.LogRecord{
		Location:    strings.TrimSpace(r.Location),
		Temperature: *r.Temperature,
		Humidity:    r.Humidity,
		WindSpeed:   r.WindSpeed,
		Pressure:    r.Pressure,
		Condition:   strings.TrimSpace(r.Condition),
		IsDay:       r.IsDay != chat.DayFlagNight,
	}
	if r.Lat != nil && r.Lon != nil {
		rec.Lat, rec.Lon = r.Lat, r.Lon
	}
	return rec
}

func logWeatherHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req logWeatherRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid weather log")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		skipped, err := d.Weather.LogReading(c.UserContext(), req.toRecord())
		if err != nil {
			log.Error().Err(err).Str("location", req.Location).Msg("weather log failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to log weather")
		}
		return c.JSON(fiber.Map{"success": true, "skipped": skipped})
	}
}
