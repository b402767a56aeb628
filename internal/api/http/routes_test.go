package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weathera/internal/chat"
	"github.com/i474232898/weathera/internal/llm"
	"github.com/i474232898/weathera/internal/observability"
	"github.com/i474232898/weathera/internal/ratelimit"
	"github.com/i474232898/weathera/internal/store"
	"github.com/i474232898/weathera/internal/weather"
)

type fakeChat struct {
	reply string
	err   error
	got   chat.Request
}

func (f *fakeChat) Reply(_ context.Context, req chat.Request) (string, error) {
	f.got = req
	if f.err != nil {
		return "", f.err
	}
	if strings.TrimSpace(req.Message) == "" {
		return "", chat.ErrEmptyMessage
	}
	return f.reply, nil
}

func newTestApp(t *testing.T, c ChatService, limiter RateLimiter) (*fiber.App, *weather.Service) {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	svc := weather.NewService(store.NewMemoryStore(10, 0), nil)
	RegisterRoutes(app, Deps{
		Chat:    c,
		Weather: svc,
		Limiter: limiter,
		Metrics: observability.NewMetrics("weathera_test", prometheus.NewRegistry()),
	})
	return app, svc
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestChatReturnsReply(t *testing.T) {
	fc := &fakeChat{reply: "Cerah kak ☀️"}
	app, _ := newTestApp(t, fc, ratelimit.New(15, time.Minute))

	status, body := doJSON(t, app, http.MethodPost, "/api/chat",
		`{"sessionId":"s1","message":"cuaca di Jakarta?","context":{"location":"Jepara","temperature":"27.5","isDay":"Malam","humidity":null}}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Cerah kak ☀️", body["reply"])
	require.Equal(t, "s1", fc.got.SessionID)
	require.Equal(t, "Jepara", fc.got.Context.Location)
	require.Equal(t, chat.Number(27.5), fc.got.Context.Temperature)
	require.Equal(t, chat.DayFlagNight, fc.got.Context.IsDay)
}

func TestChatInvalidMessage(t *testing.T) {
	app, _ := newTestApp(t, &fakeChat{reply: "x"}, nil)

	for _, body := range []string{
		`{"context":{}}`,
		`{"message":42}`,
		`{"message":"   "}`,
		`not json`,
	} {
		status, resp := doJSON(t, app, http.MethodPost, "/api/chat", body)
		require.Equal(t, http.StatusBadRequest, status, body)
		require.Equal(t, MsgInvalidMessage, resp["error"], body)
	}
}

func TestChatProviderExhaustion(t *testing.T) {
	app, _ := newTestApp(t, &fakeChat{err: llm.ErrAllProvidersExhausted}, nil)

	status, body := doJSON(t, app, http.MethodPost, "/api/chat", `{"message":"halo"}`)
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, MsgServerError, body["error"])
}

func TestChatRateLimited(t *testing.T) {
	fc := &fakeChat{reply: "ok"}
	app, _ := newTestApp(t, fc, ratelimit.New(15, time.Minute))

	for i := 0; i < 15; i++ {
		status, _ := doJSON(t, app, http.MethodPost, "/api/chat", `{"message":"halo"}`)
		require.Equal(t, http.StatusOK, status, "request %d", i+1)
	}
	fc.got = chat.Request{}
	status, body := doJSON(t, app, http.MethodPost, "/api/chat", `{"message":"halo"}`)
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, MsgTooManyRequests, body["error"])
	require.Empty(t, fc.got.Message, "rejected requests never reach the pipeline")
}

func TestLogWeatherDebouncesAndServesHistory(t *testing.T) {
	app, _ := newTestApp(t, &fakeChat{}, nil)
	reading := `{"location":"Jepara","lat":-6.58,"lon":110.67,"temperature":27,"humidity":80,"windSpeed":5,"condition":"Cerah","isDay":1}`

	status, body := doJSON(t, app, http.MethodPost, "/api/log-weather", reading)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, body["skipped"])

	status, body = doJSON(t, app, http.MethodPost, "/api/log-weather", reading)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["skipped"])

	status, _ = doJSON(t, app, http.MethodPost, "/api/log-weather", `{"location":"Jepara","humidity":80}`)
	require.Equal(t, http.StatusBadRequest, status)

	req := httptest.NewRequest(http.MethodGet, "/api/weather-history?location="+"jep", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var records []weather.LogRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	require.Len(t, records, 1)
	require.Equal(t, "Jepara", records[0].Location)

	req = httptest.NewRequest(http.MethodGet, "/api/heatmap-data", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	var points []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&points))
	require.Len(t, points, 1)
	require.Equal(t, 27.0, points[0]["temp"])
}

func TestWeatherHistoryEscapesPattern(t *testing.T) {
	app, svc := newTestApp(t, &fakeChat{}, nil)
	_, err := svc.LogReading(context.Background(), weather.LogRecord{Location: "Kota (Jepara)", Temperature: 27})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/weather-history?location=%28Jepara%29", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var records []weather.LogRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	require.Len(t, records, 1)

	req = httptest.NewRequest(http.MethodGet, "/api/weather-history?location=%5B", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	app, _ := newTestApp(t, &fakeChat{reply: "ok"}, nil)
	_, _ = doJSON(t, app, http.MethodPost, "/api/chat", `{"message":"halo"}`)

	status, body := doJSON(t, app, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), `weathera_test_chat_requests_total{result="ok"} 1`)
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("pq: secret detail") })

	status, body := doJSON(t, app, http.MethodGet, "/boom", "")
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, MsgServerError, body["error"])
}
