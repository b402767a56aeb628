package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordAndExpose(t *testing.T) {
	m := NewMetrics("weathera_test", prometheus.NewRegistry())

	m.ObserveChat("ok", 1200*time.Millisecond)
	m.ObserveAttempt("groq", "llama", "rate_limited", 50*time.Millisecond)
	m.ObserveAttempt("groq", "llama", "rate_limited", 50*time.Millisecond)
	m.IncContextSwitch()
	m.ObserveWeatherFetch(errors.New("boom"))
	m.SetRateWindows(3)

	require.Equal(t, 1.0, testutil.ToFloat64(m.ChatRequests.WithLabelValues("ok")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.ProviderAttempts.WithLabelValues("groq", "llama", "rate_limited")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ContextSwitches))
	require.Equal(t, 1.0, testutil.ToFloat64(m.WeatherFetches.WithLabelValues("error")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.RateWindows))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "weathera_test_chat_requests_total")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveChat("ok", time.Second)
	m.ObserveAttempt("groq", "m", "success", time.Second)
	m.IncContextSwitch()
	m.ObserveWeatherFetch(nil)
	m.SetRateWindows(1)
}
