package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ChatRequests     *prometheus.CounterVec
	ChatLatency      prometheus.Histogram
	ProviderAttempts *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	ContextSwitches  prometheus.Counter
	WeatherFetches   *prometheus.CounterVec
	RateWindows      prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics registers the instruments on reg. A nil reg uses a fresh registry.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by result.",
		}, []string{"result"}),
		ChatLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_latency_ms",
			Help:      "End-to-end chat latency in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 16000, 32000},
		}),
		ProviderAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_attempts_total",
			Help:      "LLM completion attempts by provider, model and outcome.",
		}, []string{"provider", "model", "outcome"}),
		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_attempt_latency_ms",
			Help:      "LLM attempt latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000},
		}, []string{"provider"}),
		ContextSwitches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_switches_total",
			Help:      "Chats that switched the weather context to another city.",
		}),
		WeatherFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_fetches_total",
			Help:      "Scheduled weather fetches by result.",
		}, []string{"result"}),
		RateWindows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limit_windows",
			Help:      "Client windows tracked by the rate limiter after the last sweep.",
		}),
		gatherer: reg,
	}
}

func (m *Metrics) ObserveChat(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.ChatRequests.WithLabelValues(result).Inc()
	m.ChatLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveAttempt(provider, model, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderAttempts.WithLabelValues(provider, model, outcome).Inc()
	m.ProviderLatency.WithLabelValues(provider).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) IncContextSwitch() {
	if m == nil {
		return
	}
	m.ContextSwitches.Inc()
}

func (m *Metrics) ObserveWeatherFetch(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.WeatherFetches.WithLabelValues(result).Inc()
}

func (m *Metrics) SetRateWindows(n int) {
	if m == nil {
		return
	}
	m.RateWindows.Set(float64(n))
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
