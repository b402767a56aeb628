package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/i474232898/weathera/internal/weather"
	"github.com/stretchr/testify/require"
)

const weatherAPIBody = `{
	"location": {"name": "Jakarta", "lat": -6.21, "lon": 106.85, "localtime": "2026-10-19 21:15"},
	"current": {
		"last_updated_epoch": 1792418400,
		"temp_c": 29.1, "feelslike_c": 33.4, "is_day": 0, "humidity": 75,
		"wind_kph": 9.4, "pressure_mb": 1010, "precip_mm": 0.2,
		"condition": {"text": "Hujan Ringan"}
	},
	"forecast": {"forecastday": [
		{"date": "2026-10-19", "day": {"maxtemp_c": 32.4, "mintemp_c": 24.6, "condition": {"text": "Hujan"}}},
		{"date": "2026-10-20", "day": {"maxtemp_c": 33.0, "mintemp_c": 25.0, "condition": {"text": "Cerah"}}}
	]}
}`

func TestWeatherAPIProviderParsesForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret", r.URL.Query().Get("key"))
		require.Equal(t, "Jakarta", r.URL.Query().Get("q"))
		require.Equal(t, "3", r.URL.Query().Get("days"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(weatherAPIBody))
	}))
	defer srv.Close()

	p := NewWeatherAPIProvider(srv.Client(), "secret").WithBaseURL(srv.URL)
	r, err := p.FetchForecast(context.Background(), weather.Location{City: "Jakarta"}, 3)
	require.NoError(t, err)

	require.Equal(t, "weatherapi", r.ProviderName)
	require.Equal(t, "Jakarta", r.Location)
	require.Equal(t, "21:15", r.LocalTime)
	require.False(t, r.IsDay)
	require.Equal(t, 29.1, r.TemperatureC)
	require.Equal(t, "Hujan Ringan", r.Condition)
	require.NotNil(t, r.Lat)
	require.Equal(t, -6.21, *r.Lat)
	require.Len(t, r.Forecast, 2)
	require.Equal(t, weather.ForecastDay{Day: "Senin", High: 32, Low: 25, Condition: "Hujan"}, r.Forecast[0])
}

func TestWeatherAPIProviderClientErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":{"message":"No matching location found."}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewWeatherAPIProvider(srv.Client(), "secret").WithBaseURL(srv.URL)
	_, err := p.FetchForecast(context.Background(), weather.Location{City: "Atlantis"}, 3)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusBadRequest, se.Code)
	require.Equal(t, int32(1), hits.Load())
}

func TestWeatherAPIProviderRequiresKey(t *testing.T) {
	_, err := NewWeatherAPIProvider(http.DefaultClient, "").FetchForecast(context.Background(), weather.Location{City: "Jakarta"}, 1)
	require.Error(t, err)
}

func TestOpenMeteoProviderGeocodesThenFetches(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Jepara", r.URL.Query().Get("name"))
		_, _ = w.Write([]byte(`{"results":[{"name":"Jepara","latitude":-6.58,"longitude":110.67}]}`))
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "-6.580000", r.URL.Query().Get("latitude"))
		_, _ = w.Write([]byte(`{
			"current": {"time": "2026-10-19T07:00", "temperature_2m": 27.5, "apparent_temperature": 30,
				"relative_humidity_2m": 80, "is_day": 1, "precipitation": 0, "weather_code": 2,
				"pressure_msl": 1009, "wind_speed_10m": 12},
			"daily": {"time": ["2026-10-19", "2026-10-20"], "weather_code": [61, 0],
				"temperature_2m_max": [31.6, 32], "temperature_2m_min": [24.2, 25]}
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL+"/forecast").WithGeocodeURL(srv.URL + "/search")
	r, err := p.FetchForecast(context.Background(), weather.Location{City: "Jepara"}, 2)
	require.NoError(t, err)

	require.Equal(t, "openmeteo", r.ProviderName)
	require.Equal(t, "Jepara", r.Location)
	require.Equal(t, "07:00", r.LocalTime)
	require.True(t, r.IsDay)
	require.Equal(t, "Berawan", r.Condition)
	require.Equal(t, []weather.ForecastDay{
		{Day: "Senin", High: 32, Low: 24, Condition: "Hujan Ringan"},
		{Day: "Selasa", High: 32, Low: 25, Condition: "Cerah"},
	}, r.Forecast)
}

func TestOpenMeteoProviderUnknownPlace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL).WithGeocodeURL(srv.URL)
	_, err := p.FetchForecast(context.Background(), weather.Location{City: "Atlantis"}, 1)
	require.ErrorIs(t, err, weather.ErrNotFound)
}

func TestDecodeWMO(t *testing.T) {
	require.Equal(t, "Cerah", DecodeWMO(0))
	require.Equal(t, "Badai Petir", DecodeWMO(95))
	require.Equal(t, "Tidak Diketahui", DecodeWMO(7))
}

func TestClockPart(t *testing.T) {
	require.Equal(t, "21:15", clockPart("2026-10-19 21:15"))
	require.Equal(t, "07:00", clockPart("2026-10-19T07:00"))
	require.Equal(t, "09:30", clockPart("09:30"))
}
