package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weathera/internal/weather"
	"github.com/sony/gobreaker"
)

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/forecast.json",
		httpCfg: defaultHTTPConfig(client),
		circuit: newBreaker("weatherapi"),
	}
}

// WithBaseURL overrides the forecast endpoint (used by tests).
func (p *WeatherAPIProvider) WithBaseURL(u string) *WeatherAPIProvider {
	p.baseURL = u
	return p
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPIPayload struct {
	Location struct {
		Name      string  `json:"name"`
		Lat       float64 `json:"lat"`
		Lon       float64 `json:"lon"`
		Localtime string  `json:"localtime"`
	} `json:"location"`
	Current struct {
		LastUpdatedEpoch int64   `json:"last_updated_epoch"`
		TempC            float64 `json:"temp_c"`
		FeelslikeC       float64 `json:"feelslike_c"`
		IsDay            int     `json:"is_day"`
		Humidity         float64 `json:"humidity"`
		WindKph          float64 `json:"wind_kph"`
		PressureMb       float64 `json:"pressure_mb"`
		PrecipMm         float64 `json:"precip_mm"`
		Condition        struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
	Forecast struct {
		Forecastday []struct {
			Date string `json:"date"`
			Day  struct {
				MaxtempC  float64 `json:"maxtemp_c"`
				MintempC  float64 `json:"mintemp_c"`
				Condition struct {
					Text string `json:"text"`
				} `json:"condition"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

func (p *WeatherAPIProvider) FetchForecast(ctx context.Context, loc weather.Location, days int) (weather.Reading, error) {
	if p.apiKey == "" {
		return weather.Reading{}, fmt.Errorf("weatherapi api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		// WeatherAPI uses "q" for location; it accepts "city,country" or "lat,lon".
		if loc.Lat != nil && loc.Lon != nil {
			values.Set("q", fmt.Sprintf("%f,%f", *loc.Lat, *loc.Lon))
		} else {
			values.Set("q", loc.Query())
		}
		values.Set("days", strconv.Itoa(days))
		values.Set("aqi", "no")
		values.Set("alerts", "no")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Reading{}, err
	}
	defer resp.Body.Close()

	var payload weatherAPIPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Reading{}, fmt.Errorf("decode weatherapi response: %w", err)
	}
	if payload.Location.Name == "" {
		return weather.Reading{}, fmt.Errorf("weatherapi response has no location")
	}

	ts := time.Unix(payload.Current.LastUpdatedEpoch, 0).UTC()
	if payload.Current.LastUpdatedEpoch == 0 {
		ts = time.Now().UTC()
	}

	lat, lon := payload.Location.Lat, payload.Location.Lon
	r := weather.Reading{
		ProviderName: p.name,
		Location:     payload.Location.Name,
		LocalTime:    clockPart(payload.Location.Localtime),
		IsDay:        payload.Current.IsDay == 1,
		Timestamp:    ts,
		TemperatureC: payload.Current.TempC,
		FeelsLikeC:   payload.Current.FeelslikeC,
		HumidityPct:  payload.Current.Humidity,
		WindKph:      payload.Current.WindKph,
		PressureHpa:  payload.Current.PressureMb,
		PrecipMm:     payload.Current.PrecipMm,
		Condition:    payload.Current.Condition.Text,
		Lat:          &lat,
		Lon:          &lon,
	}

	for _, d := range payload.Forecast.Forecastday {
		r.Forecast = append(r.Forecast, weather.ForecastDay{
			Day:       dayName(d.Date),
			High:      math.Round(d.Day.MaxtempC),
			Low:       math.Round(d.Day.MintempC),
			Condition: d.Day.Condition.Text,
		})
	}

	return r, nil
}

// clockPart extracts "HH:MM" from "YYYY-MM-DD HH:MM" (or the ISO "T" variant).
func clockPart(localtime string) string {
	localtime = strings.TrimSpace(strings.Replace(localtime, "T", " ", 1))
	if i := strings.LastIndexByte(localtime, ' '); i >= 0 {
		return localtime[i+1:]
	}
	return localtime
}

// dayName maps an ISO date to its Indonesian weekday, falling back to the raw date.
func dayName(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return weather.IndonesianWeekday(t.Weekday())
}
