package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/weathera/internal/weather"
	"github.com/sony/gobreaker"
)

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// Open-Meteo needs coordinates, so names are resolved through its geocoding API first.
type OpenMeteoProvider struct {
	name       string
	baseURL    string
	geocodeURL string
	httpCfg    HTTPClientConfig
	circuit    *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, baseURL string) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = "https://api.open-meteo.com/v1/forecast"
	}
	return &OpenMeteoProvider{
		name:       "openmeteo",
		baseURL:    baseURL,
		geocodeURL: "https://geocoding-api.open-meteo.com/v1/search",
		httpCfg:    defaultHTTPConfig(client),
		circuit:    newBreaker("openmeteo"),
	}
}

// WithGeocodeURL overrides the geocoding endpoint (used by tests).
func (p *OpenMeteoProvider) WithGeocodeURL(u string) *OpenMeteoProvider {
	p.geocodeURL = u
	return p
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) FetchForecast(ctx context.Context, loc weather.Location, days int) (weather.Reading, error) {
	name := loc.City
	lat, lon := loc.Lat, loc.Lon
	if lat == nil || lon == nil {
		g, err := p.geocode(ctx, loc.City)
		if err != nil {
			return weather.Reading{}, err
		}
		name, lat, lon = g.Name, &g.Latitude, &g.Longitude
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", *lat))
		values.Set("longitude", fmt.Sprintf("%f", *lon))
		values.Set("current", "temperature_2m,relative_humidity_2m,apparent_temperature,is_day,precipitation,weather_code,pressure_msl,wind_speed_10m")
		values.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min")
		values.Set("timezone", "auto")
		values.Set("forecast_days", strconv.Itoa(days))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Reading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Current struct {
			Time                string  `json:"time"`
			Temperature         float64 `json:"temperature_2m"`
			ApparentTemperature float64 `json:"apparent_temperature"`
			RelativeHumidity    float64 `json:"relative_humidity_2m"`
			IsDay               int     `json:"is_day"`
			Precipitation       float64 `json:"precipitation"`
			WeatherCode         int     `json:"weather_code"`
			PressureMSL         float64 `json:"pressure_msl"`
			WindSpeed           float64 `json:"wind_speed_10m"`
		} `json:"current"`
		Daily struct {
			Time        []string  `json:"time"`
			WeatherCode []int     `json:"weather_code"`
			TempMax     []float64 `json:"temperature_2m_max"`
			TempMin     []float64 `json:"temperature_2m_min"`
		} `json:"daily"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Reading{}, fmt.Errorf("decode openmeteo response: %w", err)
	}

	r := weather.Reading{
		ProviderName: p.name,
		Location:     name,
		LocalTime:    clockPart(payload.Current.Time),
		IsDay:        payload.Current.IsDay == 1,
		Timestamp:    time.Now().UTC(),
		TemperatureC: payload.Current.Temperature,
		FeelsLikeC:   payload.Current.ApparentTemperature,
		HumidityPct:  payload.Current.RelativeHumidity,
		WindKph:      payload.Current.WindSpeed,
		PressureHpa:  payload.Current.PressureMSL,
		PrecipMm:     payload.Current.Precipitation,
		Condition:    DecodeWMO(payload.Current.WeatherCode),
		Lat:          lat,
		Lon:          lon,
	}

	d := payload.Daily
	for i := range d.Time {
		if i >= len(d.WeatherCode) || i >= len(d.TempMax) || i >= len(d.TempMin) {
			break
		}
		r.Forecast = append(r.Forecast, weather.ForecastDay{
			Day:       dayName(d.Time[i]),
			High:      math.Round(d.TempMax[i]),
			Low:       math.Round(d.TempMin[i]),
			Condition: DecodeWMO(d.WeatherCode[i]),
		})
	}

	return r, nil
}

type geocodeResult struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (p *OpenMeteoProvider) geocode(ctx context.Context, city string) (geocodeResult, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("name", city)
		values.Set("count", "1")
		values.Set("language", "id")
		values.Set("format", "json")
		return http.NewRequest(http.MethodGet, p.geocodeURL+"?"+values.Encode(), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return geocodeResult{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Results []geocodeResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return geocodeResult{}, fmt.Errorf("decode geocoding response: %w", err)
	}
	if len(payload.Results) == 0 {
		return geocodeResult{}, fmt.Errorf("%w: %q not found by geocoding", weather.ErrNotFound, city)
	}
	return payload.Results[0], nil
}

var wmoText = map[int]string{
	0:  "Cerah",
	1:  "Cerah Berawan",
	2:  "Berawan",
	3:  "Mendung",
	45: "Berkabut",
	48: "Kabut Es",
	51: "Gerimis Ringan",
	53: "Gerimis Sedang",
	55: "Gerimis Lebat",
	61: "Hujan Ringan",
	63: "Hujan Sedang",
	65: "Hujan Lebat",
	80: "Hujan Lokal",
	95: "Badai Petir",
	96: "Badai Petir & Hujan",
}

// DecodeWMO maps an Open-Meteo WMO weather code to Indonesian condition text.
func DecodeWMO(code int) string {
	if t, ok := wmoText[code]; ok {
		return t
	}
	return "Tidak Diketahui"
}
