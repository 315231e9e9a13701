package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i-Rony/WeatherBoard/internal/models"
	"github.com/i-Rony/WeatherBoard/internal/observability"
)

// WeatherClient fetches provider weather data for a geo-located city.
type WeatherClient interface {
	CurrentConditions(ctx context.Context, city models.City) (CurrentObservation, error)
	Forecast(ctx context.Context, city models.City) ([]ForecastPoint, error)
}

// CurrentObservation is the mapped current-conditions payload.
type CurrentObservation struct {
	Temperature float64
	Humidity    int
	WindSpeed   float64
	Conditions  string
	Description string
	Icon        string
	CityID      int
	Timezone    int
	Sunrise     int64
	Sunset      int64
}

// ForecastPoint is one 3-hour entry of the provider forecast list.
type ForecastPoint struct {
	DT          int64
	Temperature float64
	Icon        string
}

// OpenWeatherClient implements WeatherClient and GeocodeClient against the
// OpenWeatherMap HTTP API.
type OpenWeatherClient struct {
	apiKey      string
	currentURL  string
	forecastURL string
	geocodeURL  string
	client      *http.Client
}

// NewOpenWeatherClient creates an OpenWeatherClient. URLs default to the
// public OpenWeatherMap endpoints when empty; timeout bounds each request.
func NewOpenWeatherClient(apiKey, currentURL, forecastURL, geocodeURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if currentURL == "" {
		currentURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	if forecastURL == "" {
		forecastURL = "https://api.openweathermap.org/data/2.5/forecast"
	}
	if geocodeURL == "" {
		geocodeURL = "https://api.openweathermap.org/geo/1.0/direct"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenWeatherClient{
		apiKey:      apiKey,
		currentURL:  currentURL,
		forecastURL: forecastURL,
		geocodeURL:  geocodeURL,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

type currentResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
	Timezone int `json:"timezone"`
	ID       int `json:"id"`
}

type forecastResponse struct {
	List []struct {
		DT   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Icon string `json:"icon"`
		} `json:"weather"`
	} `json:"list"`
}

// CurrentConditions fetches and maps the current-conditions endpoint.
func (c *OpenWeatherClient) CurrentConditions(ctx context.Context, city models.City) (CurrentObservation, error) {
	body, err := c.getByCoordinates(ctx, c.currentURL, "current", city)
	if err != nil {
		return CurrentObservation{}, err
	}

	var resp currentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return CurrentObservation{}, fmt.Errorf("parse current response: %w", err)
	}

	obs := CurrentObservation{
		Temperature: resp.Main.Temp,
		Humidity:    resp.Main.Humidity,
		WindSpeed:   resp.Wind.Speed,
		CityID:      resp.ID,
		Timezone:    resp.Timezone,
		Sunrise:     resp.Sys.Sunrise,
		Sunset:      resp.Sys.Sunset,
	}
	if len(resp.Weather) > 0 {
		obs.Conditions = resp.Weather[0].Main
		obs.Description = resp.Weather[0].Description
		obs.Icon = resp.Weather[0].Icon
	}
	return obs, nil
}

// Forecast fetches the 5-day/3-hour forecast list. Reduction to daily entries
// is the caller's concern.
func (c *OpenWeatherClient) Forecast(ctx context.Context, city models.City) ([]ForecastPoint, error) {
	body, err := c.getByCoordinates(ctx, c.forecastURL, "forecast", city)
	if err != nil {
		return nil, err
	}

	var resp forecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse forecast response: %w", err)
	}

	points := make([]ForecastPoint, 0, len(resp.List))
	for _, entry := range resp.List {
		p := ForecastPoint{DT: entry.DT, Temperature: entry.Main.Temp}
		if len(entry.Weather) > 0 {
			p.Icon = entry.Weather[0].Icon
		}
		points = append(points, p)
	}
	return points, nil
}

func (c *OpenWeatherClient) getByCoordinates(ctx context.Context, endpoint, kind string, city models.City) ([]byte, error) {
	start := time.Now()

	base, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(city.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(city.Lon, 'f', -1, 64))
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	base.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(kind, "error").Inc()
		observability.WeatherAPIDuration.WithLabelValues(kind, "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(kind, status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(kind, status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: invalid API key", ErrInvalidAPIKey)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrLocationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}

func extractCorrelationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if corrID, ok := v.(string); ok {
			return corrID
		}
	}
	return ""
}
