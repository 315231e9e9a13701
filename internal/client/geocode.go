package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/i-Rony/WeatherBoard/internal/models"
)

// GeocodeClient resolves free-text city queries to coordinates.
type GeocodeClient interface {
	Search(ctx context.Context, query string, limit int) ([]models.City, error)
}

type geocodeMatch struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}

// Search queries the direct-geocoding endpoint and returns up to limit
// matches verbatim, in provider order.
func (c *OpenWeatherClient) Search(ctx context.Context, query string, limit int) ([]models.City, error) {
	if limit <= 0 {
		limit = 5
	}

	base, err := url.Parse(c.geocodeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("appid", c.apiKey)
	base.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := handleErrorResponse(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var matches []geocodeMatch
	if err := json.Unmarshal(body, &matches); err != nil {
		return nil, fmt.Errorf("parse geocode response: %w", err)
	}

	cities := make([]models.City, 0, len(matches))
	for _, m := range matches {
		cities = append(cities, models.City{
			Name:    m.Name,
			Lat:     m.Lat,
			Lon:     m.Lon,
			Country: m.Country,
		})
	}
	return cities, nil
}
