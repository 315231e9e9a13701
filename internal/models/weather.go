package models

import (
	"strings"
	"time"
)

// City is a geo-resolved location produced by geocoding and consumed by the
// weather cache. Identity for deduplication is (Name, Country) with the name
// compared case-insensitively. A City is immutable once resolved.
type City struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}

// Key returns the "{name}-{country}" cache key joining the weather map, the
// fetch-time map and the in-flight map.
func (c City) Key() string {
	return c.Name + "-" + c.Country
}

// SameCity reports whether two cities refer to the same place: equal country
// and case-insensitive equal name.
func (c City) SameCity(other City) bool {
	return strings.EqualFold(c.Name, other.Name) && c.Country == other.Country
}

// ForecastDay is one entry of the reduced five-day forecast.
type ForecastDay struct {
	Date        string `json:"date"`
	Temperature int    `json:"temperature"`
	Icon        string `json:"icon"`
}

// WeatherSnapshot is the result of one successful fetch for a city. Snapshots
// are values: a later fetch for the same key supersedes the previous snapshot,
// it never mutates it.
type WeatherSnapshot struct {
	City        City          `json:"city"`
	Temperature int           `json:"temperature"`
	Conditions  string        `json:"conditions"`
	Humidity    int           `json:"humidity"`
	WindSpeed   float64       `json:"windSpeed"`
	Icon        string        `json:"icon"`
	Description string        `json:"description"`
	WeatherID   int           `json:"weatherId"`
	LastUpdated time.Time     `json:"lastUpdated"`
	Forecast    []ForecastDay `json:"forecast"`

	// Optional provider extras; zero values mean "not reported".
	Timezone int   `json:"timezone,omitempty"` // seconds offset from UTC
	Sunrise  int64 `json:"sunrise,omitempty"`  // unix seconds UTC
	Sunset   int64 `json:"sunset,omitempty"`   // unix seconds UTC
}
