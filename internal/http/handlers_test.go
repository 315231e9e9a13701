package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/i-Rony/WeatherBoard/internal/client"
	"github.com/i-Rony/WeatherBoard/internal/connectivity"
	"github.com/i-Rony/WeatherBoard/internal/favorites"
	"github.com/i-Rony/WeatherBoard/internal/geosearch"
	"github.com/i-Rony/WeatherBoard/internal/kvstore"
	"github.com/i-Rony/WeatherBoard/internal/lifecycle"
	"github.com/i-Rony/WeatherBoard/internal/models"
	"github.com/i-Rony/WeatherBoard/internal/remote"
	"github.com/i-Rony/WeatherBoard/internal/weathercache"
)

type fakeWeather struct {
	obs    client.CurrentObservation
	points []client.ForecastPoint
	err    error
	calls  int
}

func (f *fakeWeather) CurrentConditions(ctx context.Context, city models.City) (client.CurrentObservation, error) {
	f.calls++
	if f.err != nil {
		return client.CurrentObservation{}, f.err
	}
	return f.obs, nil
}

func (f *fakeWeather) Forecast(ctx context.Context, city models.City) ([]client.ForecastPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.points, nil
}

type fakeGeocode struct {
	results map[string][]models.City
}

func (f *fakeGeocode) Search(ctx context.Context, query string, limit int) ([]models.City, error) {
	return f.results[strings.ToLower(query)], nil
}

type staticSession bool

func (s staticSession) Authenticated() bool { return bool(s) }

// fixture wires the full handler stack over in-memory fakes.
type fixture struct {
	handler *Handler
	weather *fakeWeather
	store   *remote.Memory
	favs    *favorites.Service
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()
	weather := &fakeWeather{
		obs: client.CurrentObservation{Temperature: 18.6, Conditions: "Clouds", CityID: 2643743},
		points: []client.ForecastPoint{
			{DT: time.Now().Unix(), Temperature: 17.2, Icon: "04d"},
		},
	}
	geocode := &fakeGeocode{results: map[string][]models.City{
		"london": {
			{Name: "London", Country: "GB", Lat: 51.5, Lon: -0.12},
			{Name: "London", Country: "CA", Lat: 42.98, Lon: -81.24},
		},
	}}
	oracle := connectivity.Always(online)
	logger := zap.NewNop()
	kv := kvstore.NewMemory()
	cache := weathercache.New(kv, weather, oracle, logger, weathercache.Options{})
	searcher := geosearch.New(geocode, kv, oracle, logger)
	store := remote.NewMemory()
	favs := favorites.New(store, cache, searcher, logger, favorites.Options{BatchPause: time.Millisecond})
	trigger := lifecycle.NewTrigger(favs, cache, oracle, staticSession(true), logger, time.Millisecond)
	return &fixture{
		handler: NewHandler(searcher, cache, favs, trigger, oracle, logger, nil),
		weather: weather,
		store:   store,
		favs:    favs,
	}
}

func router(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.GetHealth).Methods("GET")
	r.HandleFunc("/search", h.SearchCities).Methods("GET")
	r.HandleFunc("/weather/{city}", h.GetWeather).Methods("GET")
	r.HandleFunc("/favorites", h.GetFavorites).Methods("GET")
	r.HandleFunc("/favorites/toggle", h.ToggleFavorite).Methods("POST")
	r.HandleFunc("/refresh", h.PostRefresh).Methods("POST")
	return r
}

func TestGetWeather_ResolvesAndReturnsSnapshot(t *testing.T) {
	fx := newFixture(t, true)
	req := httptest.NewRequest("GET", "/weather/London?country=GB", nil)
	rec := httptest.NewRecorder()
	router(fx.handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var snap models.WeatherSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if snap.Temperature != 19 {
		t.Errorf("Temperature = %d, want rounded 19", snap.Temperature)
	}
	if snap.City.Country != "GB" {
		t.Errorf("Country = %q, want GB", snap.City.Country)
	}
	if snap.WeatherID != 2643743 {
		t.Errorf("WeatherID = %d, want provider city id", snap.WeatherID)
	}
}

func TestGetWeather_CountryFilterPicksSecondMatch(t *testing.T) {
	fx := newFixture(t, true)
	req := httptest.NewRequest("GET", "/weather/London?country=CA", nil)
	rec := httptest.NewRecorder()
	router(fx.handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap models.WeatherSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if snap.City.Country != "CA" {
		t.Errorf("Country = %q, want CA", snap.City.Country)
	}
}

func TestGetWeather_UnknownCityReturns404(t *testing.T) {
	fx := newFixture(t, true)
	req := httptest.NewRequest("GET", "/weather/Atlantis", nil)
	rec := httptest.NewRecorder()
	router(fx.handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "CITY_NOT_FOUND") {
		t.Errorf("body = %s, want CITY_NOT_FOUND code", rec.Body.String())
	}
}

func TestGetWeather_ProviderFailureReturns503(t *testing.T) {
	fx := newFixture(t, true)
	fx.weather.err = errors.New("boom")
	req := httptest.NewRequest("GET", "/weather/London", nil)
	rec := httptest.NewRecorder()
	router(fx.handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "UPSTREAM_UNAVAILABLE") {
		t.Errorf("body = %s, want UPSTREAM_UNAVAILABLE code", rec.Body.String())
	}
}

func TestGetWeather_OfflineColdMissReturns202(t *testing.T) {
	offline := newFixture(t, false)
	// Offline resolution falls back to recent searches; seed one.
	city := models.City{Name: "London", Country: "GB", Lat: 51.5, Lon: -0.12}
	if err := offline.handler.searcher.Remember(context.Background(), city); err != nil {
		t.Fatalf("Remember: %v", err)
	}

	req := httptest.NewRequest("GET", "/weather/London", nil)
	rec := httptest.NewRecorder()
	router(offline.handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "queued") {
		t.Errorf("body = %s, want queued status", rec.Body.String())
	}
	if offline.weather.calls != 0 {
		t.Errorf("provider calls = %d, want 0 while offline", offline.weather.calls)
	}
}

func TestSearchCities_ReturnsResults(t *testing.T) {
	fx := newFixture(t, true)
	req := httptest.NewRequest("GET", "/search?q=London", nil)
	rec := httptest.NewRecorder()
	router(fx.handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Results []models.City `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Results) != 2 {
		t.Errorf("results = %d, want 2", len(body.Results))
	}
}

func TestSearchCities_ShortQueryReturnsEmptyList(t *testing.T) {
	fx := newFixture(t, true)
	req := httptest.NewRequest("GET", "/search?q=L", nil)
	rec := httptest.NewRecorder()
	router(fx.handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"results":[]`) {
		t.Errorf("body = %s, want empty results array", rec.Body.String())
	}
}

func TestToggleFavorite_AddsThenRemoves(t *testing.T) {
	fx := newFixture(t, true)
	body := `{"name":"London","country":"GB","lat":51.5,"lon":-0.12}`

	req := httptest.NewRequest("POST", "/favorites/toggle", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router(fx.handler).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first toggle status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"favorite":true`) {
		t.Errorf("first toggle body = %s, want favorite true", rec.Body.String())
	}

	req = httptest.NewRequest("POST", "/favorites/toggle", bytes.NewBufferString(body))
	rec = httptest.NewRecorder()
	router(fx.handler).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("second toggle status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"favorite":false`) {
		t.Errorf("second toggle body = %s, want favorite false", rec.Body.String())
	}
}

func TestToggleFavorite_MissingNameReturns400(t *testing.T) {
	fx := newFixture(t, true)
	req := httptest.NewRequest("POST", "/favorites/toggle", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router(fx.handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetFavorites_ListsLiveRecords(t *testing.T) {
	fx := newFixture(t, true)
	body := `{"name":"London","country":"GB","lat":51.5,"lon":-0.12}`
	req := httptest.NewRequest("POST", "/favorites/toggle", bytes.NewBufferString(body))
	router(fx.handler).ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest("GET", "/favorites", nil)
	rec := httptest.NewRecorder()
	router(fx.handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Favorites []remote.Item `json:"favorites"`
		State     string        `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(resp.Favorites) != 1 {
		t.Fatalf("favorites = %d, want 1", len(resp.Favorites))
	}
	if resp.Favorites[0].Name != "London" {
		t.Errorf("name = %q, want London", resp.Favorites[0].Name)
	}
}

func TestPostRefresh_ReturnsUpdatedCount(t *testing.T) {
	fx := newFixture(t, true)
	body := `{"name":"London","country":"GB","lat":51.5,"lon":-0.12}`
	req := httptest.NewRequest("POST", "/favorites/toggle", bytes.NewBufferString(body))
	router(fx.handler).ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest("POST", "/refresh", nil)
	rec := httptest.NewRecorder()
	router(fx.handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Updated   int           `json:"updated"`
		Favorites []remote.Item `json:"favorites"`
		State     string        `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Updated != 1 {
		t.Errorf("updated = %d, want 1", resp.Updated)
	}
	if len(resp.Favorites) != 1 {
		t.Errorf("favorites = %d, want re-listed favorite", len(resp.Favorites))
	}
	if resp.State != "done" {
		t.Errorf("state = %q, want done", resp.State)
	}
}

func TestPostRefresh_OfflineReturns503(t *testing.T) {
	fx := newFixture(t, false)
	req := httptest.NewRequest("POST", "/refresh", nil)
	rec := httptest.NewRecorder()
	router(fx.handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "NOT_READY") {
		t.Errorf("body = %s, want NOT_READY code", rec.Body.String())
	}
}

func TestGetHealth_Healthy(t *testing.T) {
	fx := newFixture(t, true)
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router(fx.handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"healthy"`) {
		t.Errorf("body = %s, want healthy", rec.Body.String())
	}
}

func TestGetHealth_OfflineIsDegradedNot503(t *testing.T) {
	fx := newFixture(t, false)
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router(fx.handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 while offline", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"degraded"`) {
		t.Errorf("body = %s, want degraded", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"connectivity":"offline"`) {
		t.Errorf("body = %s, want connectivity offline check", rec.Body.String())
	}
}

func TestGetHealth_ShuttingDownReturns503(t *testing.T) {
	fx := newFixture(t, true)
	lifecycle.SetShuttingDown(true)
	defer lifecycle.SetShuttingDown(false)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router(fx.handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 during shutdown", rec.Code)
	}
}

func TestGetHealth_CachePingFailureDegrades(t *testing.T) {
	fx := newFixture(t, true)
	fx.handler.cachePing = func() error { return errors.New("memcache down") }

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router(fx.handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"cache":"unhealthy"`) {
		t.Errorf("body = %s, want cache unhealthy check", rec.Body.String())
	}
}
