package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/i-Rony/WeatherBoard/internal/client"
	"github.com/i-Rony/WeatherBoard/internal/connectivity"
	"github.com/i-Rony/WeatherBoard/internal/favorites"
	"github.com/i-Rony/WeatherBoard/internal/geosearch"
	"github.com/i-Rony/WeatherBoard/internal/lifecycle"
	"github.com/i-Rony/WeatherBoard/internal/models"
	"github.com/i-Rony/WeatherBoard/internal/weathercache"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	searcher  *geosearch.Searcher
	cache     *weathercache.Cache
	favorites *favorites.Service
	trigger   *lifecycle.Trigger
	oracle    connectivity.Oracle
	logger    *zap.Logger

	// CachePing, when set, is called by the health handler to check
	// backing-store reachability. Used when the backend is memcached.
	cachePing func() error

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(
	searcher *geosearch.Searcher,
	cache *weathercache.Cache,
	favs *favorites.Service,
	trigger *lifecycle.Trigger,
	oracle connectivity.Oracle,
	logger *zap.Logger,
	cachePing func() error,
) *Handler {
	return &Handler{
		searcher:  searcher,
		cache:     cache,
		favorites: favs,
		trigger:   trigger,
		oracle:    oracle,
		logger:    logger,
		cachePing: cachePing,
	}
}

// GetWeather handles GET /weather/{city}. The city segment is resolved through
// geo search; an optional country query parameter narrows same-named matches
// and refresh=true forces a provider fetch.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(mux.Vars(r)["city"])
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", "city is required")
		return
	}

	city, ok := h.resolveCity(r, name)
	if !ok {
		writeError(w, r, http.StatusNotFound, "CITY_NOT_FOUND", "no matching city")
		return
	}
	if err := h.searcher.Remember(r.Context(), city); err != nil {
		if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
			logger.Debug("remember search failed", zap.Error(err))
		}
	}

	force := r.URL.Query().Get("refresh") == "true"
	snap, err := h.cache.GetCached(r.Context(), city, force)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if snap == nil {
		// Offline with no cached copy; the city is queued for the next drain.
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"status": "queued",
			"city":   city,
		})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// resolveCity maps a name (plus optional country query param) to geodata.
func (h *Handler) resolveCity(r *http.Request, name string) (models.City, bool) {
	country := strings.TrimSpace(r.URL.Query().Get("country"))
	results := h.searcher.Search(r.Context(), name)
	for _, c := range results {
		if country == "" || strings.EqualFold(c.Country, country) {
			return c, true
		}
	}
	return models.City{}, false
}

// SearchCities handles GET /search?q=. Results come from the geocoding
// provider when online and from recent searches when offline.
func (h *Handler) SearchCities(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	results := h.searcher.Search(r.Context(), query)
	if results == nil {
		results = []models.City{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// GetFavorites handles GET /favorites. Soft-deleted records never appear.
func (h *Handler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	items, err := h.favorites.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"favorites": items,
		"state":     h.favorites.State().String(),
	})
}

type toggleRequest struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// ToggleFavorite handles POST /favorites/toggle. The body names a city; its
// current conditions are read through the cache and the favorite state flips.
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "name is required")
		return
	}
	city := models.City{Name: strings.TrimSpace(req.Name), Country: req.Country, Lat: req.Lat, Lon: req.Lon}

	snap, err := h.cache.GetCached(r.Context(), city, false)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if snap == nil {
		writeError(w, r, http.StatusServiceUnavailable, "OFFLINE", "no cached weather for city while offline")
		return
	}

	if !h.favorites.Toggle(r.Context(), snap) {
		writeError(w, r, http.StatusServiceUnavailable, "TOGGLE_FAILED", "favorite state unchanged")
		return
	}
	wid := snap.WeatherID
	var widPtr *int
	if wid != 0 {
		widPtr = &wid
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"favorite": h.favorites.IsFavorite(r.Context(), city.Name, widPtr),
	})
}

// PostRefresh handles POST /refresh: the pull-to-refresh trigger. Returns the
// number of favorites updated, or 503 while the gate (offline or
// unauthenticated) holds.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	count, err := h.trigger.OnPullToRefresh(r.Context())
	if err != nil {
		if errors.Is(err, lifecycle.ErrNotReady) {
			writeError(w, r, http.StatusServiceUnavailable, "NOT_READY", "offline or not authenticated")
			return
		}
		writeServiceError(w, r, err)
		return
	}
	items, err := h.favorites.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"updated":   count,
		"favorites": items,
		"state":     h.favorites.State().String(),
	})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r)

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	status := h.oracle.Check(r.Context())
	if status.Online() {
		checks["connectivity"] = "online"
	} else {
		checks["connectivity"] = "offline"
	}
	if h.cachePing != nil {
		if err := h.cachePing(); err != nil {
			checks["cache"] = "unhealthy"
		} else {
			checks["cache"] = "healthy"
		}
	}

	writeJSON(w, result.statusCode, map[string]interface{}{
		"status": result.status,
		"checks": checks,
	})
}

func (h *Handler) computeHealthStatus(r *http.Request) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{status: "shutting_down", statusCode: http.StatusServiceUnavailable, reason: "shutdown in progress"}
	}
	if h.cachePing != nil {
		if err := h.cachePing(); err != nil {
			return healthResult{status: "degraded", statusCode: http.StatusOK, reason: "cache unreachable"}
		}
	}
	if !h.oracle.Check(r.Context()).Online() {
		// Offline is a working state for this service, not a failure.
		return healthResult{status: "degraded", statusCode: http.StatusOK, reason: "offline"}
	}
	return healthResult{status: "healthy", statusCode: http.StatusOK, reason: ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError maps upstream errors onto HTTP responses. Logs the
// underlying error at DEBUG level if logger is available in request context.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, client.ErrLocationNotFound):
		writeError(w, r, http.StatusNotFound, "CITY_NOT_FOUND", "no matching city")
	case errors.Is(err, client.ErrRateLimited):
		writeError(w, r, http.StatusTooManyRequests, "PROVIDER_RATE_LIMITED", "weather provider rate limited")
	default:
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "unable to fetch weather data")
	}
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("upstream error", zap.Error(err))
	}
}
