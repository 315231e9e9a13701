// Package weathercache is the read path for city weather: it fetches current
// conditions plus the five-day forecast, deduplicates concurrent identical
// fetches, persists snapshots with timestamps in the local key-value store,
// and falls back to cached data when offline or when the provider fails.
package weathercache

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/i-Rony/WeatherBoard/internal/client"
	"github.com/i-Rony/WeatherBoard/internal/connectivity"
	"github.com/i-Rony/WeatherBoard/internal/kvstore"
	"github.com/i-Rony/WeatherBoard/internal/models"
	"github.com/i-Rony/WeatherBoard/internal/observability"
)

const (
	snapshotKeyPrefix  = "weather:"
	fetchTimeKeyPrefix = "weather_ts:"
	pendingQueueKey    = "weather_pending"

	// DefaultTTL is how long a snapshot is considered fresh.
	DefaultTTL = time.Hour

	// DefaultBatchSize bounds parallelism when draining the pending queue.
	DefaultBatchSize = 3

	// DefaultBatchPause is the pacing delay between drain batches.
	DefaultBatchPause = time.Second

	forecastStride = 8 // every 8th 3-hour entry = 24h spacing
	forecastDays   = 5
)

// Cache is the weather fetch cache. One instance owns the in-flight map and
// the pending queue; construct it once and share it.
type Cache struct {
	store   kvstore.Store
	weather client.WeatherClient
	oracle  connectivity.Oracle
	logger  *zap.Logger

	ttl       time.Duration
	batchSize int
	pacer     *rate.Limiter

	inflight *inFlightMap

	// mu makes evict atomic with respect to the snapshot/timestamp pair:
	// no reader observes a half-evicted key as fresh.
	mu sync.Mutex

	now func() time.Time
}

// Options tune cache behavior; zero values select the defaults.
type Options struct {
	TTL        time.Duration
	BatchSize  int
	BatchPause time.Duration
	Now        func() time.Time
}

// New creates a Cache over the given store, provider client and connectivity
// oracle.
func New(store kvstore.Store, weather client.WeatherClient, oracle connectivity.Oracle, logger *zap.Logger, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchPause <= 0 {
		opts.BatchPause = DefaultBatchPause
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:     store,
		weather:   weather,
		oracle:    oracle,
		logger:    logger,
		ttl:       opts.TTL,
		batchSize: opts.BatchSize,
		pacer:     rate.NewLimiter(rate.Every(opts.BatchPause), 1),
		inflight:  newInFlightMap(),
		now:       opts.Now,
	}
}

// FetchFresh performs the two provider calls (current conditions and the
// 5-day/3-hour forecast) in parallel, fails if either fails, and persists the
// resulting snapshot with its fetch time. Concurrent calls for the same cache
// key share one network round-trip.
func (c *Cache) FetchFresh(ctx context.Context, city models.City) (*models.WeatherSnapshot, error) {
	return c.inflight.Do(ctx, city.Key(), func() (*models.WeatherSnapshot, error) {
		snap, err := c.fetchBoth(ctx, city)
		if err != nil {
			return nil, err
		}
		if err := c.persist(ctx, city, snap); err != nil {
			// The snapshot is still good; a failed local write only costs
			// the next reader a refetch.
			c.logger.Warn("persist snapshot failed", zap.String("city", city.Key()), zap.Error(err))
		}
		return snap, nil
	})
}

func (c *Cache) fetchBoth(ctx context.Context, city models.City) (*models.WeatherSnapshot, error) {
	var (
		wg      sync.WaitGroup
		current client.CurrentObservation
		points  []client.ForecastPoint
		curErr  error
		fcErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		current, curErr = c.weather.CurrentConditions(ctx, city)
	}()
	go func() {
		defer wg.Done()
		points, fcErr = c.weather.Forecast(ctx, city)
	}()
	wg.Wait()

	if curErr != nil {
		return nil, fmt.Errorf("fetch current for %s: %w", city.Key(), curErr)
	}
	if fcErr != nil {
		return nil, fmt.Errorf("fetch forecast for %s: %w", city.Key(), fcErr)
	}

	snap := &models.WeatherSnapshot{
		City:        city,
		Temperature: int(math.Round(current.Temperature)),
		Conditions:  current.Conditions,
		Humidity:    current.Humidity,
		WindSpeed:   current.WindSpeed,
		Icon:        current.Icon,
		Description: current.Description,
		WeatherID:   current.CityID,
		LastUpdated: c.now(),
		Forecast:    reduceForecast(points),
		Timezone:    current.Timezone,
		Sunrise:     current.Sunrise,
		Sunset:      current.Sunset,
	}
	return snap, nil
}

// reduceForecast selects every 8th 3-hour point (24h spacing) up to five
// days, rounding temperatures to the nearest integer.
func reduceForecast(points []client.ForecastPoint) []models.ForecastDay {
	days := make([]models.ForecastDay, 0, forecastDays)
	for i := 0; i < len(points) && len(days) < forecastDays; i += forecastStride {
		p := points[i]
		days = append(days, models.ForecastDay{
			Date:        time.Unix(p.DT, 0).UTC().Format("2006-01-02"),
			Temperature: int(math.Round(p.Temperature)),
			Icon:        p.Icon,
		})
	}
	return days
}

// GetCached is the primary read path. forceRefresh treats the cache as
// expired and evicts before fetching. A nil snapshot with nil error means
// offline with no cache; the city is then queued for a later drain.
func (c *Cache) GetCached(ctx context.Context, city models.City, forceRefresh bool) (*models.WeatherSnapshot, error) {
	online := c.oracle.Check(ctx).Online()
	cached, fetchedAt := c.read(ctx, city)

	expired := forceRefresh || fetchedAt.IsZero() || c.now().Sub(fetchedAt) >= c.ttl

	switch {
	case online && expired:
		if forceRefresh {
			if err := c.Evict(ctx, city); err != nil {
				c.logger.Warn("evict failed", zap.String("city", city.Key()), zap.Error(err))
			}
		}
		snap, err := c.FetchFresh(ctx, city)
		if err == nil {
			observability.WeatherCacheReadsTotal.WithLabelValues("miss").Inc()
			return snap, nil
		}
		// Fall back to whatever is still cached; forceRefresh evicted it, so
		// the failure propagates in that case.
		if fallback, _ := c.read(ctx, city); fallback != nil {
			observability.WeatherCacheReadsTotal.WithLabelValues("stale_fallback").Inc()
			c.logger.Info("serving stale cache", zap.String("city", city.Key()), zap.Error(err))
			return fallback, nil
		}
		return nil, err

	case online && cached == nil:
		// Cold cache inside the TTL window (timestamp present but snapshot
		// missing, e.g. after a partial write).
		snap, err := c.FetchFresh(ctx, city)
		if err != nil {
			return nil, err
		}
		observability.WeatherCacheReadsTotal.WithLabelValues("miss").Inc()
		return snap, nil

	case !online && cached == nil:
		if err := c.enqueuePending(ctx, city); err != nil {
			c.logger.Warn("enqueue pending failed", zap.String("city", city.Key()), zap.Error(err))
		}
		observability.WeatherCacheReadsTotal.WithLabelValues("pending_enqueued").Inc()
		return nil, nil

	default:
		observability.WeatherCacheReadsTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}
}

// Evict removes the city's snapshot and fetch-time entries as one step.
func (c *Cache) Evict(ctx context.Context, city models.City) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Delete(ctx, snapshotKeyPrefix+city.Key()); err != nil {
		return err
	}
	return c.store.Delete(ctx, fetchTimeKeyPrefix+city.Key())
}

// read returns the cached snapshot and its fetch time; either may be absent.
func (c *Cache) read(ctx context.Context, city models.City) (*models.WeatherSnapshot, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var snap models.WeatherSnapshot
	ok, err := c.store.Get(ctx, snapshotKeyPrefix+city.Key(), &snap)
	if err != nil || !ok {
		return nil, time.Time{}
	}
	var fetchedAt time.Time
	ok, err = c.store.Get(ctx, fetchTimeKeyPrefix+city.Key(), &fetchedAt)
	if err != nil || !ok {
		return &snap, time.Time{}
	}
	return &snap, fetchedAt
}

func (c *Cache) persist(ctx context.Context, city models.City, snap *models.WeatherSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Set(ctx, snapshotKeyPrefix+city.Key(), snap); err != nil {
		return err
	}
	return c.store.Set(ctx, fetchTimeKeyPrefix+city.Key(), snap.LastUpdated)
}
