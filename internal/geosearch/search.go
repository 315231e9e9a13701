// Package geosearch resolves free-text city queries to coordinates, online
// via the geocoding provider, offline via a recency cache of past results.
// It never raises to its callers: failures surface as empty result sets.
package geosearch

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/i-Rony/WeatherBoard/internal/client"
	"github.com/i-Rony/WeatherBoard/internal/connectivity"
	"github.com/i-Rony/WeatherBoard/internal/kvstore"
	"github.com/i-Rony/WeatherBoard/internal/models"
)

const (
	recentKey = "recent_searches"

	minQueryLen   = 2
	maxResults    = 5
	maxRecentSize = 10
)

// Searcher is the geo search cache.
type Searcher struct {
	geocode client.GeocodeClient
	store   kvstore.Store
	oracle  connectivity.Oracle
	logger  *zap.Logger
}

// New creates a Searcher.
func New(geocode client.GeocodeClient, store kvstore.Store, oracle connectivity.Oracle, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{geocode: geocode, store: store, oracle: oracle, logger: logger}
}

// Search returns up to five city matches for query. Queries shorter than two
// characters return an empty slice without any network call, regardless of
// connectivity. Offline, the recent-searches list is filtered by
// case-insensitive substring match on name. Errors are swallowed and logged.
func (s *Searcher) Search(ctx context.Context, query string) []models.City {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minQueryLen {
		return nil
	}

	if !s.oracle.Check(ctx).Online() {
		return s.searchRecent(ctx, query)
	}

	cities, err := s.geocode.Search(ctx, query, maxResults)
	if err != nil {
		s.logger.Warn("geocode search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	if len(cities) > maxResults {
		cities = cities[:maxResults]
	}
	return cities
}

func (s *Searcher) searchRecent(ctx context.Context, query string) []models.City {
	recent, err := s.recent(ctx)
	if err != nil {
		s.logger.Warn("read recent searches failed", zap.Error(err))
		return nil
	}
	needle := strings.ToLower(query)
	var matches []models.City
	for _, city := range recent {
		if strings.Contains(strings.ToLower(city.Name), needle) {
			matches = append(matches, city)
		}
	}
	return matches
}

// Remember inserts city at the front of the recent-searches list unless an
// entry with the same exact (name, country) already exists, truncates to the
// ten most recent, and persists.
func (s *Searcher) Remember(ctx context.Context, city models.City) error {
	recent, err := s.recent(ctx)
	if err != nil {
		return err
	}
	for _, existing := range recent {
		if existing.Name == city.Name && existing.Country == city.Country {
			return nil
		}
	}
	recent = append([]models.City{city}, recent...)
	if len(recent) > maxRecentSize {
		recent = recent[:maxRecentSize]
	}
	return s.store.Set(ctx, recentKey, recent)
}

// Recent returns the persisted recent-searches list, most recent first.
func (s *Searcher) Recent(ctx context.Context) ([]models.City, error) {
	return s.recent(ctx)
}

func (s *Searcher) recent(ctx context.Context) ([]models.City, error) {
	var recent []models.City
	if _, err := s.store.Get(ctx, recentKey, &recent); err != nil {
		return nil, err
	}
	return recent, nil
}
