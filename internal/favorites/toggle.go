package favorites

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/i-Rony/WeatherBoard/internal/models"
	"github.com/i-Rony/WeatherBoard/internal/remote"
)

// List returns all live favorite records, network-fresh. Soft-deleted and
// malformed records never appear.
func (s *Service) List(ctx context.Context) ([]remote.Item, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	live := filterLive(items)
	out := make([]remote.Item, 0, len(live))
	for _, cand := range live {
		out = append(out, cand.item)
	}
	return out, nil
}

// IsFavorite reports whether a live record matches name (case-insensitive).
// When weatherID is supplied and the record's metadata carries one, the IDs
// must also match; this disambiguates same-named cities. Lookup failures
// report false.
func (s *Service) IsFavorite(ctx context.Context, name string, weatherID *int) bool {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		s.logger.Warn("favorite lookup failed", zap.String("name", name), zap.Error(err))
		return false
	}
	for _, cand := range filterLive(items) {
		if matchesFavorite(cand, name, weatherID) {
			return true
		}
	}
	return false
}

func matchesFavorite(cand candidate, name string, weatherID *int) bool {
	if !strings.EqualFold(cand.item.Name, name) {
		return false
	}
	if weatherID != nil && cand.meta.WeatherID != nil && *cand.meta.WeatherID != *weatherID {
		return false
	}
	return true
}

// Toggle flips the favorite state of the city in snap and reports success.
//
// Removing soft-deletes every live record matching by name OR by weatherId.
// That union predicate is deliberately broad: it sweeps up stale duplicates
// in one pass, at the cost of also removing a same-named city in another
// country. Partial failures among multiple matches are tolerated; success
// means at least one tombstone was written.
func (s *Service) Toggle(ctx context.Context, snap *models.WeatherSnapshot) bool {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		s.logger.Warn("toggle list failed", zap.String("name", snap.City.Name), zap.Error(err))
		return false
	}
	live := filterLive(items)

	wid := snap.WeatherID
	var widPtr *int
	if wid != 0 {
		widPtr = &wid
	}
	current := false
	var matches []candidate
	for _, cand := range live {
		if matchesFavorite(cand, snap.City.Name, widPtr) {
			current = true
		}
		nameMatch := strings.EqualFold(cand.item.Name, snap.City.Name)
		idMatch := wid != 0 && cand.meta.WeatherID != nil && *cand.meta.WeatherID == wid
		if nameMatch || idMatch {
			matches = append(matches, cand)
		}
	}

	if !current {
		// Not currently a favorite; insert a new record from the snapshot.
		input, err := encodeFavorite("", snap)
		if err != nil {
			s.logger.Warn("favorite encode failed", zap.String("name", snap.City.Name), zap.Error(err))
			return false
		}
		if _, err := s.store.UpsertItem(ctx, input); err != nil {
			s.logger.Warn("favorite insert failed", zap.String("name", snap.City.Name), zap.Error(err))
			return false
		}
		return true
	}

	deletedAt := s.now()
	removed := 0
	for _, cand := range matches {
		input, err := encodeTombstone(cand.item, cand.meta, deletedAt)
		if err != nil {
			s.logger.Warn("tombstone encode failed", zap.String("id", cand.item.ID), zap.Error(err))
			continue
		}
		if _, err := s.store.UpsertItem(ctx, input); err != nil {
			s.logger.Warn("tombstone upsert failed", zap.String("id", cand.item.ID), zap.Error(err))
			continue
		}
		removed++
	}
	return removed > 0
}
