// Package favorites reconciles the remotely-stored favorite list with fresh
// weather data and implements the favorite toggle. Remote records are loosely
// typed and may contain duplicates, soft-deleted entries and missing geodata;
// everything here filters through the same live-record predicate.
package favorites

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/i-Rony/WeatherBoard/internal/geosearch"
	"github.com/i-Rony/WeatherBoard/internal/observability"
	"github.com/i-Rony/WeatherBoard/internal/remote"
	"github.com/i-Rony/WeatherBoard/internal/weathercache"
)

const (
	// DefaultBatchSize bounds parallelism within one reconcile batch.
	DefaultBatchSize = 3

	// DefaultBatchPause is the pacing delay between batches, shared
	// discipline with the weather cache's pending drain.
	DefaultBatchPause = time.Second
)

// Service owns favorite reconciliation and toggling against the remote item
// store.
type Service struct {
	store  remote.Store
	cache  *weathercache.Cache
	search *geosearch.Searcher
	logger *zap.Logger

	batchSize int
	pacer     *rate.Limiter

	state atomic.Int32

	now func() time.Time
}

// Options tune service behavior; zero values select the defaults.
type Options struct {
	BatchSize  int
	BatchPause time.Duration
	Now        func() time.Time
}

// New creates a Service.
func New(store remote.Store, cache *weathercache.Cache, search *geosearch.Searcher, logger *zap.Logger, opts Options) *Service {
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
	return &Service{
		store:     store,
		cache:     cache,
		search:    search,
		logger:    logger,
		batchSize: opts.BatchSize,
		pacer:     rate.NewLimiter(rate.Every(opts.BatchPause), 1),
		now:       opts.Now,
	}
}

// State returns the phase of the current or last reconcile run.
func (s *Service) State() RunState {
	return RunState(s.state.Load())
}

func (s *Service) setState(st RunState) {
	s.state.Store(int32(st))
}

// candidate is one deduplicated live record heading into the batch phase.
type candidate struct {
	item remote.Item
	meta Metadata
}

// ReconcileAll refreshes the weather snapshot of every live favorite and
// returns the number successfully updated. It never returns an error: any
// internal failure degrades to a count of 0. Duplicate records sharing a
// composite key are reconciled through their max-UpdatedAt representative
// only; stale duplicates are left in place, not deleted.
func (s *Service) ReconcileAll(ctx context.Context) int {
	start := s.now()
	defer func() {
		s.setState(StateDone)
		observability.ReconcileDurationSeconds.Observe(s.now().Sub(start).Seconds())
	}()

	s.setState(StateFetching)
	items, err := s.store.ListItems(ctx)
	if err != nil {
		s.logger.Warn("list favorites failed", zap.Error(err))
		observability.ReconcileRunsTotal.WithLabelValues("degraded").Inc()
		return 0
	}

	s.setState(StateFiltering)
	candidates := dedupe(filterLive(items))
	if len(candidates) == 0 {
		observability.ReconcileRunsTotal.WithLabelValues("ok").Inc()
		return 0
	}

	s.setState(StateBatching)
	s.logger.Info("reconciling favorites", zap.Int("candidates", len(candidates)))

	count := 0
	for batchStart := 0; batchStart < len(candidates); batchStart += s.batchSize {
		if err := s.pacer.Wait(ctx); err != nil {
			s.logger.Warn("reconcile aborted", zap.Error(err))
			observability.ReconcileRunsTotal.WithLabelValues("degraded").Inc()
			return count
		}
		end := batchStart + s.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[batchStart:end]

		results := make([]bool, len(batch))
		var wg sync.WaitGroup
		for i, cand := range batch {
			i, cand := i, cand
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = s.updateOne(ctx, cand)
			}()
		}
		wg.Wait()

		for _, ok := range results {
			if ok {
				count++
			}
		}
	}

	observability.ReconcileRunsTotal.WithLabelValues("ok").Inc()
	observability.ReconcileUpdatedTotal.Add(float64(count))
	s.logger.Info("reconcile complete", zap.Int("updated", count), zap.Int("candidates", len(candidates)))
	return count
}

// updateOne refreshes a single favorite: resolve coordinates, force a fresh
// weather fetch, and upsert the record in place. Any failure yields false
// without affecting batch siblings.
func (s *Service) updateOne(ctx context.Context, cand candidate) bool {
	city, ok := geodata(cand.item.Name, cand.meta)
	if !ok {
		matches := s.search.Search(ctx, cand.item.Name)
		if len(matches) == 0 {
			s.logger.Warn("favorite has no resolvable coordinates", zap.String("name", cand.item.Name))
			return false
		}
		city = matches[0]
	}

	// Reconciliation must not serve stale data; always a forced fresh fetch.
	snap, err := s.cache.FetchFresh(ctx, city)
	if err != nil {
		s.logger.Warn("favorite refresh fetch failed", zap.String("name", cand.item.Name), zap.Error(err))
		return false
	}

	input, err := encodeFavorite(cand.item.ID, snap)
	if err != nil {
		s.logger.Warn("favorite encode failed", zap.String("name", cand.item.Name), zap.Error(err))
		return false
	}
	if _, err := s.store.UpsertItem(ctx, input); err != nil {
		s.logger.Warn("favorite upsert failed", zap.String("name", cand.item.Name), zap.Error(err))
		return false
	}
	return true
}

// filterLive drops soft-deleted and malformed records.
func filterLive(items []remote.Item) []candidate {
	live := make([]candidate, 0, len(items))
	for _, item := range items {
		meta, ok := liveMetadata(item)
		if !ok {
			continue
		}
		live = append(live, candidate{item: item, meta: meta})
	}
	return live
}

// dedupe keeps one record per composite key: the one with the maximal
// UpdatedAt. Output preserves first-appearance order of each key.
func dedupe(live []candidate) []candidate {
	byKey := make(map[string]int, len(live))
	out := make([]candidate, 0, len(live))
	for _, cand := range live {
		key := compositeKey(cand.item.Name, cand.meta)
		if idx, seen := byKey[key]; seen {
			if cand.item.UpdatedAt.After(out[idx].item.UpdatedAt) {
				out[idx] = cand
			}
			continue
		}
		byKey[key] = len(out)
		out = append(out, cand)
	}
	return out
}
