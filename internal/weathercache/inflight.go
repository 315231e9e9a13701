package weathercache

import (
	"context"
	"sync"

	"github.com/i-Rony/WeatherBoard/internal/models"
	"github.com/i-Rony/WeatherBoard/internal/observability"
)

// inFlightFetch is one outstanding network round-trip that multiple callers
// may wait on. done is closed when the result has settled.
type inFlightFetch struct {
	done     chan struct{}
	snapshot *models.WeatherSnapshot
	err      error
}

// inFlightMap guarantees at most one outstanding fetch per cache key.
// It is owned by the Cache instance, not package state.
type inFlightMap struct {
	mu      sync.Mutex
	fetches map[string]*inFlightFetch
}

func newInFlightMap() *inFlightMap {
	return &inFlightMap{fetches: make(map[string]*inFlightFetch)}
}

// Do executes fn for key unless a fetch for key is already in flight, in
// which case the caller waits for that fetch and shares its settled result.
// The entry is removed on settle regardless of outcome, so a failed fetch
// does not poison later attempts.
func (m *inFlightMap) Do(ctx context.Context, key string, fn func() (*models.WeatherSnapshot, error)) (*models.WeatherSnapshot, error) {
	m.mu.Lock()
	if f, ok := m.fetches[key]; ok {
		m.mu.Unlock()
		observability.InFlightJoinsTotal.Inc()
		select {
		case <-f.done:
			return f.snapshot, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f := &inFlightFetch{done: make(chan struct{})}
	m.fetches[key] = f
	m.mu.Unlock()

	f.snapshot, f.err = fn()

	m.mu.Lock()
	delete(m.fetches, key)
	m.mu.Unlock()
	close(f.done)

	return f.snapshot, f.err
}

// Len returns the number of fetches currently in flight.
func (m *inFlightMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fetches)
}
