package weathercache

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/i-Rony/WeatherBoard/internal/models"
	"github.com/i-Rony/WeatherBoard/internal/observability"
)

// enqueuePending records a city whose fetch was attempted offline with no
// usable cache. The queue is deduplicated by city identity.
func (c *Cache) enqueuePending(ctx context.Context, city models.City) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var queue []models.City
	if _, err := c.store.Get(ctx, pendingQueueKey, &queue); err != nil {
		return err
	}
	for _, queued := range queue {
		if queued.SameCity(city) {
			return nil
		}
	}
	queue = append(queue, city)
	if err := c.store.Set(ctx, pendingQueueKey, queue); err != nil {
		return err
	}
	observability.PendingQueueDepth.Set(float64(len(queue)))
	return nil
}

// PendingCities returns a copy of the current pending queue.
func (c *Cache) PendingCities(ctx context.Context) ([]models.City, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var queue []models.City
	if _, err := c.store.Get(ctx, pendingQueueKey, &queue); err != nil {
		return nil, err
	}
	return queue, nil
}

// DrainPending fetches every queued city in fixed-size parallel batches with
// pacing between batches, then clears the queue. The clear is unconditional:
// entries whose fetch failed during the pass are dropped, not retried. That
// matches the historical behavior of this queue; see DESIGN.md before
// changing it.
func (c *Cache) DrainPending(ctx context.Context) error {
	if !c.oracle.Check(ctx).Online() {
		observability.PendingDrainsTotal.WithLabelValues("offline").Inc()
		return nil
	}

	c.mu.Lock()
	var queue []models.City
	_, err := c.store.Get(ctx, pendingQueueKey, &queue)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if len(queue) == 0 {
		observability.PendingDrainsTotal.WithLabelValues("empty").Inc()
		return nil
	}

	c.logger.Info("draining pending weather requests", zap.Int("queued", len(queue)))

	for start := 0; start < len(queue); start += c.batchSize {
		if err := c.pacer.Wait(ctx); err != nil {
			return err
		}
		end := start + c.batchSize
		if end > len(queue) {
			end = len(queue)
		}
		batch := queue[start:end]

		var wg sync.WaitGroup
		for _, city := range batch {
			city := city
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := c.FetchFresh(ctx, city); err != nil {
					// Tolerated: a failed fetch must not abort the batch or
					// the batches after it.
					c.logger.Warn("pending fetch failed", zap.String("city", city.Key()), zap.Error(err))
				}
			}()
		}
		wg.Wait()
	}

	c.mu.Lock()
	err = c.store.Delete(ctx, pendingQueueKey)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	observability.PendingQueueDepth.Set(0)
	observability.PendingDrainsTotal.WithLabelValues("drained").Inc()
	return nil
}
