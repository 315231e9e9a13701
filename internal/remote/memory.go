package remote

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory implements Store in process memory. Used by tests and local runs
// without a remote backend. Listing order is insertion order.
type Memory struct {
	mu    sync.Mutex
	items map[string]Item
	order []string
	now   func() time.Time
}

// NewMemory creates an empty in-memory store using the wall clock.
func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock creates an in-memory store with an injected clock so
// tests can control CreatedAt/UpdatedAt.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{items: make(map[string]Item), now: now}
}

// ListItems implements Store.ListItems.
func (m *Memory) ListItems(ctx context.Context) ([]Item, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Item, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id])
	}
	return out, nil
}

// GetItem implements Store.GetItem.
func (m *Memory) GetItem(ctx context.Context, id string) (Item, error) {
	if ctx.Err() != nil {
		return Item{}, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

// UpsertItem implements Store.UpsertItem. An input without ID creates a new
// item; an input with an unknown ID is ErrNotFound (update semantics).
func (m *Memory) UpsertItem(ctx context.Context, input ItemInput) (Item, error) {
	if ctx.Err() != nil {
		return Item{}, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if input.ID == "" {
		item := Item{
			ID:        uuid.New().String(),
			Name:      input.Name,
			Content:   input.Content,
			Metadata:  input.Metadata,
			CreatedAt: now,
			UpdatedAt: now,
		}
		m.items[item.ID] = item
		m.order = append(m.order, item.ID)
		return item, nil
	}

	existing, ok := m.items[input.ID]
	if !ok {
		return Item{}, ErrNotFound
	}
	existing.Name = input.Name
	existing.Content = input.Content
	existing.Metadata = input.Metadata
	existing.UpdatedAt = now
	m.items[input.ID] = existing
	return existing, nil
}
