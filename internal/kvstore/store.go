package kvstore

import (
	"context"
	"encoding/json"
	"sync"
)

// Store is durable on-device storage of JSON-serializable values by string
// key. Semantics are last-writer-wins; there are no transactions and no
// optimistic concurrency. Get returns (false, nil) when the key is absent.
type Store interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
}

// Memory implements Store with a mutex-guarded in-process map. Values are
// stored as marshaled JSON so Get/Set round-trip exactly like the durable
// backends.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get implements Store.Get.
func (m *Memory) Get(ctx context.Context, key string, dest any) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	m.mu.Lock()
	raw, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set implements Store.Set.
func (m *Memory) Set(ctx context.Context, key string, value any) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

// Delete implements Store.Delete. Deleting an absent key is not an error.
func (m *Memory) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}
