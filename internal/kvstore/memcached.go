package kvstore

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "weatherboard:"

// Memcached implements Store on memcached. Entries are written with a long
// relative expiry; freshness policy (the 1h weather TTL) lives in the weather
// cache layer, not here.
type Memcached struct {
	client *memcache.Client
}

// NewMemcached creates a Memcached store. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and
// maxIdleConns configure the client; both use package defaults if zero.
func NewMemcached(addrs string, timeout time.Duration, maxIdleConns int) (*Memcached, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &Memcached{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (m *Memcached) key(k string) string {
	return keyPrefix + sanitizeKey(k)
}

// Get implements Store.Get. Returns (false, nil) on a miss.
func (m *Memcached) Get(ctx context.Context, key string, dest any) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	item, err := m.client.Get(m.key(key))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(item.Value, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set implements Store.Set.
func (m *Memcached) Set(ctx context.Context, key string, value any) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	const expSec = 30 * 24 * 60 * 60 // memcached max relative expiry (30 days)
	return m.client.Set(&memcache.Item{
		Key:        m.key(key),
		Value:      raw,
		Expiration: expSec,
	})
}

// Delete implements Store.Delete. Deleting an absent key is not an error.
func (m *Memcached) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	err := m.client.Delete(m.key(key))
	if err == memcache.ErrCacheMiss {
		return nil
	}
	return err
}

// Ping checks if memcached is reachable. Used for health checks.
func (m *Memcached) Ping() error {
	return m.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (m *Memcached) Close() error {
	return m.client.Close()
}
