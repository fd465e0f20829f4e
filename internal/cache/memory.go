package cache

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryCache is an in-process Cache. Expired entries are invisible
// immediately and reclaimed by a background sweep.
type MemoryCache struct {
	entries *xsync.MapOf[string, memoryEntry]
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryCache creates a cache that sweeps expired entries every interval.
// A non-positive interval disables the sweep.
func NewMemoryCache(interval time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries: xsync.NewMapOf[string, memoryEntry](),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if interval > 0 {
		go c.sweepLoop(interval)
	}
	return c
}

var _ Cache = (*MemoryCache)(nil)

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := c.entries.Load(key)
	if !ok || e.expired(c.now()) {
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a copy of value. A non-positive ttl never expires.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: make([]byte, len(value))}
	copy(e.value, value)
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries.Store(key, e)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.entries.Delete(k)
	}
	return nil
}

func (c *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	e, ok := c.entries.Load(key)
	return ok && !e.expired(c.now()), nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.entries.Clear()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	return c.entries.Size()
}

// Close stops the background sweep.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *MemoryCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryCache) sweep() {
	now := c.now()
	c.entries.Range(func(key string, e memoryEntry) bool {
		if e.expired(now) {
			c.entries.Compute(key, func(cur memoryEntry, loaded bool) (memoryEntry, bool) {
				// Keep entries rewritten since Range observed them.
				return cur, !loaded || cur.expired(now)
			})
		}
		return true
	})
}
