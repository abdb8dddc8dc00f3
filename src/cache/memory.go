package cache

import (
	"context"
	"sync"
	"time"

	"mtm-hub/src/interfaces"
	"mtm-hub/src/models"
)

// -----------------------------------------------------------------------------

// MemoryCache is an in-process TTL cache of raw terminal payloads. Validity is
// judged against the injected clock; the janitor only reclaims memory.
type MemoryCache struct {
	items           map[string]models.MCacheEntry
	mu              sync.RWMutex
	ttl             time.Duration
	clock           interfaces.IClock
	cleanupInterval time.Duration
	stopJanitor     chan struct{}
	stopOnce        sync.Once
}

// -----------------------------------------------------------------------------

// NewMemoryCache starts the janitor when cleanupInterval > 0.
func NewMemoryCache(ttl, cleanupInterval time.Duration, clock interfaces.IClock) *MemoryCache {
	c := &MemoryCache{
		items:           make(map[string]models.MCacheEntry),
		ttl:             ttl,
		clock:           clock,
		cleanupInterval: cleanupInterval,
		stopJanitor:     make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor()
	}
	return c
}

// -----------------------------------------------------------------------------

func (c *MemoryCache) valid(e models.MCacheEntry, now time.Time) bool {
	return now.Sub(e.FetchedAt) < c.ttl
}

// -----------------------------------------------------------------------------

func (c *MemoryCache) Get(_ context.Context, userID string) (models.MCacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, found := c.items[userID]
	if !found || !c.valid(e, c.clock.Now()) {
		return models.MCacheEntry{}, false
	}
	return e, true
}

// -----------------------------------------------------------------------------

func (c *MemoryCache) Set(_ context.Context, userID string, entry models.MCacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[userID] = entry
}

// -----------------------------------------------------------------------------

func (c *MemoryCache) Delete(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, userID)
}

// -----------------------------------------------------------------------------

func (c *MemoryCache) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]models.MCacheEntry)
}

// -----------------------------------------------------------------------------

// Len counts entries still held, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// -----------------------------------------------------------------------------

func (c *MemoryCache) janitor() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.DeleteExpired()
		case <-c.stopJanitor:
			return
		}
	}
}

// -----------------------------------------------------------------------------

func (c *MemoryCache) DeleteExpired() {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.items {
		if !c.valid(e, now) {
			delete(c.items, key)
		}
	}
}

// -----------------------------------------------------------------------------

func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopJanitor) })
	return nil
}
