package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/weather-snapshot-service/internal/models"
)

// Cache defines the interface for latest-snapshot read caches keyed by location.
// Get returns cached data if present and not expired, Set stores data with TTL,
// Delete drops the entry if present.
type Cache interface {
	Get(ctx context.Context, key string) (models.WeatherSnapshot, bool, error)
	Set(ctx context.Context, key string, value models.WeatherSnapshot, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// InMemoryCache implements Cache using a mutex-guarded map with TTL-based expiration.
// Expired entries are removed on access.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
	now  func() time.Time
}

type cacheEntry struct {
	value     models.WeatherSnapshot
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
		now:  time.Now,
	}
}

// Get retrieves the cached snapshot for key if present and not expired.
// Returns (snapshot, true, nil) on hit, (zero, false, nil) on miss or expiration.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.WeatherSnapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.WeatherSnapshot{}, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return models.WeatherSnapshot{}, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.data, key)
		return models.WeatherSnapshot{}, false, nil
	}
	return entry.value, true, nil
}

// Set stores the snapshot under key. The entry expires after ttl.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.WeatherSnapshot, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.data[key] = cacheEntry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Delete removes key. Missing keys are ignored.
func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

// Ping always succeeds; present so health checks treat both caches alike.
func (c *InMemoryCache) Ping() error { return nil }
