package cache

import (
	"context"
	"sync"
	"time"

	"github.com/fooder/fooder/internal/ports/outbound"
)

const defaultMemoryTTL = 24 * time.Hour

// cacheItem represents a cached item
type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache implements outbound.CacheRepository in process memory
type MemoryCache struct {
	data  map[string]cacheItem
	mutex sync.RWMutex
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

var _ outbound.CacheRepository = (*MemoryCache)(nil)

// NewMemoryCache creates an in-memory cache that sweeps expired keys every sweepInterval
func NewMemoryCache(sweepInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		data: make(map[string]cacheItem),
		now:  time.Now,
		stop: make(chan struct{}),
	}
	if sweepInterval > 0 {
		go c.sweep(sweepInterval)
	}
	return c
}

// Get retrieves a value; absent or expired keys return outbound.ErrCacheMiss
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.RLock()
	item, ok := c.data[key]
	c.mutex.RUnlock()

	if !ok || c.now().After(item.expiresAt) {
		return nil, outbound.ErrCacheMiss
	}
	return item.value, nil
}

// Set stores a value; a zero TTL means 24 hours
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	stored := append([]byte(nil), value...)

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data[key] = cacheItem{value: stored, expiresAt: c.now().Add(ttl)}
	return nil
}

// Delete removes a key
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.data, key)
	return nil
}

// Exists checks if a live key exists
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	item, ok := c.data[key]
	return ok && !c.now().After(item.expiresAt), nil
}

// Ping always succeeds
func (c *MemoryCache) Ping(ctx context.Context) error {
	return nil
}

// Len returns the number of stored keys, expired or not
func (c *MemoryCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Close stops the sweeper
func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

func (c *MemoryCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *MemoryCache) removeExpired() {
	now := c.now()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for key, item := range c.data {
		if now.After(item.expiresAt) {
			delete(c.data, key)
		}
	}
}
