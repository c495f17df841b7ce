// Package cache provides a small TTL cache used for link previews. Redis
// backs it in production; an in-process map serves local development and
// tests.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache stores string values with a TTL. A miss is reported via ok=false,
// never as an error; backend failures degrade to misses.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

// Redis is the redis-backed cache.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a redis cache.
func NewRedis(addr, password string, db int) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// Get retrieves a cached value.
func (c *Redis) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return value, true
}

// Set stores a value. Failures are ignored; the cache is best effort.
func (c *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) {
	_ = c.client.Set(ctx, key, value, ttl).Err()
}

// Memory is a mutex-guarded in-process cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

// Get retrieves a cached value that has not expired.
func (c *Memory) Get(_ context.Context, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.value, true
}

// Set stores a value with the given TTL.
func (c *Memory) Set(_ context.Context, key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) > 10000 {
		now := time.Now()
		for k, entry := range c.entries {
			if now.After(entry.expiresAt) {
				delete(c.entries, k)
			}
		}
	}
	c.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
}
