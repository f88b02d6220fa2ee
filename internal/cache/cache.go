package cache

import (
	"context"
	"errors"
	"time"

	"fundsync/internal/config"
)

// Cacher defines the cache operations the engine uses.
type Cacher interface {
	// Get unmarshals the cached value at key into dest.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores value at key with an expiration.
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Delete removes a key.
	Delete(ctx context.Context, key string) error
	// CheckRateLimit reports whether another request is allowed within the window.
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// ErrCacheMiss is returned by Get when the key is absent.
var ErrCacheMiss = errors.New("cache: key not found")

// NewCacher creates a cache instance based on configuration. Redis when
// enabled, in-process memory otherwise.
func NewCacher(cfg *config.RedisConfig) (Cacher, error) {
	if cfg != nil && cfg.Enabled {
		return NewRedisCache(cfg)
	}
	return NewMemoryCache(), nil
}
