package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"fundsync/internal/config"
)

// RedisCache is the Redis-backed cache implementation.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis cache instance.
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("Redis connection established")
	return &RedisCache{client: client}, nil
}

// Get retrieves a value from cache.
func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Set sets a value in cache with expiration.
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

// Delete removes a key.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// CheckRateLimit implements sliding-window rate limiting on a sorted set.
func (r *RedisCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - window.Nanoseconds()

	if err := r.client.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart)).Err(); err != nil {
		return false, err
	}

	count, err := r.client.ZCard(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if int(count) >= limit {
		return false, nil
	}

	if err := r.client.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now}).Err(); err != nil {
		return false, err
	}
	r.client.Expire(ctx, key, window)
	return true, nil
}

// Close closes the Redis client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
