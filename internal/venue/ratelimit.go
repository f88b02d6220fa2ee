package venue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fundsync/internal/cache"
)

// RateLimiter manages per-endpoint API rate limits with a cache-backed
// fallback shared across processes.
type RateLimiter struct {
	cache       cache.Cacher
	limits      map[string]*Limit
	mu          sync.Mutex
	defaultWait time.Duration
}

// Limit represents a token-bucket rate limit for one endpoint.
type Limit struct {
	Name      string
	Interval  time.Duration
	MaxTokens int
	Tokens    int
	LastReset time.Time
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter(c cache.Cacher, defaultWait time.Duration) *RateLimiter {
	return &RateLimiter{
		cache:       c,
		limits:      make(map[string]*Limit),
		defaultWait: defaultWait,
	}
}

// AddLimit registers a rate limit for an endpoint.
func (r *RateLimiter) AddLimit(name string, interval time.Duration, maxTokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.limits[name] = &Limit{
		Name:      name,
		Interval:  interval,
		MaxTokens: maxTokens,
		Tokens:    maxTokens,
		LastReset: time.Now(),
	}
}

// Wait blocks until the named limit allows an action. Endpoints without a
// registered limit pass through.
func (r *RateLimiter) Wait(ctx context.Context, name string) error {
	for {
		r.mu.Lock()
		limit, exists := r.limits[name]
		if !exists {
			r.mu.Unlock()
			return nil
		}

		now := time.Now()
		if now.Sub(limit.LastReset) >= limit.Interval {
			limit.Tokens = limit.MaxTokens
			limit.LastReset = now
		}

		if limit.Tokens > 0 {
			limit.Tokens--
			r.mu.Unlock()
			return nil
		}

		waitTime := limit.LastReset.Add(limit.Interval).Sub(now)
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// WaitWithFallback consults the shared cache window when the local bucket is
// not registered, so multiple processes hitting the same venue stay within
// its published limits.
func (r *RateLimiter) WaitWithFallback(ctx context.Context, venueCode, name string, limit int, window time.Duration) error {
	r.mu.Lock()
	_, exists := r.limits[name]
	r.mu.Unlock()

	if exists {
		return r.Wait(ctx, name)
	}
	if r.cache == nil || limit <= 0 {
		return nil
	}

	ok, err := r.cache.CheckRateLimit(ctx, fmt.Sprintf("ratelimit:%s:%s", venueCode, name), limit, window)
	if err != nil {
		// cache unavailable: degrade to a flat wait
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.defaultWait):
			return nil
		}
	}
	if !ok {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(window):
			return nil
		}
	}
	return nil
}
