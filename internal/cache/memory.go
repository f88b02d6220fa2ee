package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryCache is an in-process cache used when Redis is disabled.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	windows map[string][]time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryCache creates an in-memory cache instance.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		windows: make(map[string][]time.Time),
	}
}

// Get retrieves a value from the cache.
func (m *MemoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || (!entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt)) {
		return ErrCacheMiss
	}
	return json.Unmarshal(entry.data, dest)
}

// Set stores a value with an expiration.
func (m *MemoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}

	m.mu.Lock()
	m.entries[key] = memoryEntry{data: data, expiresAt: expiresAt}
	m.mu.Unlock()
	return nil
}

// Delete removes a key.
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// CheckRateLimit implements a sliding window over recorded request times.
func (m *MemoryCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	cutoff := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	times := m.windows[key]
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		m.windows[key] = kept
		return false, nil
	}

	m.windows[key] = append(kept, now)
	return true, nil
}
