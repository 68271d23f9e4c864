// Package cache provides a simple in-memory TTL cache.
// It backs the per-user workspaces and the in-memory export artifact store.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time // zero means never
}

func (e entry[T]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// InMemory is a thread-safe in-memory cache with TTL.
type InMemory[T any] struct {
	mu      sync.RWMutex
	items   map[string]entry[T]
	ttl     time.Duration
	onEvict func(key string, value T)
	stop    chan struct{}
	once    sync.Once
}

// New creates a new in-memory cache with the given TTL.
func New[T any](ttl time.Duration) *InMemory[T] {
	return NewWithEviction[T](ttl, nil)
}

// NewWithEviction creates a cache that calls onEvict for every entry that
// leaves the cache, whether it expired, was replaced or was deleted.
// onEvict runs without the cache lock held. A non-positive ttl disables
// expiry: entries stay until replaced or deleted.
func NewWithEviction[T any](ttl time.Duration, onEvict func(key string, value T)) *InMemory[T] {
	c := &InMemory[T]{
		items:   make(map[string]entry[T]),
		ttl:     ttl,
		onEvict: onEvict,
		stop:    make(chan struct{}),
	}
	// Background cleanup goroutine
	if ttl > 0 {
		go c.cleanup()
	}
	return c
}

// Get retrieves a value from the cache. Returns false if not found or expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || e.expired(time.Now()) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores a value in the cache with the configured TTL.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	prev, existed := c.items[key]
	c.items[key] = entry[T]{
		value:     value,
		expiresAt: c.expiry(),
	}
	c.mu.Unlock()

	if existed && c.onEvict != nil && !sameValue(prev.value, value) {
		c.onEvict(key, prev.value)
	}
}

// Touch extends the TTL of an existing entry. Returns false if absent or expired.
func (c *InMemory[T]) Touch(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok || e.expired(time.Now()) {
		return false
	}
	e.expiresAt = c.expiry()
	c.items[key] = e
	return true
}

// Delete removes a value from the cache.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	e, ok := c.items[key]
	delete(c.items, key)
	c.mu.Unlock()

	if ok && c.onEvict != nil {
		c.onEvict(key, e.value)
	}
}

// Len returns the number of stored entries, expired ones included until cleanup.
func (c *InMemory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// expiry returns the deadline of an entry stored now.
func (c *InMemory[T]) expiry() time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.ttl)
}

// Close stops the cleanup goroutine.
func (c *InMemory[T]) Close() {
	c.once.Do(func() { close(c.stop) })
}

// cleanup periodically removes expired entries.
func (c *InMemory[T]) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *InMemory[T]) evictExpired() {
	type evicted struct {
		key   string
		value T
	}
	var out []evicted

	c.mu.Lock()
	now := time.Now()
	for k, v := range c.items {
		if v.expired(now) {
			delete(c.items, k)
			out = append(out, evicted{key: k, value: v.value})
		}
	}
	c.mu.Unlock()

	if c.onEvict == nil {
		return
	}
	for _, e := range out {
		c.onEvict(e.key, e.value)
	}
}

// sameValue reports whether a and b are the same pointer-like value.
// Values that are not comparable are treated as different.
func sameValue[T any](a, b T) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return any(a) == any(b)
}
