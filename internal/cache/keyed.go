package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// KeyedFetchFunc loads a fresh value for a key.
type KeyedFetchFunc[K comparable, T any] func(ctx context.Context, key K) (T, error)

// Bounds for a Keyed cache.
const (
	DefaultMaxEntries    = 1024
	DefaultRetentionTTLs = 10
)

// KeyedConfig holds configuration for a Keyed cache.
type KeyedConfig[K comparable, T any] struct {
	Name     string
	TTL      time.Duration
	Fetch    KeyedFetchFunc[K, T]
	Empty    func() T
	Clock    func() time.Time
	Logger   zerolog.Logger
	Provider string
	Observer Observer

	// MaxEntries caps the number of stored keys. Storing a new key at the
	// cap evicts the oldest entry. Default: DefaultMaxEntries.
	MaxEntries int

	// Retention is how long past its TTL an entry is kept as a stale
	// fallback before it is pruned. Default: DefaultRetentionTTLs * TTL.
	Retention time.Duration
}

// Keyed is a time-bounded cache with one independent slot per key.
type Keyed[K comparable, T any] struct {
	name     string
	ttl      time.Duration
	fetch    KeyedFetchFunc[K, T]
	empty    func() T
	clock    func() time.Time
	logger   zerolog.Logger
	provider string
	observer Observer

	maxEntries int
	retention  time.Duration

	mu      sync.Mutex
	entries map[K]*entry[T]
}

// NewKeyed creates a new Keyed cache.
func NewKeyed[K comparable, T any](cfg KeyedConfig[K, T]) *Keyed[K, T] {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetentionTTLs * cfg.TTL
	}
	return &Keyed[K, T]{
		name:       cfg.Name,
		ttl:        cfg.TTL,
		fetch:      cfg.Fetch,
		empty:      emptyOrZero(cfg.Empty),
		clock:      clockOrNow(cfg.Clock),
		logger:     cfg.Logger,
		provider:   cfg.Provider,
		observer:   observerOrNop(cfg.Observer),
		maxEntries: maxEntries,
		retention:  retention,
		entries:    make(map[K]*entry[T]),
	}
}

// Get returns the value for key, following the same rules as Cache.Get.
func (c *Keyed[K, T]) Get(ctx context.Context, key K) T {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.fresh(c.clock(), c.ttl) {
		v := e.value
		c.mu.Unlock()
		c.observer.RecordCacheHit(c.provider, c.name)
		return v
	}
	c.mu.Unlock()
	c.observer.RecordCacheMiss(c.provider, c.name)

	value, err := c.fetch(ctx, key)
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if e, ok := c.entries[key]; ok {
			c.logger.Warn().Err(err).
				Str("cache", c.name).
				Interface("key", key).
				Time("stored_at", e.storedAt).
				Msg("serving stale data after fetch failure")
			return e.value
		}
		c.logger.Error().Err(err).
			Str("cache", c.name).
			Interface("key", key).
			Msg("fetch failed with nothing cached")
		return c.empty()
	}

	c.mu.Lock()
	c.store(key, value)
	c.mu.Unlock()

	return value
}

// store saves value under key, first pruning entries past their retention
// and, at the size cap, the oldest entry. Callers hold c.mu.
func (c *Keyed[K, T]) store(key K, value T) {
	now := c.clock()
	if _, exists := c.entries[key]; !exists {
		c.prune(now)
	}
	c.entries[key] = &entry[T]{value: value, storedAt: now}
}

// prune rebuilds the map rather than deleting in place: keys that are not
// equal to themselves (NaN) can only be dropped that way.
func (c *Keyed[K, T]) prune(now time.Time) {
	var oldest *entry[T]
	live := 0
	for _, e := range c.entries {
		if c.retired(e, now) {
			continue
		}
		live++
		if oldest == nil || e.storedAt.Before(oldest.storedAt) {
			oldest = e
		}
	}
	if live == len(c.entries) && live < c.maxEntries {
		return
	}

	atCap := live >= c.maxEntries
	kept := make(map[K]*entry[T], live)
	for k, e := range c.entries {
		if c.retired(e, now) || (atCap && e == oldest) {
			continue
		}
		kept[k] = e
	}
	c.entries = kept
}

func (c *Keyed[K, T]) retired(e *entry[T], now time.Time) bool {
	return now.Sub(e.storedAt) >= c.ttl+c.retention
}

// Invalidate drops the value stored for key.
func (c *Keyed[K, T]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops every stored value.
func (c *Keyed[K, T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*entry[T])
}

// Stats returns a snapshot of the cache state.
func (c *Keyed[K, T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	stats := Stats{Name: c.name, TTL: c.ttl, Entries: len(c.entries)}
	for _, e := range c.entries {
		if e.fresh(now, c.ttl) {
			stats.Fresh++
		}
		if stats.OldestStoredAt.IsZero() || e.storedAt.Before(stats.OldestStoredAt) {
			stats.OldestStoredAt = e.storedAt
		}
	}
	return stats
}
