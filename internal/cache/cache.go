// Package cache provides time-bounded snapshot caches for upstream feeds.
//
// A cache holds the last successful fetch together with the time it was stored.
// Reads inside the TTL never touch the upstream. Reads after the TTL refetch; if
// the refetch fails the previous snapshot is served, and if there is none the
// configured empty value is returned instead of an error.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Observer receives hit and miss events. *middleware.ProviderMetrics implements it.
type Observer interface {
	RecordCacheHit(provider, operation string)
	RecordCacheMiss(provider, operation string)
}

type nopObserver struct{}

func (nopObserver) RecordCacheHit(string, string)  {}
func (nopObserver) RecordCacheMiss(string, string) {}

// FetchFunc loads a fresh value from the upstream.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Config holds configuration for a Cache.
type Config[T any] struct {
	// Name identifies the cache in logs and stats.
	Name string

	// TTL is how long a stored value is served without refetching.
	TTL time.Duration

	// Fetch loads a fresh value (required).
	Fetch FetchFunc[T]

	// Empty returns the value served when a fetch fails and nothing is cached.
	// If nil, the zero value of T is served.
	Empty func() T

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// Logger for fetch failures.
	Logger zerolog.Logger

	// Provider names the upstream for Observer events.
	Provider string

	// Observer is notified of hits and misses. Optional.
	Observer Observer
}

// Cache is a single-slot time-bounded cache.
type Cache[T any] struct {
	name     string
	ttl      time.Duration
	fetch    FetchFunc[T]
	empty    func() T
	clock    func() time.Time
	logger   zerolog.Logger
	provider string
	observer Observer

	mu    sync.Mutex
	entry *entry[T]
}

type entry[T any] struct {
	value    T
	storedAt time.Time
}

func (e *entry[T]) fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.storedAt) < ttl
}

// New creates a new Cache.
func New[T any](cfg Config[T]) *Cache[T] {
	return &Cache[T]{
		name:     cfg.Name,
		ttl:      cfg.TTL,
		fetch:    cfg.Fetch,
		empty:    emptyOrZero(cfg.Empty),
		clock:    clockOrNow(cfg.Clock),
		logger:   cfg.Logger,
		provider: cfg.Provider,
		observer: observerOrNop(cfg.Observer),
	}
}

// Get returns the cached value if it is younger than the TTL, otherwise fetches.
// It never fails: fetch errors degrade to the stale value or the empty value.
func (c *Cache[T]) Get(ctx context.Context) T {
	c.mu.Lock()
	if c.entry != nil && c.entry.fresh(c.clock(), c.ttl) {
		v := c.entry.value
		c.mu.Unlock()
		c.observer.RecordCacheHit(c.provider, c.name)
		return v
	}
	c.mu.Unlock()
	c.observer.RecordCacheMiss(c.provider, c.name)

	// The fetch runs without the lock; concurrent misses may both fetch and the
	// last one to finish wins.
	value, err := c.fetch(ctx)
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.entry != nil {
			c.logger.Warn().Err(err).
				Str("cache", c.name).
				Time("stored_at", c.entry.storedAt).
				Msg("serving stale data after fetch failure")
			return c.entry.value
		}
		c.logger.Error().Err(err).
			Str("cache", c.name).
			Msg("fetch failed with nothing cached")
		return c.empty()
	}

	c.mu.Lock()
	c.entry = &entry[T]{value: value, storedAt: c.clock()}
	c.mu.Unlock()

	return value
}

// Invalidate drops the cached value.
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = nil
}

// Stats returns a snapshot of the cache state.
func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{Name: c.name, TTL: c.ttl}
	if c.entry != nil {
		stats.Entries = 1
		stats.Fresh = boolToInt(c.entry.fresh(c.clock(), c.ttl))
		stats.OldestStoredAt = c.entry.storedAt
	}
	return stats
}

// Stats contains cache statistics.
type Stats struct {
	Name           string        `json:"name"`
	TTL            time.Duration `json:"ttl"`
	Entries        int           `json:"entries"`
	Fresh          int           `json:"fresh"`
	OldestStoredAt time.Time     `json:"oldestStoredAt,omitempty"`
}

func emptyOrZero[T any](fn func() T) func() T {
	if fn != nil {
		return fn
	}
	return func() T {
		var zero T
		return zero
	}
}

func observerOrNop(o Observer) Observer {
	if o != nil {
		return o
	}
	return nopObserver{}
}

func clockOrNow(fn func() time.Time) func() time.Time {
	if fn != nil {
		return fn
	}
	return time.Now
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
