package cache_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntugo/ntugo/internal/cache"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingFetcher returns successive values and can be told to fail.
type countingFetcher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *countingFetcher) fetch(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []string{"snapshot", string(rune('0' + f.calls))}, nil
}

func (f *countingFetcher) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *countingFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestCache(f *countingFetcher, clock *fakeClock) *cache.Cache[[]string] {
	return cache.New(cache.Config[[]string]{
		Name:   "test",
		TTL:    60 * time.Second,
		Fetch:  f.fetch,
		Empty:  func() []string { return []string{} },
		Clock:  clock.Now,
		Logger: zerolog.Nop(),
	})
}

func TestCache_WithinTTL_DoesNotRefetch(t *testing.T) {
	f := &countingFetcher{}
	clock := newFakeClock()
	c := newTestCache(f, clock)

	first := c.Get(context.Background())
	clock.Advance(59 * time.Second)
	second := c.Get(context.Background())

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.callCount())
}

func TestCache_AfterTTL_Refetches(t *testing.T) {
	f := &countingFetcher{}
	clock := newFakeClock()
	c := newTestCache(f, clock)

	first := c.Get(context.Background())
	clock.Advance(60 * time.Second)
	second := c.Get(context.Background())

	assert.Equal(t, 2, f.callCount())
	assert.NotEqual(t, first, second)
}

func TestCache_FetchError_ServesStale(t *testing.T) {
	f := &countingFetcher{}
	clock := newFakeClock()
	c := newTestCache(f, clock)

	first := c.Get(context.Background())
	require.NotEmpty(t, first)

	f.setError(errors.New("upstream down"))
	clock.Advance(5 * time.Minute)

	got := c.Get(context.Background())
	assert.Equal(t, first, got)
	assert.Equal(t, 2, f.callCount())
}

func TestCache_FetchError_NothingCached_ReturnsEmpty(t *testing.T) {
	f := &countingFetcher{err: errors.New("upstream down")}
	c := newTestCache(f, newFakeClock())

	got := c.Get(context.Background())
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCache_FetchError_NoEmptyFunc_ReturnsZero(t *testing.T) {
	c := cache.New(cache.Config[*int]{
		Name:  "zero",
		TTL:   time.Second,
		Fetch: func(context.Context) (*int, error) { return nil, errors.New("boom") },
	})

	assert.Nil(t, c.Get(context.Background()))
}

func TestCache_Invalidate(t *testing.T) {
	f := &countingFetcher{}
	c := newTestCache(f, newFakeClock())

	c.Get(context.Background())
	c.Invalidate()
	c.Get(context.Background())

	assert.Equal(t, 2, f.callCount())
}

func TestCache_Stats(t *testing.T) {
	f := &countingFetcher{}
	clock := newFakeClock()
	c := newTestCache(f, clock)

	stats := c.Stats()
	assert.Equal(t, "test", stats.Name)
	assert.Equal(t, 0, stats.Entries)

	c.Get(context.Background())
	stats = c.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 1, stats.Fresh)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 0, c.Stats().Fresh)
}

func TestKeyed_PerKeyTTL(t *testing.T) {
	clock := newFakeClock()
	calls := map[string]int{}
	var mu sync.Mutex

	c := cache.NewKeyed(cache.KeyedConfig[string, int]{
		Name: "arrivals",
		TTL:  30 * time.Second,
		Fetch: func(_ context.Context, key string) (int, error) {
			mu.Lock()
			defer mu.Unlock()
			calls[key]++
			return calls[key], nil
		},
		Clock:  clock.Now,
		Logger: zerolog.Nop(),
	})

	ctx := context.Background()
	assert.Equal(t, 1, c.Get(ctx, "TPE1"))
	assert.Equal(t, 1, c.Get(ctx, "TPE2"))

	clock.Advance(29 * time.Second)
	assert.Equal(t, 1, c.Get(ctx, "TPE1"))

	clock.Advance(time.Second)
	assert.Equal(t, 2, c.Get(ctx, "TPE1"))
	assert.Equal(t, 2, c.Get(ctx, "TPE2"))
}

func TestKeyed_FetchError_StaleThenEmpty(t *testing.T) {
	clock := newFakeClock()
	fail := false

	c := cache.NewKeyed(cache.KeyedConfig[string, []int]{
		Name: "arrivals",
		TTL:  30 * time.Second,
		Fetch: func(_ context.Context, key string) ([]int, error) {
			if fail {
				return nil, errors.New("rate limited")
			}
			return []int{len(key)}, nil
		},
		Empty:  func() []int { return []int{} },
		Clock:  clock.Now,
		Logger: zerolog.Nop(),
	})

	ctx := context.Background()
	assert.Equal(t, []int{4}, c.Get(ctx, "TPE1"))

	fail = true
	clock.Advance(time.Minute)

	assert.Equal(t, []int{4}, c.Get(ctx, "TPE1"))
	assert.Equal(t, []int{}, c.Get(ctx, "other"))
}

func TestKeyed_InvalidateAndClear(t *testing.T) {
	calls := 0
	c := cache.NewKeyed(cache.KeyedConfig[string, int]{
		TTL: time.Hour,
		Fetch: func(context.Context, string) (int, error) {
			calls++
			return calls, nil
		},
	})

	ctx := context.Background()
	c.Get(ctx, "a")
	c.Get(ctx, "b")
	assert.Equal(t, 2, c.Stats().Entries)

	c.Invalidate("a")
	assert.Equal(t, 1, c.Stats().Entries)

	c.Clear()
	assert.Equal(t, 0, c.Stats().Entries)
	c.Get(ctx, "a")
	assert.Equal(t, 3, calls)
}

func TestKeyed_CapsEntries(t *testing.T) {
	clock := newFakeClock()
	calls := 0
	c := cache.NewKeyed(cache.KeyedConfig[float64, int]{
		TTL: time.Minute,
		Fetch: func(context.Context, float64) (int, error) {
			calls++
			return calls, nil
		},
		Clock:      clock.Now,
		MaxEntries: 3,
	})

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		c.Get(ctx, float64(i))
		clock.Advance(time.Second)
	}
	assert.Equal(t, 3, c.Stats().Entries)

	// the newest keys survive eviction
	assert.Equal(t, 10, c.Get(ctx, 9))
	assert.Equal(t, 10, calls)
	assert.Equal(t, 11, c.Get(ctx, 0))
}

func TestKeyed_NaNKeysStayBounded(t *testing.T) {
	c := cache.NewKeyed(cache.KeyedConfig[float64, int]{
		TTL:        time.Minute,
		Fetch:      func(context.Context, float64) (int, error) { return 1, nil },
		MaxEntries: 5,
	})

	for i := 0; i < 100; i++ {
		c.Get(context.Background(), math.NaN())
	}
	assert.Equal(t, 5, c.Stats().Entries)
}

func TestKeyed_PrunesEntriesPastRetention(t *testing.T) {
	clock := newFakeClock()
	fail := false
	c := cache.NewKeyed(cache.KeyedConfig[string, string]{
		TTL:       30 * time.Second,
		Retention: time.Minute,
		Fetch: func(_ context.Context, key string) (string, error) {
			if fail {
				return "", errors.New("upstream down")
			}
			return key, nil
		},
		Empty: func() string { return "empty" },
		Clock: clock.Now,
	})

	ctx := context.Background()
	c.Get(ctx, "old")
	clock.Advance(45 * time.Second)
	c.Get(ctx, "recent")
	assert.Equal(t, 2, c.Stats().Entries, "expired entries inside retention are kept")

	clock.Advance(50 * time.Second)
	c.Get(ctx, "new")
	assert.Equal(t, 2, c.Stats().Entries, "entries past TTL plus retention are pruned")

	fail = true
	assert.Equal(t, "recent", c.Get(ctx, "recent"), "stale fallback still served")
	assert.Equal(t, "empty", c.Get(ctx, "old"))
}

type recordingObserver struct {
	mu     sync.Mutex
	hits   []string
	misses []string
}

func (o *recordingObserver) RecordCacheHit(provider, operation string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hits = append(o.hits, provider+"/"+operation)
}

func (o *recordingObserver) RecordCacheMiss(provider, operation string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.misses = append(o.misses, provider+"/"+operation)
}

func TestCache_ReportsHitsAndMisses(t *testing.T) {
	f := &countingFetcher{}
	clock := newFakeClock()
	obs := &recordingObserver{}
	c := cache.New(cache.Config[[]string]{
		Name:     "youbike-stations",
		TTL:      time.Minute,
		Fetch:    f.fetch,
		Clock:    clock.Now,
		Provider: "youbike",
		Observer: obs,
	})

	c.Get(context.Background())
	c.Get(context.Background())
	clock.Advance(time.Minute)
	c.Get(context.Background())

	assert.Equal(t, []string{"youbike/youbike-stations"}, obs.hits)
	assert.Len(t, obs.misses, 2)
}

func TestKeyed_ReportsHitsAndMisses(t *testing.T) {
	obs := &recordingObserver{}
	c := cache.NewKeyed(cache.KeyedConfig[string, int]{
		Name:     "bus-arrivals",
		TTL:      time.Minute,
		Fetch:    func(context.Context, string) (int, error) { return 1, nil },
		Provider: "tdx",
		Observer: obs,
	})

	c.Get(context.Background(), "TPE1")
	c.Get(context.Background(), "TPE1")
	c.Get(context.Background(), "TPE2")

	assert.Len(t, obs.hits, 1)
	assert.Equal(t, []string{"tdx/bus-arrivals", "tdx/bus-arrivals"}, obs.misses)
}
