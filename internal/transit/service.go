// Package transit serves bus stops and arrival estimates from TDX through
// time-bounded caches. Lookups never fail: upstream errors degrade to the
// last good data or to an empty list.
package transit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ntugo/ntugo/internal/cache"
	"github.com/ntugo/ntugo/internal/geo"
	"github.com/ntugo/ntugo/internal/tdx"
)

// Default cache lifetimes.
const (
	DefaultStopsTTL    = 60 * time.Second
	DefaultArrivalsTTL = 30 * time.Second
)

// Provider fetches bus data. Implemented by *tdx.Client.
type Provider interface {
	BusStopsNearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]tdx.BusStop, error)
	EstimatedArrivals(ctx context.Context, stopUID string) ([]tdx.Arrival, error)
	Name() string
}

// ServiceConfig holds configuration for the transit service.
type ServiceConfig struct {
	// Provider is the bus data provider.
	Provider Provider

	// StopsTTL is how long a stop set stays fresh (default: 60 seconds).
	StopsTTL time.Duration

	// ArrivalsTTL is how long per-stop estimates stay fresh (default: 30 seconds).
	ArrivalsTTL time.Duration

	// Clock defaults to time.Now.
	Clock func() time.Time

	Logger zerolog.Logger

	// Metrics receives cache hit and miss events. Optional.
	Metrics cache.Observer
}

// Service provides cached bus data.
type Service struct {
	provider Provider
	stops    *cache.Keyed[StopQuery, []tdx.BusStop]
	arrivals *cache.Keyed[string, []tdx.Arrival]
	logger   zerolog.Logger
}

// NewService creates a new transit service.
func NewService(cfg ServiceConfig) *Service {
	stopsTTL := cfg.StopsTTL
	if stopsTTL == 0 {
		stopsTTL = DefaultStopsTTL
	}
	arrivalsTTL := cfg.ArrivalsTTL
	if arrivalsTTL == 0 {
		arrivalsTTL = DefaultArrivalsTTL
	}

	s := &Service{provider: cfg.Provider, logger: cfg.Logger}

	s.stops = cache.NewKeyed(cache.KeyedConfig[StopQuery, []tdx.BusStop]{
		Name: "bus-stops",
		TTL:  stopsTTL,
		Fetch: func(ctx context.Context, q StopQuery) ([]tdx.BusStop, error) {
			return s.provider.BusStopsNearby(ctx, q.Lat, q.Lon, q.RadiusMeters)
		},
		Empty:    func() []tdx.BusStop { return []tdx.BusStop{} },
		Clock:    cfg.Clock,
		Logger:   cfg.Logger,
		Provider: tdx.ProviderName,
		Observer: cfg.Metrics,
	})

	s.arrivals = cache.NewKeyed(cache.KeyedConfig[string, []tdx.Arrival]{
		Name: "bus-arrivals",
		TTL:  arrivalsTTL,
		Fetch: func(ctx context.Context, stopUID string) ([]tdx.Arrival, error) {
			return s.provider.EstimatedArrivals(ctx, stopUID)
		},
		Empty:    func() []tdx.Arrival { return []tdx.Arrival{} },
		Clock:    cfg.Clock,
		Logger:   cfg.Logger,
		Provider: tdx.ProviderName,
		Observer: cfg.Metrics,
	})

	return s
}

// BusStops returns the stops matching q, defaulting to the stops around campus.
// The query is normalized first, so the cache is keyed by rounded points.
func (s *Service) BusStops(ctx context.Context, q StopQuery) []tdx.BusStop {
	return s.stops.Get(ctx, q.Normalize())
}

// NearbyStops returns the stops of q that lie within maxDistance degrees of (lat, lon).
func (s *Service) NearbyStops(ctx context.Context, q StopQuery, lat, lon, maxDistance float64) []tdx.BusStop {
	return geo.WithinDistance(s.BusStops(ctx, q), lat, lon, maxDistance, tdx.BusStop.Position)
}

// Arrivals returns arrival estimates for a stop. An empty stopUID yields an empty list.
func (s *Service) Arrivals(ctx context.Context, stopUID string) []tdx.Arrival {
	if stopUID == "" {
		return []tdx.Arrival{}
	}
	return s.arrivals.Get(ctx, stopUID)
}

// InvalidateCache drops every cached stop set and estimate.
func (s *Service) InvalidateCache() {
	s.stops.Clear()
	s.arrivals.Clear()
	s.logger.Info().Msg("transit caches cleared")
}

// CacheStats returns the state of the stop and arrival caches.
func (s *Service) CacheStats() []cache.Stats {
	return []cache.Stats{s.stops.Stats(), s.arrivals.Stats()}
}
