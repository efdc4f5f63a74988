package youbike

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ntugo/ntugo/internal/cache"
	"github.com/ntugo/ntugo/internal/geo"
)

const (
	// DefaultTTL is how long a feed snapshot stays fresh.
	DefaultTTL = 60 * time.Second

	// DefaultMaxDistance is the nearest-station radius in degrees (roughly 1 km).
	DefaultMaxDistance = 0.01
)

// Provider fetches station snapshots. Implemented by *Client.
type Provider interface {
	Stations(ctx context.Context) ([]Station, error)
}

// ServiceConfig holds configuration for the YouBike service.
type ServiceConfig struct {
	Provider Provider
	TTL      time.Duration
	Clock    func() time.Time
	Logger   zerolog.Logger

	// Metrics receives cache hit and miss events. Optional.
	Metrics cache.Observer
}

// Service serves cached station data.
type Service struct {
	stations *cache.Cache[[]Station]
	logger   zerolog.Logger
}

// NewService creates a new YouBike service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	provider := cfg.Provider
	return &Service{
		stations: cache.New(cache.Config[[]Station]{
			Name:     "youbike",
			TTL:      ttl,
			Fetch:    provider.Stations,
			Empty:    func() []Station { return []Station{} },
			Clock:    cfg.Clock,
			Logger:   cfg.Logger,
			Provider: ProviderName,
			Observer: cfg.Metrics,
		}),
		logger: cfg.Logger,
	}
}

// Stations returns the current snapshot. It never fails; see cache.Cache.Get.
func (s *Service) Stations(ctx context.Context) []Station {
	return s.stations.Get(ctx)
}

// FindByName returns the first station whose name contains name or is contained in it.
func (s *Service) FindByName(ctx context.Context, name string) (Station, bool) {
	return geo.FindByName(s.Stations(ctx), name, Station.Name)
}

// FindNearest returns the closest station within maxDistance degrees of
// (lat, lng). A non-positive maxDistance uses DefaultMaxDistance.
func (s *Service) FindNearest(ctx context.Context, lat, lng, maxDistance float64) (Station, bool) {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	return geo.FindByLocation(s.Stations(ctx), lat, lng, maxDistance, Station.Position)
}

// InvalidateCache drops the cached snapshot.
func (s *Service) InvalidateCache() {
	s.stations.Invalidate()
	s.logger.Info().Msg("youbike cache cleared")
}

// CacheStats returns the state of the station cache.
func (s *Service) CacheStats() cache.Stats {
	return s.stations.Stats()
}
