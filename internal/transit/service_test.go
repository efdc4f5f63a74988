package transit_test

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

	"github.com/ntugo/ntugo/internal/tdx"
	"github.com/ntugo/ntugo/internal/transit"
)

// mockProvider is a mock bus data provider for testing.
type mockProvider struct {
	mu           sync.Mutex
	stopCalls    int
	arrivalCalls map[string]int
	lastQuery    transit.StopQuery
	stops        []tdx.BusStop
	arrivals     map[string][]tdx.Arrival
	err          error
}

func newMockProvider() *mockProvider {
	eta := 180
	return &mockProvider{
		arrivalCalls: map[string]int{},
		stops: []tdx.BusStop{
			{StopUID: "TPE1", StopName: tdx.LocalizedName{ZhTw: "臺大"}, StopPosition: tdx.StopPosition{PositionLat: 25.0173, PositionLon: 121.5397}},
			{StopUID: "TPE2", StopName: tdx.LocalizedName{ZhTw: "公館"}, StopPosition: tdx.StopPosition{PositionLat: 25.0147, PositionLon: 121.5343}},
			{StopUID: "TPE3", StopName: tdx.LocalizedName{ZhTw: "台電大樓"}, StopPosition: tdx.StopPosition{PositionLat: 25.0206, PositionLon: 121.5283}},
		},
		arrivals: map[string][]tdx.Arrival{
			"TPE1": {{StopUID: "TPE1", RouteUID: "TPE10723", EstimateTime: &eta}},
		},
	}
}

func (m *mockProvider) Name() string {
	return "mock"
}

func (m *mockProvider) BusStopsNearby(_ context.Context, lat, lon float64, radius int) ([]tdx.BusStop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	m.lastQuery = transit.StopQuery{Lat: lat, Lon: lon, RadiusMeters: radius}
	if m.err != nil {
		return nil, m.err
	}
	return m.stops, nil
}

func (m *mockProvider) EstimatedArrivals(_ context.Context, stopUID string) ([]tdx.Arrival, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.arrivalCalls[stopUID]++
	if m.err != nil {
		return nil, m.err
	}
	return m.arrivals[stopUID], nil
}

func (m *mockProvider) setError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func newTestService(provider *mockProvider, now *time.Time) *transit.Service {
	return transit.NewService(transit.ServiceConfig{
		Provider: provider,
		Clock:    func() time.Time { return *now },
		Logger:   zerolog.Nop(),
	})
}

func TestService_BusStops_DefaultsToCampus(t *testing.T) {
	provider := newMockProvider()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(provider, &now)

	stops := svc.BusStops(context.Background(), transit.StopQuery{})

	assert.Len(t, stops, 3)
	assert.Equal(t, transit.StopQuery{Lat: 25.0173, Lon: 121.5398, RadiusMeters: 1000}, provider.lastQuery)
}

func TestStopQuery_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   transit.StopQuery
		want transit.StopQuery
	}{
		{"zero value", transit.StopQuery{}, transit.StopQuery{Lat: 25.0173, Lon: 121.5398, RadiusMeters: 1000}},
		{"NaN latitude", transit.StopQuery{Lat: math.NaN(), Lon: 121.5, RadiusMeters: 300}, transit.StopQuery{Lat: 25.0173, Lon: 121.5398, RadiusMeters: 300}},
		{"infinite longitude", transit.StopQuery{Lat: 25.04, Lon: math.Inf(1)}, transit.StopQuery{Lat: 25.0173, Lon: 121.5398, RadiusMeters: 1000}},
		{"negative radius", transit.StopQuery{Lat: 25.04, Lon: 121.51, RadiusMeters: -5}, transit.StopQuery{Lat: 25.04, Lon: 121.51, RadiusMeters: 1000}},
		{"radius capped", transit.StopQuery{Lat: 25.04, Lon: 121.51, RadiusMeters: 1e6}, transit.StopQuery{Lat: 25.04, Lon: 121.51, RadiusMeters: 5000}},
		{"rounded", transit.StopQuery{Lat: 25.017349, Lon: 121.539751, RadiusMeters: 500}, transit.StopQuery{Lat: 25.0173, Lon: 121.5398, RadiusMeters: 500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, got.Normalize())
		})
	}
}

func TestService_BusStops_NonFiniteAndNearbyQueriesShareCache(t *testing.T) {
	provider := newMockProvider()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(provider, &now)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		svc.BusStops(ctx, transit.StopQuery{Lat: math.NaN(), Lon: 121.54})
	}
	assert.Equal(t, 1, provider.stopCalls)

	for i := 0; i < 100; i++ {
		svc.BusStops(ctx, transit.StopQuery{Lat: 25.02 + float64(i)*1e-7, Lon: 121.54})
	}
	assert.Equal(t, 2, provider.stopCalls)
	assert.Equal(t, 2, svc.CacheStats()[0].Entries)
}

func TestService_BusStops_CachedFor60Seconds(t *testing.T) {
	provider := newMockProvider()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(provider, &now)
	ctx := context.Background()

	svc.BusStops(ctx, transit.StopQuery{})
	now = now.Add(59 * time.Second)
	svc.BusStops(ctx, transit.DefaultStopQuery())
	assert.Equal(t, 1, provider.stopCalls)

	now = now.Add(time.Second)
	svc.BusStops(ctx, transit.StopQuery{})
	assert.Equal(t, 2, provider.stopCalls)
}

func TestService_BusStops_StaleThenEmpty(t *testing.T) {
	provider := newMockProvider()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(provider, &now)
	ctx := context.Background()

	svc.BusStops(ctx, transit.StopQuery{})
	provider.setError(tdx.ErrRateLimited)
	now = now.Add(5 * time.Minute)

	assert.Len(t, svc.BusStops(ctx, transit.StopQuery{}), 3)

	other := svc.BusStops(ctx, transit.StopQuery{Lat: 25.04, Lon: 121.51, RadiusMeters: 300})
	require.NotNil(t, other)
	assert.Empty(t, other)
}

func TestService_NearbyStops(t *testing.T) {
	provider := newMockProvider()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(provider, &now)

	stops := svc.NearbyStops(context.Background(), transit.StopQuery{}, 25.0173405, 121.5397518, 0.007)

	require.Len(t, stops, 2)
	assert.Equal(t, "TPE1", stops[0].StopUID)
	assert.Equal(t, "TPE2", stops[1].StopUID)
}

func TestService_Arrivals_CachedFor30Seconds(t *testing.T) {
	provider := newMockProvider()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(provider, &now)
	ctx := context.Background()

	arrivals := svc.Arrivals(ctx, "TPE1")
	require.Len(t, arrivals, 1)

	now = now.Add(29 * time.Second)
	svc.Arrivals(ctx, "TPE1")
	assert.Equal(t, 1, provider.arrivalCalls["TPE1"])

	now = now.Add(time.Second)
	svc.Arrivals(ctx, "TPE1")
	assert.Equal(t, 2, provider.arrivalCalls["TPE1"])
}

func TestService_Arrivals_ErrorWithoutCache(t *testing.T) {
	provider := newMockProvider()
	provider.setError(errors.New("connection refused"))
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(provider, &now)

	arrivals := svc.Arrivals(context.Background(), "TPE1")
	require.NotNil(t, arrivals)
	assert.Empty(t, arrivals)

	assert.Empty(t, svc.Arrivals(context.Background(), ""))
	assert.Zero(t, provider.arrivalCalls[""])
}

func TestService_InvalidateCache(t *testing.T) {
	provider := newMockProvider()
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(provider, &now)
	ctx := context.Background()

	svc.BusStops(ctx, transit.StopQuery{})
	svc.Arrivals(ctx, "TPE1")
	svc.InvalidateCache()
	svc.BusStops(ctx, transit.StopQuery{})
	svc.Arrivals(ctx, "TPE1")

	assert.Equal(t, 2, provider.stopCalls)
	assert.Equal(t, 2, provider.arrivalCalls["TPE1"])

	stats := svc.CacheStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "bus-stops", stats[0].Name)
	assert.Equal(t, 1, stats[0].Entries)
}
