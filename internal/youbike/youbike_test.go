package youbike_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntugo/ntugo/internal/youbike"
)

const feedFixture = `[
	{"sno":"500101001","sna":"YouBike2.0_捷運科技大樓站","Quantity":"28","available_rent_bikes":"5","available_return_bikes":"23","latitude":"25.02605","longitude":"121.5436","act":"1","ar":"復興南路二段235號前","sarea":"大安區","mday":"2025-03-01 08:00:15"},
	{"sno":500119001,"sna":"YouBike2.0_臺大總圖書館西南側","tot":40,"sbi":12,"bemp":28,"lat":25.01619,"lng":121.54042,"act":"1","updateTime":"2025-03-01 08:01:00"},
	{"sno":"500119002","sna":"YouBike2.0_broken","latitude":"0","longitude":"121.5"},
	{"sno":"500119003","sna":"YouBike2.0_garbage","latitude":"abc","longitude":"121.5"},
	{"sno":"500119004","sna":"YouBike2.0_missing"}
]`

func newFeedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_Stations_NormalisesBothVocabularies(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, feedFixture)
	client := youbike.NewClient(youbike.ClientConfig{FeedURL: server.URL, Logger: zerolog.Nop()})

	stations, err := client.Stations(context.Background())
	require.NoError(t, err)
	require.Len(t, stations, 2)

	first := stations[0]
	assert.Equal(t, "500101001", first.SNO)
	assert.Equal(t, 28, first.Tot)
	assert.Equal(t, 5, first.SBI)
	assert.Equal(t, 23, first.BEmp)
	assert.InDelta(t, 25.02605, first.Lat, 1e-9)
	assert.Equal(t, "大安區", first.SArea)
	assert.Equal(t, "2025-03-01 08:00:15", first.MDay)
	assert.True(t, first.Active())

	second := stations[1]
	assert.Equal(t, "500119001", second.SNO)
	assert.Equal(t, 40, second.Tot)
	assert.Equal(t, 12, second.SBI)
	assert.Equal(t, "2025-03-01 08:01:00", second.MDay)
}

func TestClient_Stations_DefaultsActToInactive(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, `[{"sna":"x","lat":25.1,"lng":121.5}]`)
	client := youbike.NewClient(youbike.ClientConfig{FeedURL: server.URL})

	stations, err := client.Stations(context.Background())
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, "0", stations[0].Act)
	assert.False(t, stations[0].Active())
}

func TestClient_Stations_NonArrayBody(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, `{"success":true,"result":{}}`)
	client := youbike.NewClient(youbike.ClientConfig{FeedURL: server.URL})

	stations, err := client.Stations(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, stations)
	assert.Empty(t, stations)
}

func TestClient_Stations_HTTPError(t *testing.T) {
	server := newFeedServer(t, http.StatusNotFound, `not found`)
	client := youbike.NewClient(youbike.ClientConfig{FeedURL: server.URL})

	_, err := client.Stations(context.Background())
	assert.Error(t, err)
}

// mockProvider returns a fixed station list and counts calls.
type mockProvider struct {
	mu       sync.Mutex
	calls    int
	stations []youbike.Station
	err      error
}

func (m *mockProvider) Stations(context.Context) ([]youbike.Station, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.stations, nil
}

func newTestService(p *mockProvider, now *time.Time) *youbike.Service {
	return youbike.NewService(youbike.ServiceConfig{
		Provider: p,
		Clock:    func() time.Time { return *now },
		Logger:   zerolog.Nop(),
	})
}

func campusStations() []youbike.Station {
	return []youbike.Station{
		{SNO: "1", SNA: "NTU Main Gate", Lat: 25.02, Lng: 121.54, Act: "1"},
		{SNO: "2", SNA: "臺大總圖書館西南側", Lat: 25.0162, Lng: 121.5404, Act: "1"},
	}
}

func TestService_FindNearest(t *testing.T) {
	p := &mockProvider{stations: []youbike.Station{{SNA: "NTU Main Gate", Lat: 25.02, Lng: 121.54}}}
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(p, &now)
	ctx := context.Background()

	got, ok := svc.FindNearest(ctx, 25.02, 121.5401, 0.01)
	require.True(t, ok)
	assert.Equal(t, "NTU Main Gate", got.SNA)

	_, ok = svc.FindNearest(ctx, 25.02, 121.5401, 0.0001)
	assert.False(t, ok)

	_, ok = svc.FindNearest(ctx, 25.02, 121.5401, 0)
	assert.True(t, ok, "non-positive radius uses the default")
}

func TestService_FindByName(t *testing.T) {
	p := &mockProvider{stations: campusStations()}
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(p, &now)

	got, ok := svc.FindByName(context.Background(), "Main Gate")
	require.True(t, ok)
	assert.Equal(t, "1", got.SNO)

	got, ok = svc.FindByName(context.Background(), "YouBike2.0_臺大總圖書館西南側")
	require.True(t, ok)
	assert.Equal(t, "2", got.SNO)

	_, ok = svc.FindByName(context.Background(), "公館")
	assert.False(t, ok)
}

func TestService_CachesAndDegrades(t *testing.T) {
	p := &mockProvider{stations: campusStations()}
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(p, &now)
	ctx := context.Background()

	svc.Stations(ctx)
	now = now.Add(30 * time.Second)
	svc.FindByName(ctx, "Main Gate")
	assert.Equal(t, 1, p.calls)

	p.err = errors.New("feed unavailable")
	now = now.Add(time.Minute)
	assert.Len(t, svc.Stations(ctx), 2)
	assert.Equal(t, 2, p.calls)

	svc.InvalidateCache()
	stations := svc.Stations(ctx)
	require.NotNil(t, stations)
	assert.Empty(t, stations)
	assert.Equal(t, 0, svc.CacheStats().Entries)
}
