package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ntugo/ntugo/internal/geo"
)

type station struct {
	name string
	lat  float64
	lng  float64
}

func nameOf(s station) string { return s.name }

func posOf(s station) geo.Position { return geo.Position{Lat: s.lat, Lng: s.lng} }

func TestFindByLocation_WithinRadius(t *testing.T) {
	stations := []station{{name: "Main Gate", lat: 25.02, lng: 121.54}}

	got, ok := geo.FindByLocation(stations, 25.02, 121.5401, 0.01, posOf)
	require.True(t, ok)
	assert.Equal(t, "Main Gate", got.name)
}

func TestFindByLocation_OutsideRadius(t *testing.T) {
	stations := []station{{name: "Main Gate", lat: 25.02, lng: 121.54}}

	_, ok := geo.FindByLocation(stations, 25.02, 121.5401, 0.0001, posOf)
	assert.False(t, ok)
}

func TestFindByLocation_PicksNearest(t *testing.T) {
	stations := []station{
		{name: "far", lat: 25.0200, lng: 121.5400},
		{name: "near", lat: 25.0173, lng: 121.5397},
		{name: "nearer-but-later", lat: 25.0174, lng: 121.5398},
	}

	got, ok := geo.FindByLocation(stations, 25.0174, 121.5398, 0.01, posOf)
	require.True(t, ok)
	assert.Equal(t, "nearer-but-later", got.name)
}

func TestFindByLocation_TieKeepsFirst(t *testing.T) {
	stations := []station{
		{name: "first", lat: 25.01, lng: 121.54},
		{name: "second", lat: 25.03, lng: 121.54},
	}

	got, ok := geo.FindByLocation(stations, 25.02, 121.54, 0.05, posOf)
	require.True(t, ok)
	assert.Equal(t, "first", got.name)
}

func TestFindByLocation_EmptyAndNonPositiveRadius(t *testing.T) {
	_, ok := geo.FindByLocation([]station{}, 25.02, 121.54, 0.01, posOf)
	assert.False(t, ok)

	_, ok = geo.FindByLocation([]station{{lat: 25.02, lng: 121.54}}, 25.02, 121.54, 0, posOf)
	assert.False(t, ok)
}

func TestFindByName_Bidirectional(t *testing.T) {
	stations := []station{{name: "NTU Main Gate"}}

	got, ok := geo.FindByName(stations, "Main Gate", nameOf)
	require.True(t, ok)
	assert.Equal(t, "NTU Main Gate", got.name)

	got, ok = geo.FindByName(stations, "YouBike2.0_NTU Main Gate (Roosevelt Rd.)", nameOf)
	require.True(t, ok)
	assert.Equal(t, "NTU Main Gate", got.name)
}

func TestFindByName_FirstWinsAndCaseSensitive(t *testing.T) {
	stations := []station{
		{name: "臺大總圖書館西南側"},
		{name: "臺大總圖書館東側"},
	}

	got, ok := geo.FindByName(stations, "總圖書館", nameOf)
	require.True(t, ok)
	assert.Equal(t, "臺大總圖書館西南側", got.name)

	_, ok = geo.FindByName([]station{{name: "NTU Main Gate"}}, "main gate", nameOf)
	assert.False(t, ok)
}

func TestFindByName_EmptyNeverMatches(t *testing.T) {
	_, ok := geo.FindByName([]station{{name: "Main Gate"}}, "", nameOf)
	assert.False(t, ok)

	_, ok = geo.FindByName([]station{{name: ""}}, "Main Gate", nameOf)
	assert.False(t, ok)
}

func TestWithinDistance(t *testing.T) {
	stops := []station{
		{name: "a", lat: 25.0173, lng: 121.5397},
		{name: "b", lat: 25.0500, lng: 121.5397},
		{name: "c", lat: 25.0180, lng: 121.5400},
	}

	got := geo.WithinDistance(stops, 25.0173405, 121.5397518, 0.01, posOf)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].name)
	assert.Equal(t, "c", got[1].name)

	assert.Empty(t, geo.WithinDistance(stops, 0, 0, 0.01, posOf))
}

func TestSquaredDistance(t *testing.T) {
	d := geo.SquaredDistance(geo.Position{Lat: 0, Lng: 0}, geo.Position{Lat: 3, Lng: 4})
	assert.InDelta(t, 25.0, d, 1e-12)
}
