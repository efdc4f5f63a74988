// Package geo provides the station lookups used by the map: substring name
// matching and nearest-point search in degree space.
//
// Distances are squared Euclidean distances between (lat, lng) pairs measured
// in degrees. This is not a geodesic distance; it is only meaningful for the
// small search radii used around campus.
package geo

import "strings"

// BoundaryTolerance is the band, in degrees, just inside maxDistance that is
// still treated as outside the search radius. Feed coordinates carry at most
// six or seven decimals, so this only absorbs floating point noise.
const BoundaryTolerance = 1e-9

// Position is a latitude/longitude pair in degrees.
type Position struct {
	Lat float64
	Lng float64
}

// SquaredDistance returns the squared degree-space distance between a and b.
func SquaredDistance(a, b Position) float64 {
	dLat := a.Lat - b.Lat
	dLng := a.Lng - b.Lng
	return dLat*dLat + dLng*dLng
}

// FindByName returns the first item whose name contains query or is contained
// by query. Matching is case-sensitive. Empty names and queries never match.
func FindByName[T any](items []T, query string, nameOf func(T) string) (T, bool) {
	var zero T
	if query == "" {
		return zero, false
	}

	for _, item := range items {
		name := nameOf(item)
		if name == "" {
			continue
		}
		if strings.Contains(name, query) || strings.Contains(query, name) {
			return item, true
		}
	}

	return zero, false
}

// FindByLocation returns the item closest to (lat, lng) if it lies within
// maxDistance degrees. Ties keep the earlier item.
func FindByLocation[T any](items []T, lat, lng, maxDistance float64, posOf func(T) Position) (T, bool) {
	var (
		zero  T
		best  T
		found bool
	)

	limit, ok := squaredLimit(maxDistance)
	if !ok {
		return zero, false
	}

	target := Position{Lat: lat, Lng: lng}
	minDist := limit
	for _, item := range items {
		d := SquaredDistance(posOf(item), target)
		if d < minDist {
			minDist = d
			best = item
			found = true
		}
	}

	if !found {
		return zero, false
	}
	return best, true
}

// WithinDistance returns every item within maxDistance degrees of (lat, lng),
// keeping input order.
func WithinDistance[T any](items []T, lat, lng, maxDistance float64, posOf func(T) Position) []T {
	result := make([]T, 0)

	limit, ok := squaredLimit(maxDistance)
	if !ok {
		return result
	}

	target := Position{Lat: lat, Lng: lng}
	for _, item := range items {
		if SquaredDistance(posOf(item), target) < limit {
			result = append(result, item)
		}
	}

	return result
}

// squaredLimit returns the exclusive squared radius for maxDistance.
func squaredLimit(maxDistance float64) (float64, bool) {
	r := maxDistance - BoundaryTolerance
	if r <= 0 {
		return 0, false
	}
	return r * r, true
}
