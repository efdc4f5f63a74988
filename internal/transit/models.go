package transit

import "math"

// NTU campus centre and the default search radius for bus stops.
const (
	CampusLat           = 25.0173405
	CampusLon           = 121.5397518
	DefaultRadiusMeters = 1000

	// MaxRadiusMeters bounds a stop search.
	MaxRadiusMeters = 5000

	// CoordinateDecimals is the precision queries are rounded to before
	// they key the cache, about 11 m.
	CoordinateDecimals = 4
)

// StopQuery selects the bus stops around a point.
type StopQuery struct {
	Lat          float64
	Lon          float64
	RadiusMeters int
}

// DefaultStopQuery returns the query for stops around campus.
func DefaultStopQuery() StopQuery {
	return StopQuery{Lat: CampusLat, Lon: CampusLon, RadiusMeters: DefaultRadiusMeters}
}

// Normalize fills unset or non-finite coordinates and a non-positive radius
// from DefaultStopQuery, caps the radius at MaxRadiusMeters, and rounds the
// coordinates to CoordinateDecimals. Nearby points share one query.
func (q StopQuery) Normalize() StopQuery {
	d := DefaultStopQuery()
	if !finite(q.Lat) || !finite(q.Lon) || (q.Lat == 0 && q.Lon == 0) {
		q.Lat, q.Lon = d.Lat, d.Lon
	}
	switch {
	case q.RadiusMeters <= 0:
		q.RadiusMeters = d.RadiusMeters
	case q.RadiusMeters > MaxRadiusMeters:
		q.RadiusMeters = MaxRadiusMeters
	}
	q.Lat = round(q.Lat, CoordinateDecimals)
	q.Lon = round(q.Lon, CoordinateDecimals)
	return q
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func round(f float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(f*p) / p
}
