package tdx

import "github.com/ntugo/ntugo/internal/geo"

// LocalizedName is a TDX bilingual name.
type LocalizedName struct {
	ZhTw string `json:"Zh_tw"`
	En   string `json:"En,omitempty"`
}

// StopPosition is a TDX stop coordinate.
type StopPosition struct {
	PositionLat float64 `json:"PositionLat"`
	PositionLon float64 `json:"PositionLon"`
}

// BusStop is a city bus stop.
type BusStop struct {
	StopUID      string        `json:"StopUID"`
	StopID       string        `json:"StopID"`
	StopName     LocalizedName `json:"StopName"`
	StopPosition StopPosition  `json:"StopPosition"`
	StopAddress  string        `json:"StopAddress,omitempty"`
	City         string        `json:"City,omitempty"`
}

// Position returns the stop coordinate for geo lookups.
func (s BusStop) Position() geo.Position {
	return geo.Position{Lat: s.StopPosition.PositionLat, Lng: s.StopPosition.PositionLon}
}

// StopStatus is the TDX stop status code carried by arrival estimates.
type StopStatus int

// Stop status values.
const (
	StopStatusNormal       StopStatus = 0
	StopStatusNotDeparted  StopStatus = 1
	StopStatusSkipped      StopStatus = 2
	StopStatusLastBusGone  StopStatus = 3
	StopStatusNotOperating StopStatus = 4
)

// Describe returns a short English description of the status.
func (s StopStatus) Describe() string {
	switch s {
	case StopStatusNormal:
		return "normal"
	case StopStatusNotDeparted:
		return "not departed"
	case StopStatusSkipped:
		return "not stopping"
	case StopStatusLastBusGone:
		return "last bus departed"
	case StopStatusNotOperating:
		return "not operating today"
	default:
		return "unknown"
	}
}

// Arrival is a real-time arrival estimate for one route at one stop.
type Arrival struct {
	StopUID      string        `json:"StopUID"`
	StopID       string        `json:"StopID"`
	StopName     LocalizedName `json:"StopName"`
	RouteUID     string        `json:"RouteUID"`
	RouteID      string        `json:"RouteID"`
	RouteName    LocalizedName `json:"RouteName"`
	Direction    int           `json:"Direction"`
	EstimateTime *int          `json:"EstimateTime,omitempty"`
	StopStatus   StopStatus    `json:"StopStatus"`
	StopSequence int           `json:"StopSequence,omitempty"`
	NextBusTime  string        `json:"NextBusTime,omitempty"`
	PlateNumb    string        `json:"PlateNumb,omitempty"`
}

// HasEstimate reports whether a non-negative arrival estimate is present.
func (a Arrival) HasEstimate() bool {
	return a.EstimateTime != nil && *a.EstimateTime >= 0
}

// StationQuery selects a metro station by id or by name. The id wins when both are set.
type StationQuery struct {
	ID   string
	Name string
}

// IsZero reports whether neither id nor name is set.
func (q StationQuery) IsZero() bool {
	return q.ID == "" && q.Name == ""
}
