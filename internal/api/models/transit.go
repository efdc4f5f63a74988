package models

import (
	"encoding/json"

	"github.com/ntugo/ntugo/internal/tdx"
	"github.com/ntugo/ntugo/internal/youbike"
)

// BusStopsResponse wraps bus stops.
type BusStopsResponse struct {
	Stops []tdx.BusStop `json:"Stops"`
}

// BusArrivalsResponse wraps arrival estimates.
type BusArrivalsResponse struct {
	BusRealTimeInfos []tdx.Arrival `json:"BusRealTimeInfos"`
}

// MetroExitsResponse wraps station exits.
type MetroExitsResponse struct {
	Exits []json.RawMessage `json:"Exits"`
}

// MetroTimetableResponse wraps first/last train times.
type MetroTimetableResponse struct {
	Timetable []json.RawMessage `json:"Timetable"`
}

// BusNewsResponse wraps bus announcements.
type BusNewsResponse struct {
	News []json.RawMessage `json:"News"`
}

// StationsResponse wraps YouBike stations.
type StationsResponse struct {
	Stations []youbike.Station `json:"Stations"`
}

// StationResponse wraps a single YouBike station; Station is null when absent.
type StationResponse struct {
	Station *youbike.Station `json:"Station"`
}
