package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ntugo/ntugo/internal/api/middleware"
	"github.com/ntugo/ntugo/internal/api/models"
	"github.com/ntugo/ntugo/internal/api/response"
	"github.com/ntugo/ntugo/internal/tdx"
	"github.com/ntugo/ntugo/internal/transit"
	"github.com/ntugo/ntugo/internal/youbike"
)

// DefaultNearbyDistance is the nearby-stop radius in degrees (roughly 500 m).
const DefaultNearbyDistance = 0.005

// BusData is the cached bus data used by the map. Implemented by *transit.Service.
type BusData interface {
	BusStops(ctx context.Context, q transit.StopQuery) []tdx.BusStop
	NearbyStops(ctx context.Context, q transit.StopQuery, lat, lon, maxDistance float64) []tdx.BusStop
	Arrivals(ctx context.Context, stopUID string) []tdx.Arrival
	InvalidateCache()
}

// BikeData is the cached YouBike data used by the map. Implemented by *youbike.Service.
type BikeData interface {
	Stations(ctx context.Context) []youbike.Station
	FindByName(ctx context.Context, name string) (youbike.Station, bool)
	FindNearest(ctx context.Context, lat, lng, maxDistance float64) (youbike.Station, bool)
	InvalidateCache()
}

// MapHandler serves cached map data. Upstream failures degrade to stale or
// empty data and never surface as errors.
type MapHandler struct {
	bus    BusData
	bikes  BikeData
	logger zerolog.Logger
}

// NewMapHandler creates a new MapHandler.
func NewMapHandler(bus BusData, bikes BikeData, logger zerolog.Logger) *MapHandler {
	return &MapHandler{bus: bus, bikes: bikes, logger: logger}
}

// BusStops handles GET /api/map/bus-stops.
func (h *MapHandler) BusStops(w http.ResponseWriter, r *http.Request) {
	q, ok := stopQuery(r)
	if !ok {
		response.BadRequest(w, r, msgInvalidCoordinate, nil)
		return
	}
	response.OK(w, r, models.BusStopsResponse{Stops: h.bus.BusStops(r.Context(), q)})
}

// NearbyBusStops handles GET /api/map/bus-stops/nearby. The stop set around
// campus is filtered to maxDistance degrees of (lat, lon).
func (h *MapHandler) NearbyBusStops(w http.ResponseWriter, r *http.Request) {
	lat, okLat := floatParam(r, "lat", transit.CampusLat)
	lon, okLon := floatParam(r, "lon", transit.CampusLon)
	maxDistance, okDist := floatParam(r, "maxDistance", DefaultNearbyDistance)
	if !okLat || !okLon || !okDist {
		response.BadRequest(w, r, msgInvalidCoordinate, nil)
		return
	}

	stops := h.bus.NearbyStops(r.Context(), transit.DefaultStopQuery(), lat, lon, maxDistance)
	response.OK(w, r, models.BusStopsResponse{Stops: stops})
}

// BusArrivals handles GET /api/map/bus-arrivals. A missing stopUID yields an empty list.
func (h *MapHandler) BusArrivals(w http.ResponseWriter, r *http.Request) {
	arrivals := h.bus.Arrivals(r.Context(), queryParam(r, "stopUID"))
	response.OK(w, r, models.BusArrivalsResponse{BusRealTimeInfos: arrivals})
}

// YouBikeStations handles GET /api/map/youbike.
func (h *MapHandler) YouBikeStations(w http.ResponseWriter, r *http.Request) {
	response.OK(w, r, models.StationsResponse{Stations: h.bikes.Stations(r.Context())})
}

// SearchYouBike handles GET /api/map/youbike/search.
func (h *MapHandler) SearchYouBike(w http.ResponseWriter, r *http.Request) {
	var resp models.StationResponse
	if station, ok := h.bikes.FindByName(r.Context(), queryParam(r, "name")); ok {
		resp.Station = &station
	}
	response.OK(w, r, resp)
}

// NearestYouBike handles GET /api/map/youbike/nearest.
func (h *MapHandler) NearestYouBike(w http.ResponseWriter, r *http.Request) {
	lat, okLat := floatParam(r, "lat", 0)
	lng, okLng := floatParam(r, "lng", 0)
	maxDistance, okDist := floatParam(r, "maxDistance", youbike.DefaultMaxDistance)
	if !okLat || !okLng || !okDist || queryParam(r, "lat") == "" || queryParam(r, "lng") == "" {
		response.BadRequest(w, r, msgInvalidCoordinate, nil)
		return
	}

	var resp models.StationResponse
	if station, ok := h.bikes.FindNearest(r.Context(), lat, lng, maxDistance); ok {
		resp.Station = &station
	}
	response.OK(w, r, resp)
}

// InvalidateCache handles POST /api/map/cache/invalidate.
func (h *MapHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.bus.InvalidateCache()
	h.bikes.InvalidateCache()
	h.logger.Info().Str("user_id", middleware.GetUserID(r.Context())).Msg("map caches invalidated")
	response.OK(w, r, models.StatusResponse{Success: true, Message: "快取已清除"})
}
