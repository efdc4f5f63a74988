package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ntugo/ntugo/internal/api/models"
	"github.com/ntugo/ntugo/internal/api/response"
	"github.com/ntugo/ntugo/internal/tdx"
	"github.com/ntugo/ntugo/internal/transit"
)

// TDXClient is the upstream used by the proxy routes. Implemented by *tdx.Client.
type TDXClient interface {
	Configured() bool
	BusStopsNearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]tdx.BusStop, error)
	EstimatedArrivals(ctx context.Context, stopUID string) ([]tdx.Arrival, error)
	StationExits(ctx context.Context, station tdx.StationQuery) ([]json.RawMessage, error)
	FirstLastTimetable(ctx context.Context, station tdx.StationQuery) ([]json.RawMessage, error)
	BusNews(ctx context.Context, city string, top int) ([]json.RawMessage, error)
}

const (
	msgTDXNotConfigured  = "TDX API Key 未設定"
	msgMissingStopUID    = "缺少必要參數: stopUID"
	msgMissingStation    = "缺少必要參數: stationId 或 stationName"
	msgInvalidCoordinate = "無效的座標參數"
	msgUpstreamThrottled = "API 請求過於頻繁，請稍後再試"
)

// TDXHandler proxies TDX queries without caching; upstream 429s pass through.
type TDXHandler struct {
	client TDXClient
	logger zerolog.Logger
}

// NewTDXHandler creates a new TDXHandler.
func NewTDXHandler(client TDXClient, logger zerolog.Logger) *TDXHandler {
	return &TDXHandler{client: client, logger: logger}
}

// BusStops handles GET /api/tdx/bus-stops.
func (h *TDXHandler) BusStops(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w, r) {
		return
	}
	q, ok := stopQuery(r)
	if !ok {
		response.BadRequest(w, r, msgInvalidCoordinate, nil)
		return
	}

	stops, err := h.client.BusStopsNearby(r.Context(), q.Lat, q.Lon, q.RadiusMeters)
	if err != nil {
		h.upstreamError(w, r, err, "Stops", "獲取公車站牌資料失敗")
		return
	}
	response.OK(w, r, models.BusStopsResponse{Stops: stops})
}

// BusRealtime handles GET /api/tdx/bus-realtime.
func (h *TDXHandler) BusRealtime(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w, r) {
		return
	}
	stopUID := queryParam(r, "stopUID")
	if stopUID == "" {
		response.BadRequest(w, r, msgMissingStopUID, nil)
		return
	}

	arrivals, err := h.client.EstimatedArrivals(r.Context(), stopUID)
	if err != nil {
		h.upstreamError(w, r, err, "BusRealTimeInfos", "獲取公車即時資訊失敗")
		return
	}
	response.OK(w, r, models.BusArrivalsResponse{BusRealTimeInfos: arrivals})
}

// MetroExits handles GET /api/tdx/metro-exits.
func (h *TDXHandler) MetroExits(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w, r) {
		return
	}
	station, ok := stationQuery(w, r)
	if !ok {
		return
	}

	exits, err := h.client.StationExits(r.Context(), station)
	if err != nil {
		h.upstreamError(w, r, err, "Exits", "獲取捷運站出口資訊失敗")
		return
	}
	response.OK(w, r, models.MetroExitsResponse{Exits: exits})
}

// MetroTimetable handles GET /api/tdx/metro-timetable.
func (h *TDXHandler) MetroTimetable(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w, r) {
		return
	}
	station, ok := stationQuery(w, r)
	if !ok {
		return
	}

	timetable, err := h.client.FirstLastTimetable(r.Context(), station)
	if err != nil {
		h.upstreamError(w, r, err, "Timetable", "獲取捷運時刻表失敗")
		return
	}
	response.OK(w, r, models.MetroTimetableResponse{Timetable: timetable})
}

// BusNews handles GET /api/tdx/bus-news.
func (h *TDXHandler) BusNews(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w, r) {
		return
	}
	city := queryParam(r, "city")
	top := intParam(r, "top", tdx.DefaultNewsTop)

	news, err := h.client.BusNews(r.Context(), city, top)
	if err != nil {
		h.upstreamError(w, r, err, "News", "獲取公車新聞失敗")
		return
	}
	response.OK(w, r, models.BusNewsResponse{News: news})
}

func (h *TDXHandler) configured(w http.ResponseWriter, r *http.Request) bool {
	if h.client == nil || !h.client.Configured() {
		response.InternalError(w, r, msgTDXNotConfigured)
		return false
	}
	return true
}

// upstreamError maps a TDX failure. A 429 carries an empty array under field
// so clients that read it unconditionally keep working.
func (h *TDXHandler) upstreamError(w http.ResponseWriter, r *http.Request, err error, field, message string) {
	switch {
	case errors.Is(err, tdx.ErrRateLimited):
		e := response.NewError(r, http.StatusTooManyRequests, models.ErrorCodeTooManyRequests, msgUpstreamThrottled).
			With(field, []struct{}{})
		response.Error(w, r, e)
	case errors.Is(err, tdx.ErrNotConfigured):
		response.InternalError(w, r, msgTDXNotConfigured)
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("tdx proxy request failed")
		response.InternalError(w, r, message)
	}
}

// stopQuery reads lat, lon and radius, defaulting to the campus query.
func stopQuery(r *http.Request) (transit.StopQuery, bool) {
	d := transit.DefaultStopQuery()
	lat, okLat := floatParam(r, "lat", d.Lat)
	lon, okLon := floatParam(r, "lon", d.Lon)
	if !okLat || !okLon {
		return transit.StopQuery{}, false
	}
	q := transit.StopQuery{
		Lat:          lat,
		Lon:          lon,
		RadiusMeters: intParam(r, "radius", d.RadiusMeters),
	}
	return q.Normalize(), true
}

func stationQuery(w http.ResponseWriter, r *http.Request) (tdx.StationQuery, bool) {
	station := tdx.StationQuery{
		ID:   queryParam(r, "stationId"),
		Name: queryParam(r, "stationName"),
	}
	if station.IsZero() {
		response.BadRequest(w, r, msgMissingStation, nil)
		return station, false
	}
	return station, true
}
