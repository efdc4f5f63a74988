// Package tdx is a client for the Transport Data eXchange (TDX) API: Taipei
// city bus stops and arrival estimates, Taipei metro exits and timetables,
// and bus news.
package tdx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ntugo/ntugo/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider in the resilience registry.
	ProviderName = "tdx"

	// DefaultBaseURL is the TDX basic API root.
	DefaultBaseURL = "https://tdx.transportdata.tw/api/basic"

	// DefaultCity is used when no city is given for bus news.
	DefaultCity = "Taipei"

	// DefaultNewsTop is the default number of news items.
	DefaultNewsTop = 10

	// maxErrorBody bounds how much of an error body is kept for logs.
	maxErrorBody = 512
)

// ClientConfig holds configuration for the TDX client.
type ClientConfig struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Tokens issues bearer tokens (required).
	Tokens *TokenSource

	// HTTPClient is the HTTP client to use. If nil, a resilient client with defaults is used.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client is a TDX API client.
type Client struct {
	baseURL    string
	tokens     *TokenSource
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new TDX client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     cfg.Tokens,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Configured reports whether TDX credentials are present.
func (c *Client) Configured() bool {
	return c.tokens != nil && c.tokens.Configured()
}

// BusStopsNearby returns Taipei bus stops within radiusMeters of (lat, lon).
func (c *Client) BusStopsNearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]BusStop, error) {
	q := url.Values{}
	q.Set("$spatialFilter", fmt.Sprintf("nearby(%s, %s, %d)", formatCoord(lat), formatCoord(lon), radiusMeters))

	var stops []BusStop
	if err := c.getJSON(ctx, "/v2/Bus/Stop/City/Taipei", q, &stops); err != nil {
		return nil, err
	}
	if stops == nil {
		stops = []BusStop{}
	}
	return stops, nil
}

// EstimatedArrivals returns the arrival estimates of every route serving stopUID.
func (c *Client) EstimatedArrivals(ctx context.Context, stopUID string) ([]Arrival, error) {
	q := url.Values{}
	q.Set("$filter", "StopUID eq "+quote(stopUID))

	var arrivals []Arrival
	if err := c.getJSON(ctx, "/v2/Bus/EstimatedTimeOfArrival/City/Taipei", q, &arrivals); err != nil {
		return nil, err
	}
	if arrivals == nil {
		arrivals = []Arrival{}
	}
	return arrivals, nil
}

// StationExits returns the Taipei metro exits of the selected station as raw JSON objects.
func (c *Client) StationExits(ctx context.Context, station StationQuery) ([]json.RawMessage, error) {
	return c.getArray(ctx, "/v2/Rail/Metro/StationExit/TRTC", stationFilter(station))
}

// FirstLastTimetable returns the first/last train timetable of the selected station.
func (c *Client) FirstLastTimetable(ctx context.Context, station StationQuery) ([]json.RawMessage, error) {
	return c.getArray(ctx, "/v2/Rail/Metro/FirstLastTimetable/TRTC", stationFilter(station))
}

// BusNews returns the latest top news items for a city.
func (c *Client) BusNews(ctx context.Context, city string, top int) ([]json.RawMessage, error) {
	if city == "" {
		city = DefaultCity
	}
	if top <= 0 {
		top = DefaultNewsTop
	}

	q := url.Values{}
	q.Set("$top", strconv.Itoa(top))

	return c.getArray(ctx, "/v2/Bus/News/City/"+url.PathEscape(city), q)
}

// getArray fetches path and returns its elements; a non-array body yields an empty slice.
func (c *Client) getArray(ctx context.Context, path string, q url.Values) ([]json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, path, q, &raw); err != nil {
		return nil, err
	}

	items := []json.RawMessage{}
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "[") {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decoding array: %w", err)
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items, nil
}

// getJSON performs an authenticated GET and decodes the body into dst.
// Typed destinations tolerate a non-array body by leaving dst untouched.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	if q == nil {
		q = url.Values{}
	}
	q.Set("$format", "JSON")
	endpoint := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return err
		}
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn().Str("path", path).Msg("tdx rate limited")
		return ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized:
		c.tokens.Invalidate()
		fallthrough
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error().
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Msg("tdx request failed")
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if raw, ok := dst.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], body...)
		return nil
	}

	if !strings.HasPrefix(strings.TrimSpace(string(body)), "[") {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
}

// stationFilter builds the OData filter for a station query.
func stationFilter(station StationQuery) url.Values {
	q := url.Values{}
	switch {
	case station.ID != "":
		q.Set("$filter", "StationID eq "+quote(station.ID))
	case station.Name != "":
		q.Set("$filter", "StationName/Zh_tw eq "+quote(CleanStationName(station.Name)))
	}
	return q
}

// CleanStationName drops the first 站 ("station") suffix character and surrounding space.
func CleanStationName(name string) string {
	return strings.TrimSpace(strings.Replace(name, "站", "", 1))
}

// quote renders an OData string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
