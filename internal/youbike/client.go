// Package youbike reads the Taipei YouBike 2.0 real-time feed and serves it
// through a time-bounded cache with name and nearest-station lookups.
package youbike

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ntugo/ntugo/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider in the resilience registry.
	ProviderName = "youbike"

	// DefaultFeedURL is the Taipei City YouBike 2.0 real-time feed.
	DefaultFeedURL = "https://tcgbusfs.blob.core.windows.net/dotapp/youbike/v2/youbike_immediate.json"
)

// ClientConfig holds configuration for the feed client.
type ClientConfig struct {
	// FeedURL defaults to DefaultFeedURL.
	FeedURL string

	// HTTPClient is the HTTP client to use. If nil, a resilient client with defaults is used.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client fetches the YouBike feed.
type Client struct {
	feedURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new feed client.
func NewClient(cfg ClientConfig) *Client {
	feedURL := cfg.FeedURL
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		feedURL:    feedURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Stations fetches and normalises every station in the feed. Stations with
// missing, zero, or unparsable coordinates are dropped. A non-array body
// yields an empty list.
func (c *Client) Stations(ctx context.Context) ([]Station, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	stations := []Station{}
	var feed []feedStation
	if err := json.Unmarshal(raw, &feed); err != nil {
		c.logger.Warn().Err(err).Msg("youbike feed is not a station array")
		return stations, nil
	}

	dropped := 0
	for _, f := range feed {
		s, ok := f.normalize()
		if !ok {
			dropped++
			continue
		}
		stations = append(stations, s)
	}

	c.logger.Debug().
		Int("stations", len(stations)).
		Int("dropped", dropped).
		Msg("youbike feed fetched")

	return stations, nil
}
