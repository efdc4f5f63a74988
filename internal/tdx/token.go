package tdx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ntugo/ntugo/internal/provider/resilience"
)

const (
	// DefaultTokenURL is the TDX client-credentials endpoint.
	DefaultTokenURL = "https://tdx.transportdata.tw/auth/realms/TDXConnect/protocol/openid-connect/token"

	// DefaultTokenSkew is subtracted from the token expiry before it is considered stale.
	DefaultTokenSkew = 60 * time.Second

	// fallbackTokenLifetime applies when the endpoint omits expires_in.
	fallbackTokenLifetime = 10 * time.Minute
)

// TokenConfig holds configuration for the TDX token source.
type TokenConfig struct {
	ClientID     string
	ClientSecret string

	// TokenURL defaults to DefaultTokenURL.
	TokenURL string

	// Skew defaults to DefaultTokenSkew.
	Skew time.Duration

	// HTTPClient performs the exchange. If nil, a resilient client named "tdx-auth" is used.
	HTTPClient *resilience.Client

	// Clock defaults to time.Now.
	Clock func() time.Time

	Logger zerolog.Logger
}

// TokenSource exchanges TDX client credentials for bearer tokens and reuses a
// token until shortly before it expires.
type TokenSource struct {
	oauth      clientcredentials.Config
	configured bool
	skew       time.Duration
	httpClient *http.Client
	clock      func() time.Time
	logger     zerolog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenSource creates a TokenSource.
func NewTokenSource(cfg TokenConfig) *TokenSource {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	skew := cfg.Skew
	if skew == 0 {
		skew = DefaultTokenSkew
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	rc := cfg.HTTPClient
	if rc == nil {
		rc = resilience.NewClient(resilience.DefaultClientConfig("tdx-auth"))
	}

	return &TokenSource{
		oauth: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		configured: cfg.ClientID != "" && cfg.ClientSecret != "",
		skew:       skew,
		httpClient: &http.Client{Transport: doerTransport{rc}},
		clock:      clock,
		logger:     cfg.Logger,
	}
}

// Configured reports whether both client id and secret are set.
func (s *TokenSource) Configured() bool {
	return s.configured
}

// Token returns a valid access token, exchanging credentials when the cached
// token is missing or within the skew of its expiry.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if !s.configured {
		return "", ErrNotConfigured
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if s.token != "" && now.Before(s.expiresAt.Add(-s.skew)) {
		return s.token, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	tok, err := s.oauth.Token(ctx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			s.logger.Error().Int("status", status).Msg("tdx token exchange rejected")
			return "", fmt.Errorf("%w: status %d", ErrAuthFailed, status)
		}
		return "", fmt.Errorf("exchanging tdx credentials: %w", err)
	}

	lifetime := fallbackTokenLifetime
	if !tok.Expiry.IsZero() {
		lifetime = time.Until(tok.Expiry)
	}

	s.token = tok.AccessToken
	s.expiresAt = now.Add(lifetime)

	s.logger.Debug().Time("expires_at", s.expiresAt).Msg("tdx token refreshed")

	return s.token, nil
}

// Invalidate drops the cached token so the next call exchanges credentials again.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
}

// doerTransport routes oauth2 exchanges through the resilient client.
type doerTransport struct {
	client *resilience.Client
}

func (t doerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.client.Do(req)
}
