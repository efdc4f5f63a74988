package tdx

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned when the TDX client id or secret is unset.
	ErrNotConfigured = errors.New("tdx credentials not configured")

	// ErrAuthFailed is returned when the token endpoint rejects the credentials.
	ErrAuthFailed = errors.New("tdx authentication failed")

	// ErrRateLimited is returned when TDX answers 429.
	ErrRateLimited = errors.New("tdx rate limit exceeded")
)

// StatusError is returned for non-2xx TDX responses other than 429.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tdx request failed: status %d", e.StatusCode)
}
