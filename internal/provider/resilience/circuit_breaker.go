// Package resilience wraps upstream HTTP calls (TDX, YouBike, OpenAI) with
// timeouts, circuit breakers and optional retries.
package resilience

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig configures the breaker in front of one upstream.
type CircuitBreakerConfig struct {
	Name string

	// MaxRequests is the number of probe calls let through while half-open.
	MaxRequests uint32

	// Interval clears the failure counts while closed, so sparse failures
	// over a long day never add up to a trip. Zero keeps counts forever.
	Interval time.Duration

	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration

	// ReadyToTrip defaults to DefaultReadyToTrip.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange is called after every transition, before any logging
	// or registry hook installed by NewClient.
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig opens after a burst of failures, stays open
// for a minute and lets a single probe through.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Interval:    2 * time.Minute,
		Timeout:     60 * time.Second,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip trips once at least 5 calls were made in the current
// interval and half of them failed.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < 5 {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
}

// newCircuitBreaker builds the breaker and chains the transition hooks.
func newCircuitBreaker[T any](cfg CircuitBreakerConfig, hooks ...func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker[T] {
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = DefaultReadyToTrip
	}
	if cfg.OnStateChange != nil {
		hooks = append([]func(string, gobreaker.State, gobreaker.State){cfg.OnStateChange}, hooks...)
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: cfg.ReadyToTrip,
	}
	if len(hooks) > 0 {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			for _, hook := range hooks {
				hook(name, from, to)
			}
		}
	}
	return gobreaker.NewCircuitBreaker[T](settings)
}

// logStateChange logs opening at warn and recovery at info.
func logStateChange(log zerolog.Logger) func(name string, from, to gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		event := log.Info()
		if to == gobreaker.StateOpen {
			event = log.Warn()
		}
		event.
			Str("provider", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state changed")
	}
}
