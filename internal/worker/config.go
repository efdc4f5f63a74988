// Package worker delivers queued NTUGo e-mail from Pub/Sub.
package worker

import (
	"time"
)

// Config holds settings for the mail consumer.
type Config struct {
	// ProjectID is the Google Cloud project holding the subscription.
	ProjectID string

	// SubscriptionName is the mail subscription to consume.
	SubscriptionName string

	// MaxOutstandingMessages bounds messages handled concurrently.
	// Default: 10
	MaxOutstandingMessages int

	// MaxExtension is how long a message lease may be extended.
	// Default: 10 minutes
	MaxExtension time.Duration

	// SendTimeout bounds a single delivery.
	// Default: 30 seconds
	SendTimeout time.Duration

	// MaxAge drops messages published longer ago than this. A verification
	// code that arrives after it expired only confuses the user.
	// Default: 15 minutes
	MaxAge time.Duration
}

// DefaultConfig returns the default consumer settings.
func DefaultConfig() Config {
	return Config{
		MaxOutstandingMessages: 10,
		MaxExtension:           10 * time.Minute,
		SendTimeout:            30 * time.Second,
		MaxAge:                 15 * time.Minute,
	}
}

// Expired reports whether a message published at published is too old to
// deliver at now.
func (c Config) Expired(published, now time.Time) bool {
	c = c.withDefaults()
	return !published.IsZero() && now.Sub(published) > c.MaxAge
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxOutstandingMessages <= 0 {
		c.MaxOutstandingMessages = d.MaxOutstandingMessages
	}
	if c.MaxExtension <= 0 {
		c.MaxExtension = d.MaxExtension
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	if c.MaxAge <= 0 {
		c.MaxAge = d.MaxAge
	}
	return c
}
