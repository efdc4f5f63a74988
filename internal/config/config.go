// Package config loads NTUGo settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ntugo/ntugo/internal/database"
	"github.com/ntugo/ntugo/internal/mail"
)

// TDXConfig holds Transport Data eXchange credentials.
type TDXConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
}

// OpenAIConfig holds the chat-completion API settings.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// MailQueueConfig holds the Pub/Sub mail queue names.
type MailQueueConfig struct {
	ProjectID    string
	Topic        string
	Subscription string
}

// VerificationConfig tunes the password-reset flow. Zero values mean the
// service defaults.
type VerificationConfig struct {
	CodeTTL         time.Duration
	MaxAttempts     int
	MaxSendsPerHour int
	ResetWindow     time.Duration
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	Secure       bool
	SampleRatio  float64
}

// Config holds all application configuration.
type Config struct {
	Port string
	Env  string

	JWTSigningKey string

	Database     database.Config
	TDX          TDXConfig
	YouBikeURL   string
	OpenAI       OpenAIConfig
	SMTP         mail.SMTPConfig
	MailQueue    MailQueueConfig
	Verification VerificationConfig
	Telemetry    TelemetryConfig

	CORSAllowedOrigins []string

	// RequireTLS rejects requests the load balancer received over plain HTTP.
	RequireTLS bool

	// UpstreamMaxRetries is the number of retries after a failed upstream
	// call (default 0: one attempt).
	UpstreamMaxRetries uint64
}

// LoadDotEnv loads .env files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:          getEnv("APP_PORT", "8080"),
		Env:           getEnv("APP_ENV", "development"),
		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
		Database:      database.ConfigFromEnv(),
		TDX: TDXConfig{
			ClientID:     strings.TrimSpace(os.Getenv("TDX_CLIENT_ID")),
			ClientSecret: strings.TrimSpace(os.Getenv("TDX_CLIENT_SECRET")),
			TokenURL:     os.Getenv("TDX_TOKEN_URL"),
			BaseURL:      os.Getenv("TDX_BASE_URL"),
		},
		YouBikeURL: os.Getenv("YOUBIKE_FEED_URL"),
		OpenAI: OpenAIConfig{
			APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			Model:   os.Getenv("OPENAI_MODEL"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		SMTP: mail.SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		MailQueue: MailQueueConfig{
			ProjectID:    os.Getenv("MAIL_PROJECT_ID"),
			Topic:        os.Getenv("MAIL_TOPIC"),
			Subscription: os.Getenv("MAIL_SUBSCRIPTION"),
		},
		Verification: VerificationConfig{
			CodeTTL:         time.Duration(getInt("VERIFICATION_CODE_EXPIRY_MINUTES", 0)) * time.Minute,
			MaxAttempts:     getInt("VERIFICATION_CODE_MAX_ATTEMPTS", 0),
			MaxSendsPerHour: getInt("VERIFICATION_CODE_MAX_SENDS_PER_HOUR", 0),
			ResetWindow:     getDuration("VERIFICATION_RESET_WINDOW", 0),
		},
		Telemetry: TelemetryConfig{
			Enabled:      os.Getenv("OTEL_ENABLED") == "true",
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Secure:       os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "false",
			SampleRatio:  getFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RequireTLS:         os.Getenv("REQUIRE_TLS") == "true",
		UpstreamMaxRetries: uint64(getInt("UPSTREAM_MAX_RETRIES", 0)), //nolint:gosec // negative values clamp to 0 in getInt
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// MailQueued reports whether verification e-mail goes through Pub/Sub.
func (c *Config) MailQueued() bool {
	return c.MailQueue.ProjectID != "" && c.MailQueue.Topic != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			return n
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getDuration accepts Go durations ("10m") or whole seconds.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
