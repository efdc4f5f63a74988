// Package main provides the entrypoint for the NTUGo API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ntugo/ntugo/internal/api"
	"github.com/ntugo/ntugo/internal/api/middleware"
	"github.com/ntugo/ntugo/internal/assistant"
	"github.com/ntugo/ntugo/internal/auth"
	"github.com/ntugo/ntugo/internal/cache"
	"github.com/ntugo/ntugo/internal/community"
	"github.com/ntugo/ntugo/internal/config"
	"github.com/ntugo/ntugo/internal/database"
	"github.com/ntugo/ntugo/internal/mail"
	"github.com/ntugo/ntugo/internal/provider/resilience"
	"github.com/ntugo/ntugo/internal/tdx"
	"github.com/ntugo/ntugo/internal/telemetry"
	"github.com/ntugo/ntugo/internal/transit"
	"github.com/ntugo/ntugo/internal/verification"
	"github.com/ntugo/ntugo/internal/youbike"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const (
	jwtIssuer   = "ntugo-api"
	jwtAudience = "ntugo-web"
)

func main() {
	const serviceName = "ntugo-api"

	config.LoadDotEnv()
	cfg := config.Load()

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()
	if cfg.IsDevelopment() {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting NTUGo API")

	// Initialize OpenTelemetry
	ctx := context.Background()
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		Secure:         cfg.Telemetry.Secure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := middleware.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	// Connect to database
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to apply database schema")
	}
	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Msg("database connected")

	// Upstream clients share one registry so /api/ops/status sees every circuit
	registry := resilience.NewRegistry()
	upstream := func(name string, timeout time.Duration) *resilience.Client {
		c := resilience.DefaultClientConfig(name)
		if timeout > 0 {
			c.Timeout = timeout
		}
		c.MaxRetries = cfg.UpstreamMaxRetries
		c.Registry = registry
		c.Observer = providerMetrics
		c.Logger = log
		return resilience.NewClient(c)
	}

	// TDX
	tokens := tdx.NewTokenSource(tdx.TokenConfig{
		ClientID:     cfg.TDX.ClientID,
		ClientSecret: cfg.TDX.ClientSecret,
		TokenURL:     cfg.TDX.TokenURL,
		HTTPClient:   upstream("tdx-auth", 0),
		Logger:       log,
	})
	tdxClient := tdx.NewClient(tdx.ClientConfig{
		BaseURL:    cfg.TDX.BaseURL,
		Tokens:     tokens,
		HTTPClient: upstream(tdx.ProviderName, 0),
		Logger:     log,
	})
	if !tokens.Configured() {
		log.Warn().Msg("TDX credentials not configured - transit endpoints will fail")
	}

	transitService := transit.NewService(transit.ServiceConfig{
		Provider: tdxClient,
		Logger:   log,
		Metrics:  providerMetrics,
	})

	// YouBike
	youbikeService := youbike.NewService(youbike.ServiceConfig{
		Provider: youbike.NewClient(youbike.ClientConfig{
			FeedURL:    cfg.YouBikeURL,
			HTTPClient: upstream(youbike.ProviderName, 0),
			Logger:     log,
		}),
		Logger:  log,
		Metrics: providerMetrics,
	})

	// Accounts
	if cfg.JWTSigningKey == "" {
		cfg.JWTSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	authService := auth.NewService(auth.ServiceConfig{
		JWTService: auth.NewJWTService(auth.JWTConfig{
			SigningKey: cfg.JWTSigningKey,
			Issuer:     jwtIssuer,
			Audience:   jwtAudience,
		}),
		UserRepo: auth.NewPostgresUserRepository(pool),
		Logger:   log,
	})
	log.Info().Msg("auth service initialized")

	mailer, closeMailer := newMailer(ctx, cfg, log)
	defer closeMailer()

	verificationService := verification.NewService(verification.ServiceConfig{
		Repository:      verification.NewPostgresRepository(pool),
		Users:           authService,
		Mailer:          mailer,
		CodeTTL:         cfg.Verification.CodeTTL,
		MaxAttempts:     cfg.Verification.MaxAttempts,
		MaxSendsPerHour: cfg.Verification.MaxSendsPerHour,
		ResetWindow:     cfg.Verification.ResetWindow,
		Logger:          log,
	})

	// AI assistant
	assistantService := assistant.NewService(assistant.Config{
		APIKey:     cfg.OpenAI.APIKey,
		Model:      cfg.OpenAI.Model,
		BaseURL:    cfg.OpenAI.BaseURL,
		HTTPClient: upstream(assistant.ProviderName, assistant.DefaultTimeout),
		Documents:  assistant.NewPostgresDocumentStore(pool),
		Logger:     log,
	})
	if !assistantService.Configured() {
		log.Warn().Msg("OpenAI API key not configured - AI chat will return 503")
	}

	communityService := community.NewService(community.ServiceConfig{
		Repository: community.NewPostgresRepository(pool),
		Logger:     log,
	})

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        metrics,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RequireTLS:     cfg.RequireTLS,
		Database:       pool,
		Providers:      registry,
		Caches: func() []cache.Stats {
			return append(transitService.CacheStats(), youbikeService.CacheStats())
		},
		AuthService:         authService,
		VerificationService: verificationService,
		TDX:                 tdxClient,
		Bus:                 transitService,
		Bikes:               youbikeService,
		Assistant:           assistantService,
		Rooms:               communityService,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // AI answers can take up to the model timeout
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

// newMailer picks the verification mail transport: the Pub/Sub queue when
// configured, then direct SMTP, then a logging stub for local development.
func newMailer(ctx context.Context, cfg *config.Config, log zerolog.Logger) (mail.Mailer, func()) {
	if cfg.MailQueued() {
		m, err := mail.NewPubSubMailer(ctx, cfg.MailQueue.ProjectID, cfg.MailQueue.Topic)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create mail publisher")
		}
		log.Info().Str("topic", cfg.MailQueue.Topic).Msg("verification mail queued via pubsub")
		return m, func() {
			if err := m.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close mail publisher")
			}
		}
	}

	if cfg.SMTP.Configured() {
		log.Info().Str("host", cfg.SMTP.Host).Msg("verification mail sent via smtp")
		return mail.NewSMTPMailer(cfg.SMTP), func() {}
	}

	log.Warn().Msg("no mail transport configured - verification codes are only logged")
	return mail.LogMailer{Logger: log}, func() {}
}
