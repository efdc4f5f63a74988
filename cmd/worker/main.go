// Package main provides the entrypoint for the NTUGo mail worker.
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

	"github.com/ntugo/ntugo/internal/api/models"
	"github.com/ntugo/ntugo/internal/api/response"
	"github.com/ntugo/ntugo/internal/config"
	"github.com/ntugo/ntugo/internal/mail"
	"github.com/ntugo/ntugo/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", "ntugo-worker").
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting NTUGo worker")

	if cfg.MailQueue.ProjectID == "" || cfg.MailQueue.Subscription == "" {
		log.Fatal().Msg("MAIL_PROJECT_ID and MAIL_SUBSCRIPTION are required")
	}
	if !cfg.SMTP.Configured() {
		log.Fatal().Msg("SMTP_HOST and SMTP_FROM are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerCfg := worker.DefaultConfig()
	workerCfg.ProjectID = cfg.MailQueue.ProjectID
	workerCfg.SubscriptionName = cfg.MailQueue.Subscription
	workerCfg.MaxAge = cfg.Verification.CodeTTL

	processor := worker.NewProcessor(mail.NewSMTPMailer(cfg.SMTP), workerCfg.SendTimeout, log)
	handler, err := worker.NewPubSubHandler(ctx, workerCfg, processor, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub handler")
	}
	defer func() {
		if err := handler.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pubsub client")
		}
	}()

	// Worker also exposes a health endpoint for Cloud Run
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, r, models.Health{
			Status:  models.HealthStatusOK,
			Time:    models.Timestamp(time.Now()),
			Details: map[string]interface{}{"version": Version},
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("pubsub receive stopped")
		}
	}()

	// Wait for interrupt signal or a dead consumer
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-done:
	}

	log.Info().Msg("shutting down worker")
	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
