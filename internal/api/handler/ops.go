// Package handler provides HTTP handlers for the NTUGo API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ntugo/ntugo/internal/api/models"
	"github.com/ntugo/ntugo/internal/api/response"
	"github.com/ntugo/ntugo/internal/cache"
	"github.com/ntugo/ntugo/internal/provider/resilience"
)

// readyTimeout bounds the database ping of the readiness check.
const readyTimeout = 2 * time.Second

// Pinger checks a dependency. Implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsConfig holds dependencies for the ops endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Database is pinged by the readiness check. Nil means no database is configured.
	Database Pinger

	// Providers supplies circuit and call state for upstreams.
	Providers *resilience.Registry

	// Caches returns the state of every snapshot cache.
	Caches func() []cache.Stats

	Logger zerolog.Logger
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /api/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.OK(w, r, health)
}

// ReadinessCheck handles GET /api/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if err := h.pingDatabase(r.Context()); err != nil {
		h.cfg.Logger.Warn().Err(err).Msg("readiness check failed")
		health.Status = models.HealthStatusFail
		health.Details = map[string]interface{}{"database": "unreachable"}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}

	response.OK(w, r, health)
}

// SystemStatus handles GET /api/ops/status - provider and cache status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{h.databaseStatus(r.Context())},
		Providers:  []models.ProviderStatus{},
		Caches:     []models.CacheStatus{},
	}

	if h.cfg.Providers != nil {
		for _, upstream := range h.cfg.Providers.All() {
			status.Providers = append(status.Providers, providerStatus(upstream))
		}
	}
	if h.cfg.Caches != nil {
		for _, stats := range h.cfg.Caches() {
			status.Caches = append(status.Caches, cacheStatus(stats))
		}
	}

	status.Status = overallStatus(status)
	response.OK(w, r, status)
}

func (h *OpsHandler) pingDatabase(ctx context.Context) error {
	if h.cfg.Database == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	return h.cfg.Database.Ping(ctx)
}

func (h *OpsHandler) databaseStatus(ctx context.Context) models.SubsystemStatus {
	sub := models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusOK}
	if h.cfg.Database == nil {
		detail := "not configured"
		sub.Status = models.HealthStatusDegraded
		sub.Detail = &detail
		return sub
	}
	if err := h.pingDatabase(ctx); err != nil {
		detail := "unreachable"
		sub.Status = models.HealthStatusFail
		sub.Detail = &detail
	}
	return sub
}

func providerStatus(u *resilience.UpstreamHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:     u.Name,
		Status:       models.HealthStatusOK,
		CircuitState: u.CircuitState.String(),
		Requests:     u.Counts.Requests,
		Failures:     u.Counts.ConsecutiveFailures,
	}
	switch {
	case u.IsUnhealthy():
		ps.Status = models.HealthStatusFail
	case u.IsDegraded():
		ps.Status = models.HealthStatusDegraded
	}
	ps.LastSuccessAt = models.TimestampPtr(u.LastSuccessAt)
	ps.LastFailureAt = models.TimestampPtr(u.LastFailureAt)
	ps.StateChangedAt = models.TimestampPtr(u.StateChangedAt)
	if u.LastError != "" {
		msg := u.LastError
		ps.Message = &msg
	}
	return ps
}

func cacheStatus(s cache.Stats) models.CacheStatus {
	cs := models.CacheStatus{
		Name:       s.Name,
		TTLSeconds: int(s.TTL / time.Second),
		Entries:    s.Entries,
		Fresh:      s.Fresh,
	}
	if !s.OldestStoredAt.IsZero() {
		ts := models.Timestamp(s.OldestStoredAt)
		cs.OldestStoredAt = &ts
	}
	return cs
}

// overallStatus is FAIL when the database is down, DEGRADED when any
// provider circuit is not closed, OK otherwise.
func overallStatus(s models.SystemStatus) models.HealthStatus {
	result := models.HealthStatusOK
	for _, sub := range s.Subsystems {
		if sub.Status == models.HealthStatusFail {
			return models.HealthStatusFail
		}
	}
	for _, p := range s.Providers {
		if p.Status != models.HealthStatusOK {
			result = models.HealthStatusDegraded
		}
	}
	return result
}
