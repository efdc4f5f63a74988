// Package api provides the HTTP API for NTUGo.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/ntugo/ntugo/internal/api/handler"
	"github.com/ntugo/ntugo/internal/api/middleware"
	"github.com/ntugo/ntugo/internal/api/response"
	"github.com/ntugo/ntugo/internal/auth"
	"github.com/ntugo/ntugo/internal/cache"
	"github.com/ntugo/ntugo/internal/provider/resilience"
	"github.com/ntugo/ntugo/internal/verification"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string
	RequireTLS     bool

	Database  handler.Pinger
	Providers *resilience.Registry
	Caches    func() []cache.Stats

	AuthService         *auth.Service
	VerificationService *verification.Service
	TDX                 handler.TDXClient
	Bus                 handler.BusData
	Bikes               handler.BikeData
	Assistant           handler.Assistant
	Rooms               handler.Rooms
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "ntugo-api"
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "找不到此路徑")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		e := response.NewError(r, http.StatusMethodNotAllowed, "method_not_allowed", "不支援此請求方法")
		response.Error(w, r, e)
	})

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Database:  cfg.Database,
		Providers: cfg.Providers,
		Caches:    cfg.Caches,
		Logger:    cfg.Logger,
	})
	authHandler := handler.NewAuthHandler(cfg.AuthService, cfg.VerificationService, cfg.Logger)
	tdxHandler := handler.NewTDXHandler(cfg.TDX, cfg.Logger)
	mapHandler := handler.NewMapHandler(cfg.Bus, cfg.Bikes, cfg.Logger)
	assistantHandler := handler.NewAssistantHandler(cfg.Assistant, cfg.Logger)
	communityHandler := handler.NewCommunityHandler(cfg.Rooms, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.AuthService)

	// Rate limits per endpoint category
	authRateLimit := middleware.RateLimitByIP(middleware.AuthRateLimit)           // 10 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	r.Route("/api", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Use(authRateLimit)
			r.Use(middleware.RequireJSON)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.With(authMiddleware).Get("/me", authHandler.Me)

			r.Route("/forgot-password", func(r chi.Router) {
				r.Post("/send", authHandler.SendResetCode)
				r.Post("/verify", authHandler.VerifyResetCode)
				r.Post("/reset", authHandler.ResetPassword)
			})
		})

		r.Route("/tdx", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/bus-stops", tdxHandler.BusStops)
			r.Get("/bus-realtime", tdxHandler.BusRealtime)
			r.Get("/metro-exits", tdxHandler.MetroExits)
			r.Get("/metro-timetable", tdxHandler.MetroTimetable)
			r.Get("/bus-news", tdxHandler.BusNews)
		})

		r.Route("/map", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/bus-stops", mapHandler.BusStops)
			r.Get("/bus-stops/nearby", mapHandler.NearbyBusStops)
			r.Get("/bus-arrivals", mapHandler.BusArrivals)
			r.Get("/youbike", mapHandler.YouBikeStations)
			r.Get("/youbike/search", mapHandler.SearchYouBike)
			r.Get("/youbike/nearest", mapHandler.NearestYouBike)
			r.With(authMiddleware).Post("/cache/invalidate", mapHandler.InvalidateCache)
		})

		r.Route("/ai", func(r chi.Router) {
			r.Use(expensiveRateLimit)
			r.Use(authMiddleware)
			r.Use(middleware.RequireJSON)
			r.Post("/chat", assistantHandler.Chat)
		})

		r.Route("/community", func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RateLimitByUser(middleware.StandardRateLimit)) // 100 req/min per user
			r.Use(middleware.RequireJSON)
			r.Post("/chatrooms/ai", communityHandler.GetAIRoom)
			r.Post("/chatrooms/ai/clear", communityHandler.ClearAIRoom)
			r.Post("/messages/{roomId}/ai", communityHandler.SaveAIReply)
		})
	})

	return r
}
