package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/wonny/tickersync/internal/api/handlers"
	"github.com/wonny/tickersync/internal/api/middleware"
)

// Config holds router configuration
type Config struct {
	HealthHandler *handlers.HealthHandler
	RunsHandler   *handlers.RunsHandler
	StocksHandler *handlers.StocksHandler
	CORSOrigins   []string
	AccessLogger  *zerolog.Logger
}

// NewRouter creates a new HTTP router
func NewRouter(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(middleware.LoggingConfig{
		AccessLogger: cfg.AccessLogger,
		SkipPaths:    []string{"/health"},
	}))
	r.Use(middleware.Recovery)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health check
	r.Get("/health", cfg.HealthHandler.Health)
	r.Get("/health/ready", cfg.HealthHandler.Ready)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health/detailed", cfg.HealthHandler.Detailed)

		// Sync runs
		r.Get("/runs", cfg.RunsHandler.List)
		r.Get("/runs/{id}", cfg.RunsHandler.Get)

		// Stocks table
		r.Get("/stocks/stats", cfg.StocksHandler.Stats)
	})

	return r
}
