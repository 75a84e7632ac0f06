package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/tickersync/internal/api/response"
	"github.com/wonny/tickersync/internal/infra/database/postgres"
)

// DBChecker reports database health
type DBChecker interface {
	Health(ctx context.Context) *postgres.HealthStatus
}

// PingFunc checks an optional dependency such as the quote cache
type PingFunc func(ctx context.Context) error

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db        DBChecker
	redis     PingFunc
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler; redis may be nil
func NewHealthHandler(db DBChecker, redis PingFunc, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		redis:     redis,
		startTime: time.Now(),
		version:   version,
	}
}

// SimpleHealthResponse represents a simple health check response
type SimpleHealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse represents a readiness check response
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// DetailedHealthResponse represents detailed health information
type DetailedHealthResponse struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Timestamp     time.Time              `json:"timestamp"`
	Database      *postgres.HealthStatus `json:"database"`
	Redis         string                 `json:"redis,omitempty"`
}

// Health returns simple liveness check
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, SimpleHealthResponse{Status: "healthy", Timestamp: time.Now()})
}

// Ready returns readiness check with dependency checks
// GET /health/ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]string{"database": "ok"}
	ready := true
	message := ""

	if h.db.Health(ctx).Status == postgres.StatusUnhealthy {
		checks["database"] = "error"
		ready = false
		message = "Database connection failed"
	}

	if h.redis != nil {
		checks["redis"] = "ok"
		if err := h.redis(ctx); err != nil {
			checks["redis"] = "error"
			ready = false
			if message == "" {
				message = "Redis connection failed"
			}
		}
	}

	resp := ReadyResponse{Status: "ready", Timestamp: time.Now(), Checks: checks, Message: message}
	statusCode := http.StatusOK
	if !ready {
		resp.Status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}
	writeStatus(w, statusCode, resp)
}

// Detailed returns detailed system health information
// GET /api/health/detailed
func (h *HealthHandler) Detailed(w http.ResponseWriter, r *http.Request) {
	db := h.db.Health(r.Context())

	resp := DetailedHealthResponse{
		Status:        db.Status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Timestamp:     time.Now(),
		Database:      db,
	}

	if h.redis != nil {
		resp.Redis = postgres.StatusHealthy
		if err := h.redis(r.Context()); err != nil {
			resp.Redis = postgres.StatusUnhealthy
			// the cache is optional; a cache outage only degrades
			if resp.Status == postgres.StatusHealthy {
				resp.Status = postgres.StatusDegraded
			}
		}
	}

	response.Success(w, r, resp)
}
