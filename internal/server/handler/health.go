package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is implemented by infrastructure clients that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health-check endpoint, probing the backing stores.
type HealthHandler struct {
	db     Pinger
	cache  Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. Either pinger may be nil, in
// which case that dependency is not probed.
func NewHealthHandler(db, cache Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, logger: logger}
}

// HealthCheck responds with the server status and the state of each backing
// dependency.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := map[string]string{}

	if h.db != nil {
		deps["postgres"] = "ok"
		if err := h.db.Ping(ctx); err != nil {
			deps["postgres"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if h.cache != nil {
		deps["redis"] = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			deps["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	body := map[string]any{
		"status":       "ok",
		"dependencies": deps,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}

	writeJSON(w, status, body)
}
