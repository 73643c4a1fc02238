package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// Reporter supplies the live figures shown on the health endpoint.
type Reporter interface {
	HealthDetail() map[string]any
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	reporter Reporter
	logger   *slog.Logger
}

// NewHealthHandler creates a HealthHandler. reporter may be nil.
func NewHealthHandler(reporter Reporter, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{reporter: reporter, logger: logger}
}

// HealthCheck responds with a JSON status indicating the keeper is alive.
// GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.reporter != nil {
		for k, v := range h.reporter.HealthDetail() {
			body[k] = v
		}
	}
	writeJSON(w, http.StatusOK, body)
}
