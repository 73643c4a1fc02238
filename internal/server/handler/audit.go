package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

// AuditHandler lists recent audit entries.
type AuditHandler struct {
	log    domain.AuditLog
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler reading from log.
func NewAuditHandler(log domain.AuditLog, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{log: log, logger: logger}
}

// List returns audit entries, newest first.
// GET /audit?limit=50&offset=0
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.log.List(r.Context(), parseListOpts(r))
	if err != nil {
		logHandler(h.logger, "audit").ErrorContext(r.Context(), "list audit entries",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
