package handlers

import (
	"encoding/json"
	"net/http"

	"docdex/internal/contextutil"
	"docdex/internal/syncer"
)

// StatusHandler reports the sync engine's aggregate state.
type StatusHandler struct {
	svc syncer.Service
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(svc syncer.Service) *StatusHandler {
	return &StatusHandler{svc: svc}
}

// ServeHTTP handles sync status requests.
//
// swagger:route GET /api/sync/status sync syncStatus
//
// Returns folder counts and per-folder state partitioned by sync status.
//
//	Responses:
//	  200: StatusReport
//	  500: ErrorResponse
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	report, err := h.svc.Status(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to build sync status report", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to build sync status report")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}

// writeError writes an error response.
func (h *StatusHandler) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}
