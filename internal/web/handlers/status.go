package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-migrator/internal/store"
)

// StatusHandler serves the connection and store overview endpoints.
type StatusHandler struct {
	rt *Runtime
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(rt *Runtime) *StatusHandler {
	return &StatusHandler{rt: rt}
}

// Get handles GET /status.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.rt.Statuses(r.Context()))
}

// statsResponse carries per-store totals. Totals are nil for a store that
// could not be reached; its error string says why.
type statsResponse struct {
	Source      *store.SourceTotals `json:"source,omitempty"`
	SourceError string              `json:"source_error,omitempty"`
	Target      *store.TargetTotals `json:"target,omitempty"`
	TargetError string              `json:"target_error,omitempty"`
}

// Stats handles GET /stats.
func (h *StatusHandler) Stats(w http.ResponseWriter, r *http.Request) {
	statuses := h.rt.Statuses(r.Context())
	respondJSON(w, http.StatusOK, statsResponse{
		Source:      statuses.SourceDB.Totals,
		SourceError: statuses.SourceDB.Error,
		Target:      statuses.TargetDB.Totals,
		TargetError: statuses.TargetDB.Error,
	})
}
