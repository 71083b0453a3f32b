package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-migrator/internal/analysis"
)

// AnalysisHandler serves the analysis run and its drill-down endpoints.
type AnalysisHandler struct {
	rt *Runtime
}

// NewAnalysisHandler creates an analysis handler.
func NewAnalysisHandler(rt *Runtime) *AnalysisHandler {
	return &AnalysisHandler{rt: rt}
}

// thresholds merges optional request values over the configured defaults.
func (h *AnalysisHandler) thresholds(minIoU, maxCenterDist *float64) (analysis.Thresholds, error) {
	matching := h.rt.cfg.Snapshot().Matching
	t := analysis.Thresholds{
		MinIoU:        matching.MinIoU,
		MaxCenterDist: matching.MaxCenterDist,
	}
	if minIoU != nil {
		if *minIoU <= 0 || *minIoU > 1 {
			return t, fmt.Errorf("min_iou must be in (0, 1]")
		}
		t.MinIoU = *minIoU
	}
	if maxCenterDist != nil {
		if *maxCenterDist < 0 || *maxCenterDist > 1 {
			return t, fmt.Errorf("max_center_dist must be in [0, 1]")
		}
		t.MaxCenterDist = *maxCenterDist
	}
	return t, nil
}

// Run handles POST /algorithm/run. Both body fields are optional; an empty
// body runs with the configured thresholds.
func (h *AnalysisHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MinIoU        *float64 `json:"min_iou"`
		MaxCenterDist *float64 `json:"max_center_dist"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	thresholds, err := h.thresholds(req.MinIoU, req.MaxCenterDist)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	bundle, err := h.rt.coordinator.Run(r.Context(), thresholds)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, bundle)
}

// MatchDetails handles GET /match-details/{srcPersonId}/{clusterId}. The
// thresholds arrive as query parameters so the breakdown reflects the view
// the user is currently looking at.
func (h *AnalysisHandler) MatchDetails(w http.ResponseWriter, r *http.Request) {
	personID, err := strconv.ParseInt(chi.URLParam(r, "srcPersonId"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid source person id")
		return
	}
	clusterID := chi.URLParam(r, "clusterId")
	if clusterID == "" {
		respondError(w, http.StatusBadRequest, "missing cluster id")
		return
	}

	minIoU, err := queryFloat(r, "min_iou")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxCenterDist, err := queryFloat(r, "max_center_dist")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	thresholds, err := h.thresholds(minIoU, maxCenterDist)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	details, err := h.rt.coordinator.MatchDetailsFor(r.Context(), personID, clusterID, thresholds)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, details)
}

// MissingPeople handles GET /diagnostics/missing-people.
func (h *AnalysisHandler) MissingPeople(w http.ResponseWriter, r *http.Request) {
	report, err := h.rt.coordinator.MissingPeople(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// OrphanPeople handles GET /diagnostics/orphan-people.
func (h *AnalysisHandler) OrphanPeople(w http.ResponseWriter, r *http.Request) {
	report, err := h.rt.coordinator.OrphanPeople(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// queryFloat parses an optional float query parameter.
func queryFloat(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", name)
	}
	return &f, nil
}
