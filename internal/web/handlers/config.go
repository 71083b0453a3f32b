package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"

	"github.com/kozaktomas/face-migrator/internal/config"
)

// ConfigHandler serves the configuration endpoints. The POST handlers
// hot-swap a connection and answer with the result of a fresh connection
// test, so the UI learns immediately whether the new settings work.
type ConfigHandler struct {
	rt *Runtime
}

// NewConfigHandler creates a config handler.
func NewConfigHandler(rt *Runtime) *ConfigHandler {
	return &ConfigHandler{rt: rt}
}

// Get handles GET /config. Secrets are reported as *_set booleans only.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.rt.cfg.PublicView())
}

// SetSourceDB handles POST /config/source-db.
func (h *ConfigHandler) SetSourceDB(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Path == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}

	log.Printf("repointing source database to %s", sanitizeForLog(req.Path))
	respondJSON(w, http.StatusOK, h.rt.SwapSource(r.Context(), req.Path))
}

// SetTargetAPI handles POST /config/target-api. Empty fields keep their
// current value, so the key can be rotated without resending the URL.
func (h *ConfigHandler) SetTargetAPI(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL    string `json:"url"`
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.URL == "" && req.APIKey == "" {
		respondError(w, http.StatusBadRequest, "url or api_key is required")
		return
	}
	if req.URL != "" {
		parsed, err := url.Parse(req.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			respondError(w, http.StatusBadRequest, "invalid url")
			return
		}
		log.Printf("repointing target API to %s", sanitizeForLog(req.URL))
	}

	respondJSON(w, http.StatusOK, h.rt.SwapTargetAPI(r.Context(), req.URL, req.APIKey))
}

// SetTargetDB handles POST /config/target-db. Absent fields keep their
// current value.
func (h *ConfigHandler) SetTargetDB(w http.ResponseWriter, r *http.Request) {
	var req config.TargetDBUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Port != nil && (*req.Port < 1 || *req.Port > 65535) {
		respondError(w, http.StatusBadRequest, "invalid port")
		return
	}

	log.Printf("repointing target database")
	respondJSON(w, http.StatusOK, h.rt.SwapTargetDB(r.Context(), req))
}
