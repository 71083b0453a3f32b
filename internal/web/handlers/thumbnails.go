package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-migrator/internal/immichapi"
)

// ThumbnailsHandler proxies thumbnail images from the Immich API, so the UI
// never needs the API key.
type ThumbnailsHandler struct {
	rt *Runtime
}

// NewThumbnailsHandler creates a thumbnails handler.
func NewThumbnailsHandler(rt *Runtime) *ThumbnailsHandler {
	return &ThumbnailsHandler{rt: rt}
}

// Cluster handles GET /thumbnails/cluster/{id}.
func (h *ThumbnailsHandler) Cluster(w http.ResponseWriter, r *http.Request) {
	h.proxy(w, r, func(ctx context.Context, client ImmichClient, id string) ([]byte, string, error) {
		return client.GetPersonThumbnail(ctx, id)
	})
}

// Asset handles GET /thumbnails/asset/{id}. An optional ?size= query is
// forwarded to the server.
func (h *ThumbnailsHandler) Asset(w http.ResponseWriter, r *http.Request) {
	size := r.URL.Query().Get("size")
	h.proxy(w, r, func(ctx context.Context, client ImmichClient, id string) ([]byte, string, error) {
		return client.GetAssetThumbnail(ctx, id, size)
	})
}

func (h *ThumbnailsHandler) proxy(
	w http.ResponseWriter,
	r *http.Request,
	fetch func(context.Context, ImmichClient, string) ([]byte, string, error),
) {
	id := chi.URLParam(r, "id")
	if uuid.Validate(id) != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}

	client, err := h.rt.apiClient()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	data, contentType, err := fetch(r.Context(), client, id)
	if err != nil {
		if immichapi.IsNotFoundError(err) {
			respondError(w, http.StatusNotFound, "thumbnail not found")
			return
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	if contentType == "" {
		contentType = "image/jpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
