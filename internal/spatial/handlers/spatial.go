package handlers

import (
	"log/slog"
	"net/http"

	"campus-map-server/internal/shared/errors"
	"campus-map-server/internal/shared/response"
	"campus-map-server/internal/spatial"
)

type SpatialHandler struct {
	service *spatial.Service
}

func NewSpatialHandler(service *spatial.Service) *SpatialHandler {
	return &SpatialHandler{service: service}
}

func (h *SpatialHandler) GetLayers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_layers")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	layers, err := h.service.Layers(ctx)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	if layers == nil {
		layers = []spatial.LayerRecord{}
	}

	response.Success(w, http.StatusOK, layers)
}

// GetEntities lists a layer's entities, optionally only those classified under
// ?category=.
func (h *SpatialHandler) GetEntities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_layer_entities")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	layerID := r.PathValue("id")
	if layerID == "" {
		response.Error(w, r, logger, errors.Validation("layer ID is required"))
		return
	}

	reg, err := h.service.LoadRegistry(ctx, layerID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	entities := reg.All()
	if category := r.URL.Query().Get("category"); category != "" {
		entities = reg.ByCategory(spatial.Category(category))
	}

	views := make([]spatial.EntityView, 0, len(entities))
	for _, e := range entities {
		views = append(views, e.View())
	}

	response.Success(w, http.StatusOK, views)
}
