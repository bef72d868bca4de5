package handlers

import (
	"log/slog"
	"net/http"

	"campus-map-server/internal/search"
	"campus-map-server/internal/shared/errors"
	"campus-map-server/internal/shared/response"
	"campus-map-server/internal/spatial"
)

type SearchHandler struct {
	service      *spatial.Service
	defaultLayer string
}

func NewSearchHandler(service *spatial.Service, defaultLayer string) *SearchHandler {
	return &SearchHandler{service: service, defaultLayer: defaultLayer}
}

// ServeHTTP resolves ?q= against a layer (?layer=, defaulting to buildings).
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "search")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	layerID := r.URL.Query().Get("layer")
	if layerID == "" {
		layerID = h.defaultLayer
	}

	reg, err := h.service.LoadRegistry(ctx, layerID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	entity, err := search.NewResolver(reg).Resolve(r.URL.Query().Get("q"))
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, entity.View())
}
