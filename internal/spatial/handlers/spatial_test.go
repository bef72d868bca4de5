package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"campus-map-server/internal/spatial"
	"campus-map-server/internal/visibility"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct{}

func (memoryStore) ListLayers(context.Context) ([]spatial.LayerRecord, error) {
	return []spatial.LayerRecord{{ID: "buildings", Name: "Buildings"}, {ID: "paths", Name: "paths", SortOrder: 1}}, nil
}

func (memoryStore) ListEntities(_ context.Context, layerID string) ([]spatial.EntityRecord, error) {
	if layerID != "buildings" {
		return nil, nil
	}
	return []spatial.EntityRecord{
		{ID: "lib", LayerID: "buildings", Geometry: spatial.GeometryPolygon, Properties: map[string]any{"Name": "Library"}},
		{ID: "shs", LayerID: "buildings", Geometry: spatial.GeometryPolygon, Properties: map[string]any{"Name": "Student Health Service"}},
	}, nil
}

func (memoryStore) UpsertLayer(context.Context, spatial.LayerRecord) error { return nil }

func (memoryStore) UpsertEntitiesBatch(context.Context, string, []spatial.EntityRecord) (int, error) {
	return 0, nil
}

func newMux(t *testing.T) *http.ServeMux {
	t.Helper()
	presets, err := visibility.LoadPresets("")
	require.NoError(t, err)
	svc := spatial.NewService(memoryStore{}, presets, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := NewSpatialHandler(svc)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/layers", h.GetLayers)
	mux.HandleFunc("GET /api/layers/{id}/entities", h.GetEntities)
	return mux
}

func TestGetLayers(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/layers", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var layers []spatial.LayerRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &layers))
	require.Len(t, layers, 2)
	assert.Equal(t, "buildings", layers[0].ID)
}

func TestGetEntities(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/layers/buildings/entities", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var views []spatial.EntityView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "Library", views[0].Name)
	assert.Equal(t, spatial.CategoryBuilding, views[0].Category)
	assert.True(t, views[0].Visible)
}

func TestGetEntitiesByCategory(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/layers/buildings/entities?category=clinic", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var views []spatial.EntityView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "shs", views[0].ID)

	rec = httptest.NewRecorder()
	newMux(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/layers/buildings/entities?category=mental", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetEntitiesUnknownLayer(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/layers/rivers/entities", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
