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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	records []spatial.EntityRecord
}

func (m memoryStore) ListLayers(context.Context) ([]spatial.LayerRecord, error) {
	return []spatial.LayerRecord{{ID: "buildings", Name: "Buildings"}}, nil
}

func (m memoryStore) ListEntities(context.Context, string) ([]spatial.EntityRecord, error) {
	return m.records, nil
}

func (m memoryStore) UpsertLayer(context.Context, spatial.LayerRecord) error { return nil }

func (m memoryStore) UpsertEntitiesBatch(context.Context, string, []spatial.EntityRecord) (int, error) {
	return 0, nil
}

func newHandler() *SearchHandler {
	store := memoryStore{records: []spatial.EntityRecord{
		{ID: "shs", Geometry: spatial.GeometryPolygon, Properties: map[string]any{"Name": "Student Health Service"}},
	}}
	svc := spatial.NewService(store, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewSearchHandler(svc, "buildings")
}

func TestSearchFound(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var view spatial.EntityView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "shs", view.ID)
	assert.Equal(t, "Student Health Service", view.Name)
}

func TestSearchStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		code   int
	}{
		{"empty query", http.MethodGet, "/api/search?q=%20", http.StatusBadRequest},
		{"no match", http.MethodGet, "/api/search?q=zzz", http.StatusNotFound},
		{"unknown layer", http.MethodGet, "/api/search?q=a&layer=roads", http.StatusNotFound},
		{"wrong method", http.MethodPost, "/api/search?q=a", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newHandler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}
