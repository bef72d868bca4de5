package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
layer:
  id: buildings
  name: Buildings
entities:
  - id: shs
    geometry: polygon
    category: clinic
    properties:
      Name: Student Health Service
    lon: 28.2311
    lat: -25.7547
    radius: 35
  - id: lamp-1
    name: Lamp
`

func TestParseCatalog(t *testing.T) {
	layer, records, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)

	assert.Equal(t, "buildings", layer.ID)
	assert.Equal(t, "Buildings", layer.Name)
	require.Len(t, records, 2)

	shs := records[0]
	assert.Equal(t, "buildings", shs.LayerID)
	assert.Equal(t, GeometryPolygon, shs.Geometry)
	assert.Equal(t, CategoryClinic, shs.Category)
	assert.Equal(t, "Student Health Service", shs.Properties["Name"])
	require.NotNil(t, shs.Longitude)
	assert.Equal(t, 28.2311, *shs.Longitude)
	assert.Equal(t, 35.0, *shs.Radius)
	assert.Nil(t, shs.Name)

	lamp := records[1]
	assert.Equal(t, GeometryNone, lamp.Geometry)
	assert.Equal(t, CategoryOther, lamp.Category)
	require.NotNil(t, lamp.Name)
	assert.Equal(t, "Lamp", *lamp.Name)
	assert.Nil(t, lamp.Longitude)
}

func TestParseCatalogRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no layer", "entities: []"},
		{"entity without id", "layer: {id: paths}\nentities:\n  - name: x"},
		{"half a coordinate", "layer: {id: paths}\nentities:\n  - id: a\n    lon: 1"},
		{"not yaml", "layer: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseCatalog([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
