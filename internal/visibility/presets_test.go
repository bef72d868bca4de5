package visibility

import (
	"os"
	"path/filepath"
	"testing"

	"campus-map-server/internal/spatial"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPresets(t *testing.T) {
	p, err := LoadPresets("")
	require.NoError(t, err)

	assert.Equal(t, "buildings", p.BuildingsLayer)
	clinic, ok := p.Names("clinic")
	require.True(t, ok)
	assert.Equal(t, []string{"Natural Science 2", "Student Health Service"}, clinic)
	assert.Equal(t, []string{"buildings", "main-road", "paths", "green-spaces", "lights", "entrance"}, p.LayerIDs())
}

func TestClassify(t *testing.T) {
	p, err := LoadPresets("")
	require.NoError(t, err)

	c, ok := p.Classify("buildings", "Student Mental")
	require.True(t, ok)
	assert.Equal(t, spatial.CategoryMental, c)

	c, ok = p.Classify("buildings", "Library")
	require.True(t, ok)
	assert.Equal(t, spatial.CategoryBuilding, c)

	_, ok = p.Classify("lights", "Lamp 1")
	assert.False(t, ok)
}

func TestDeclareLayers(t *testing.T) {
	p, err := LoadPresets("")
	require.NoError(t, err)

	set := spatial.NewLayerSet()
	p.Declare(set)

	l, ok := set.Get("green-spaces")
	require.True(t, ok)
	assert.Equal(t, "Green spaces", l.Name)
	assert.False(t, l.Loaded)
}

func TestLoadPresetsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
buildings_layer: halls
categories:
  clinic: [Sick Bay]
layers:
  - id: halls
    name: Halls
`), 0o600))

	p, err := LoadPresets(path)
	require.NoError(t, err)
	assert.Equal(t, "halls", p.BuildingsLayer)
}

func TestParsePresetsRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"missing buildings layer": "layers: [{id: a}]",
		"buildings not listed":    "buildings_layer: b\nlayers: [{id: a}]",
		"duplicate layer":         "buildings_layer: a\nlayers: [{id: a}, {id: a}]",
		"reserved category":       "buildings_layer: a\ncategories: {reset: [x]}\nlayers: [{id: a}]",
		"bad yaml":                "buildings_layer: [",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePresets([]byte(doc))
			assert.Error(t, err)
		})
	}
}
