package spatial

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// CatalogFile is the YAML form of one layer ready for import.
type CatalogFile struct {
	Layer struct {
		ID        string `yaml:"id"`
		Name      string `yaml:"name"`
		SortOrder int    `yaml:"sort_order"`
	} `yaml:"layer"`
	Entities []struct {
		ID         string         `yaml:"id"`
		Name       string         `yaml:"name"`
		Category   string         `yaml:"category"`
		Geometry   string         `yaml:"geometry"`
		Properties map[string]any `yaml:"properties"`
		Lon        *float64       `yaml:"lon"`
		Lat        *float64       `yaml:"lat"`
		Height     float64        `yaml:"height"`
		Radius     *float64       `yaml:"radius"`
	} `yaml:"entities"`
}

// ParseCatalog decodes a catalog file into the layer and entity rows Import takes.
func ParseCatalog(data []byte) (LayerRecord, []EntityRecord, error) {
	var f CatalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return LayerRecord{}, nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if f.Layer.ID == "" {
		return LayerRecord{}, nil, fmt.Errorf("catalog: layer.id is required")
	}

	layer := LayerRecord{ID: f.Layer.ID, Name: f.Layer.Name, SortOrder: f.Layer.SortOrder}
	if layer.Name == "" {
		layer.Name = layer.ID
	}

	records := make([]EntityRecord, 0, len(f.Entities))
	for i, e := range f.Entities {
		if e.ID == "" {
			return LayerRecord{}, nil, fmt.Errorf("catalog: entity %d has no id", i)
		}
		if (e.Lon == nil) != (e.Lat == nil) {
			return LayerRecord{}, nil, fmt.Errorf("catalog: entity %s needs both lon and lat", e.ID)
		}

		rec := EntityRecord{
			ID:         e.ID,
			LayerID:    layer.ID,
			Category:   ParseCategory(e.Category),
			Geometry:   Geometry(e.Geometry),
			Properties: e.Properties,
			Longitude:  e.Lon,
			Latitude:   e.Lat,
			Height:     e.Height,
			Radius:     e.Radius,
		}
		if rec.Geometry == "" {
			rec.Geometry = GeometryNone
		}
		if e.Name != "" {
			name := e.Name
			rec.Name = &name
		}
		records = append(records, rec)
	}
	return layer, records, nil
}
