package visibility

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"campus-map-server/internal/spatial"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var defaultPresets []byte

// ResetCategory restores every building instead of filtering.
const ResetCategory = "reset"

type LayerPreset struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Presets are the named filters and legend layers a campus is served with.
type Presets struct {
	BuildingsLayer string              `yaml:"buildings_layer"`
	Categories     map[string][]string `yaml:"categories"`
	Layers         []LayerPreset       `yaml:"layers"`
}

// LoadPresets reads presets from path, or the built-in campus presets when
// path is empty.
func LoadPresets(path string) (*Presets, error) {
	data := defaultPresets
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read presets: %w", err)
		}
	}
	return ParsePresets(data)
}

func ParsePresets(data []byte) (*Presets, error) {
	var p Presets
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Presets) validate() error {
	if p.BuildingsLayer == "" {
		return fmt.Errorf("presets: buildings_layer is required")
	}
	if _, ok := p.Categories[ResetCategory]; ok {
		return fmt.Errorf("presets: %q is reserved", ResetCategory)
	}
	seen := make(map[string]bool, len(p.Layers))
	for _, l := range p.Layers {
		if l.ID == "" {
			return fmt.Errorf("presets: layer without id")
		}
		if seen[l.ID] {
			return fmt.Errorf("presets: duplicate layer %q", l.ID)
		}
		seen[l.ID] = true
	}
	if !seen[p.BuildingsLayer] {
		return fmt.Errorf("presets: buildings layer %q is not listed in layers", p.BuildingsLayer)
	}
	return nil
}

// Names returns the building names of a category filter.
func (p *Presets) Names(category string) ([]string, bool) {
	names, ok := p.Categories[category]
	return names, ok
}

// LayerIDs lists legend layers in order.
func (p *Presets) LayerIDs() []string {
	ids := make([]string, 0, len(p.Layers))
	for _, l := range p.Layers {
		ids = append(ids, l.ID)
	}
	return ids
}

// Declare adds every legend layer to set, empty and unloaded.
func (p *Presets) Declare(set *spatial.LayerSet) {
	for _, l := range p.Layers {
		set.Declare(l.ID, l.Name)
	}
}

// Classify implements spatial.Classifier. Names listed under a category take
// that category; any other entity of the buildings layer is a building.
func (p *Presets) Classify(layerID, name string) (spatial.Category, bool) {
	if layerID != p.BuildingsLayer {
		return "", false
	}
	categories := make([]string, 0, len(p.Categories))
	for c := range p.Categories {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for _, category := range categories {
		for _, n := range p.Categories[category] {
			if n == name {
				return spatial.ParseCategory(category), true
			}
		}
	}
	return spatial.CategoryBuilding, true
}
