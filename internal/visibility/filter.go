// Package visibility toggles which campus entities and layers are shown.
package visibility

import (
	"campus-map-server/internal/spatial"
)

// Filter applies category and legend selections to a viewer's layers.
// Only footprint entities of the buildings layer take part in category
// filtering; everything else is left untouched.
type Filter struct {
	layers         *spatial.LayerSet
	buildingsLayer string
}

func NewFilter(layers *spatial.LayerSet, buildingsLayer string) *Filter {
	return &Filter{layers: layers, buildingsLayer: buildingsLayer}
}

// ShowOnly shows the footprints whose display name is in names and hides every
// other footprint. Matching is exact. It returns the footprints it set, or nil
// while the buildings layer has not loaded.
func (f *Filter) ShowOnly(names []string) []*spatial.Entity {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return f.apply(func(e *spatial.Entity) bool {
		name, ok := e.DisplayName()
		if !ok {
			return false
		}
		_, want := set[name]
		return want
	})
}

// ResetAll shows every footprint.
func (f *Filter) ResetAll() []*spatial.Entity {
	return f.apply(func(*spatial.Entity) bool { return true })
}

func (f *Filter) apply(visible func(*spatial.Entity) bool) []*spatial.Entity {
	reg, ok := f.layers.Loaded(f.buildingsLayer)
	if !ok {
		return nil
	}

	var touched []*spatial.Entity
	for _, e := range reg.All() {
		if !e.Geometry.Footprint() {
			continue
		}
		e.Visible = visible(e)
		touched = append(touched, e)
	}
	return touched
}

// ShowLayer shows layerID and hides every other known layer, returning the
// resulting layer visibility. Unknown layers leave the map as it was.
func (f *Filter) ShowLayer(layerID string) (map[string]bool, bool) {
	if _, ok := f.layers.Get(layerID); !ok {
		return nil, false
	}

	shown := make(map[string]bool)
	for _, l := range f.layers.Layers() {
		l.Shown = l.ID == layerID
		shown[l.ID] = l.Shown
	}
	return shown, true
}
