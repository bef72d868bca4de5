package spatial

// Layer is a named collection of entities loaded together.
type Layer struct {
	ID       string
	Name     string
	Shown    bool
	Loaded   bool
	Entities *Registry
}

type LayerView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Shown    bool   `json:"shown"`
	Loaded   bool   `json:"loaded"`
	Entities int    `json:"entities"`
}

func (l *Layer) View() LayerView {
	return LayerView{
		ID:       l.ID,
		Name:     l.Name,
		Shown:    l.Shown,
		Loaded:   l.Loaded,
		Entities: l.Entities.Len(),
	}
}

// LayerSet holds a session's known layers in legend order.
type LayerSet struct {
	layers []*Layer
	index  map[string]*Layer
}

func NewLayerSet() *LayerSet {
	return &LayerSet{index: make(map[string]*Layer)}
}

// Declare adds an empty, shown, not yet loaded layer. Declaring a known ID
// returns the existing layer.
func (s *LayerSet) Declare(id, name string) *Layer {
	if l, ok := s.index[id]; ok {
		return l
	}
	if name == "" {
		name = id
	}
	l := &Layer{ID: id, Name: name, Shown: true, Entities: NewRegistry()}
	s.layers = append(s.layers, l)
	s.index[id] = l
	return l
}

// Install replaces a layer's registry with a loaded one, declaring the
// layer if it was unknown.
func (s *LayerSet) Install(id string, reg *Registry) *Layer {
	l := s.Declare(id, "")
	if reg == nil {
		reg = NewRegistry()
	}
	l.Entities = reg
	l.Loaded = true
	return l
}

func (s *LayerSet) Get(id string) (*Layer, bool) {
	l, ok := s.index[id]
	return l, ok
}

// Loaded returns the layer's registry once its load has completed.
func (s *LayerSet) Loaded(id string) (*Registry, bool) {
	l, ok := s.index[id]
	if !ok || !l.Loaded {
		return nil, false
	}
	return l.Entities, true
}

func (s *LayerSet) Layers() []*Layer {
	out := make([]*Layer, len(s.layers))
	copy(out, s.layers)
	return out
}

func (s *LayerSet) Views() []LayerView {
	views := make([]LayerView, 0, len(s.layers))
	for _, l := range s.layers {
		views = append(views, l.View())
	}
	return views
}
