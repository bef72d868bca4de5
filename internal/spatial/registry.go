package spatial

// Registry indexes the entities of one layer in insertion order.
// It is not safe for concurrent use; a controller owns it from its event loop.
type Registry struct {
	entities []*Entity
	index    map[string]int
}

func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds e. A duplicate ID replaces the earlier entity in its
// original slot so registration order is preserved.
func (r *Registry) Register(e *Entity) {
	if e == nil {
		return
	}
	if i, ok := r.index[e.ID]; ok {
		r.entities[i] = e
		return
	}
	r.index[e.ID] = len(r.entities)
	r.entities = append(r.entities, e)
}

func (r *Registry) Get(id string) (*Entity, bool) {
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.entities[i], true
}

func (r *Registry) All() []*Entity {
	out := make([]*Entity, len(r.entities))
	copy(out, r.entities)
	return out
}

func (r *Registry) ByCategory(category Category) []*Entity {
	var out []*Entity
	for _, e := range r.entities {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.entities)
}

// NewRegistryFromRecords registers a fresh entity for each row.
func NewRegistryFromRecords(records []EntityRecord) *Registry {
	reg := NewRegistry()
	for _, rec := range records {
		reg.Register(rec.Entity())
	}
	return reg
}
