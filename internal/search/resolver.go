// Package search resolves free-text building queries against a layer registry.
package search

import (
	"strings"

	"campus-map-server/internal/shared/errors"
	"campus-map-server/internal/spatial"
)

var (
	ErrEmptyQuery = errors.Validation("empty search query")
	ErrNotFound   = errors.NotFoundf("no matching building")
)

// Resolver matches queries against footprint entities, exact names first and
// then substrings, each pass in registration order.
type Resolver struct {
	registry *spatial.Registry
}

func NewResolver(registry *spatial.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Normalize trims the query and folds its case.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func (r *Resolver) Resolve(query string) (*spatial.Entity, error) {
	q := Normalize(query)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if r.registry == nil {
		return nil, ErrNotFound
	}

	candidates := r.candidates()
	for _, c := range candidates {
		if c.name == q {
			return c.entity, nil
		}
	}
	for _, c := range candidates {
		if strings.Contains(c.name, q) {
			return c.entity, nil
		}
	}
	return nil, ErrNotFound
}

type candidate struct {
	entity *spatial.Entity
	name   string
}

// candidates reads each name once; entities without one are skipped.
func (r *Resolver) candidates() []candidate {
	all := r.registry.All()
	out := make([]candidate, 0, len(all))
	for _, e := range all {
		if !e.Geometry.Footprint() {
			continue
		}
		name, ok := e.DisplayName()
		if !ok {
			continue
		}
		out = append(out, candidate{entity: e, name: strings.ToLower(name)})
	}
	return out
}
