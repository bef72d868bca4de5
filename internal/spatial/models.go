package spatial

import (
	"errors"
	"fmt"
	"time"

	"campus-map-server/internal/geo"
)

type Category string

const (
	CategoryBuilding Category = "building"
	CategoryClinic   Category = "clinic"
	CategoryMental   Category = "mental"
	CategoryOther    Category = "other"
)

func ParseCategory(s string) Category {
	switch Category(s) {
	case CategoryBuilding, CategoryClinic, CategoryMental:
		return Category(s)
	default:
		return CategoryOther
	}
}

// Geometry is the kind of graphics the rendering engine draws for an entity.
type Geometry string

const (
	GeometryPolygon   Geometry = "polygon"
	GeometryPolyline  Geometry = "polyline"
	GeometryPoint     Geometry = "point"
	GeometryModel     Geometry = "model"
	GeometryBillboard Geometry = "billboard"
	GeometryNone      Geometry = "none"
)

// Footprint reports whether the geometry is a displayable building footprint.
// Only footprints take part in search and category filtering.
func (g Geometry) Footprint() bool {
	return g == GeometryPolygon
}

var ErrPropertyMissing = errors.New("property missing")

// Properties is a bag of entity attributes. Reading a value may fail.
type Properties interface {
	Value(key string) (any, error)
}

// PropertyMap is a Properties backed by decoded JSON attributes.
type PropertyMap map[string]any

func (p PropertyMap) Value(key string) (any, error) {
	v, ok := p[key]
	if !ok {
		return nil, ErrPropertyMissing
	}
	return v, nil
}

// PositionProvider yields an entity's Cartesian position at a point in time.
type PositionProvider interface {
	PositionAt(t time.Time) (geo.Cartesian3, error)
}

// StaticPosition never moves.
type StaticPosition struct {
	Coordinate geo.Coordinate
}

func (p StaticPosition) PositionAt(time.Time) (geo.Cartesian3, error) {
	return p.Coordinate.Cartesian(), nil
}

type Entity struct {
	ID         string
	LayerID    string
	Name       string
	Category   Category
	Geometry   Geometry
	Visible    bool
	Properties Properties
	Position   PositionProvider
	Bounds     *geo.BoundingSphere
}

// DisplayName resolves the name shown to users: the Name property first,
// then the entity's own name when the property is absent. A bag that fails to
// read yields no name at all.
func (e *Entity) DisplayName() (string, bool) {
	if e == nil || e.Properties == nil {
		return "", false
	}
	v, err := e.Properties.Value("Name")
	switch {
	case errors.Is(err, ErrPropertyMissing):
		if e.Name != "" {
			return e.Name, true
		}
		return "", false
	case err != nil, v == nil:
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Coordinate returns the entity's current geodetic position when it has a
// static one.
func (e *Entity) Coordinate() (geo.Coordinate, bool) {
	if p, ok := e.Position.(StaticPosition); ok {
		return p.Coordinate, true
	}
	return geo.Coordinate{}, false
}

// EntityView is the JSON shape of an entity for clients.
type EntityView struct {
	ID       string              `json:"id"`
	LayerID  string              `json:"layer_id"`
	Name     string              `json:"name,omitempty"`
	Category Category            `json:"category"`
	Geometry Geometry            `json:"geometry"`
	Visible  bool                `json:"visible"`
	Position *geo.Coordinate     `json:"position,omitempty"`
	Bounds   *geo.BoundingSphere `json:"bounds,omitempty"`
}

func (e *Entity) View() EntityView {
	view := EntityView{
		ID:       e.ID,
		LayerID:  e.LayerID,
		Category: e.Category,
		Geometry: e.Geometry,
		Visible:  e.Visible,
		Bounds:   e.Bounds,
	}
	if name, ok := e.DisplayName(); ok {
		view.Name = name
	}
	if c, ok := e.Coordinate(); ok {
		view.Position = &c
	}
	return view
}

// LayerRecord is a catalog layer row.
type LayerRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

// EntityRecord is a catalog entity row.
type EntityRecord struct {
	ID         string         `json:"id"`
	LayerID    string         `json:"layer_id"`
	Name       *string        `json:"name"`
	Category   Category       `json:"category"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
	Longitude  *float64       `json:"lon"`
	Latitude   *float64       `json:"lat"`
	Height     float64        `json:"height"`
	Radius     *float64       `json:"radius"`
}

// Entity builds a fresh, visible scene entity from the row.
func (r EntityRecord) Entity() *Entity {
	e := &Entity{
		ID:       r.ID,
		LayerID:  r.LayerID,
		Category: ParseCategory(string(r.Category)),
		Geometry: r.Geometry,
		Visible:  true,
	}
	if e.Geometry == "" {
		e.Geometry = GeometryNone
	}
	if r.Name != nil {
		e.Name = *r.Name
	}
	if r.Properties != nil {
		e.Properties = PropertyMap(r.Properties)
	}
	if r.Longitude != nil && r.Latitude != nil {
		coord := geo.Coordinate{Longitude: *r.Longitude, Latitude: *r.Latitude, Height: r.Height}
		e.Position = StaticPosition{Coordinate: coord}
		if r.Radius != nil && *r.Radius > 0 {
			e.Bounds = &geo.BoundingSphere{Center: coord.Cartesian(), Radius: *r.Radius}
		}
	}
	return e
}
