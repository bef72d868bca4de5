// Package geo holds the small amount of WGS84 math the controller needs to
// talk to the rendering engine: degree/radian conversion, geodetic to
// earth-fixed Cartesian coordinates and camera offsets.
package geo

import "math"

const (
	wgs84A  = 6378137.0
	wgs84F  = 1 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
	wgs84B  = wgs84A * (1 - wgs84F)
)

// Coordinate is a geodetic position in degrees and meters above the ellipsoid.
type Coordinate struct {
	Longitude float64 `json:"lon"`
	Latitude  float64 `json:"lat"`
	Height    float64 `json:"height"`
}

// Valid reports whether the coordinate lies within geographic bounds.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180 &&
		!math.IsNaN(c.Height) && !math.IsInf(c.Height, 0)
}

// Cartesian converts the coordinate to earth-centered, earth-fixed meters.
func (c Coordinate) Cartesian() Cartesian3 {
	return FromDegrees(c.Longitude, c.Latitude, c.Height)
}

// Cartesian3 is an earth-centered, earth-fixed position in meters.
type Cartesian3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (c Cartesian3) Add(o Cartesian3) Cartesian3 {
	return Cartesian3{X: c.X + o.X, Y: c.Y + o.Y, Z: c.Z + o.Z}
}

func (c Cartesian3) Scale(s float64) Cartesian3 {
	return Cartesian3{X: c.X * s, Y: c.Y * s, Z: c.Z * s}
}

func (c Cartesian3) Magnitude() float64 {
	return math.Sqrt(c.X*c.X + c.Y*c.Y + c.Z*c.Z)
}

// Normalize returns the unit vector, or the zero vector for a zero input.
func (c Cartesian3) Normalize() Cartesian3 {
	m := c.Magnitude()
	if m == 0 {
		return Cartesian3{}
	}
	return c.Scale(1 / m)
}

// SurfaceNormal is the geodetic "up" direction at c on the WGS84 ellipsoid.
func (c Cartesian3) SurfaceNormal() Cartesian3 {
	n := Cartesian3{
		X: c.X / (wgs84A * wgs84A),
		Y: c.Y / (wgs84A * wgs84A),
		Z: c.Z / (wgs84B * wgs84B),
	}
	return n.Normalize()
}

// Raise moves c upward along the surface normal by meters.
func (c Cartesian3) Raise(meters float64) Cartesian3 {
	return c.Add(c.SurfaceNormal().Scale(meters))
}

// FromDegrees converts longitude/latitude in degrees and height in meters to ECEF.
func FromDegrees(lon, lat, height float64) Cartesian3 {
	lonR := ToRadians(lon)
	latR := ToRadians(lat)

	sinLat := math.Sin(latR)
	cosLat := math.Cos(latR)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Cartesian3{
		X: (n + height) * cosLat * math.Cos(lonR),
		Y: (n + height) * cosLat * math.Sin(lonR),
		Z: (n*(1-wgs84E2) + height) * sinLat,
	}
}

func ToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

func ToDegrees(radians float64) float64 {
	return radians * 180 / math.Pi
}

// HeadingPitchRange frames a target: angles in radians, range in meters.
type HeadingPitchRange struct {
	Heading float64 `json:"heading"`
	Pitch   float64 `json:"pitch"`
	Range   float64 `json:"range"`
}

// Orientation of a raw camera flight, in radians.
type Orientation struct {
	Heading float64 `json:"heading"`
	Pitch   float64 `json:"pitch"`
}

// BoundingSphere is the engine's bounding volume for an entity's geometry.
type BoundingSphere struct {
	Center Cartesian3 `json:"center"`
	Radius float64    `json:"radius"`
}
