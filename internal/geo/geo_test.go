package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromDegreesEquatorAndPole(t *testing.T) {
	eq := FromDegrees(0, 0, 0)
	assert.InDelta(t, wgs84A, eq.X, 1e-6)
	assert.InDelta(t, 0, eq.Y, 1e-6)
	assert.InDelta(t, 0, eq.Z, 1e-6)

	pole := FromDegrees(0, 90, 0)
	assert.InDelta(t, 0, pole.X, 1e-6)
	assert.InDelta(t, wgs84B, pole.Z, 1e-3)
}

func TestRaiseMovesAlongNormal(t *testing.T) {
	ground := FromDegrees(28.2314, -25.7550, 0)
	raised := ground.Raise(300)

	expected := FromDegrees(28.2314, -25.7550, 300)
	assert.InDelta(t, expected.X, raised.X, 1e-3)
	assert.InDelta(t, expected.Y, raised.Y, 1e-3)
	assert.InDelta(t, expected.Z, raised.Z, 1e-3)
}

func TestNormalizeZero(t *testing.T) {
	assert.Equal(t, Cartesian3{}, Cartesian3{}.Normalize())
}

func TestAngles(t *testing.T) {
	assert.InDelta(t, -math.Pi/2, ToRadians(-90), 1e-12)
	assert.InDelta(t, 45, ToDegrees(math.Pi/4), 1e-12)
}

func TestCoordinateValid(t *testing.T) {
	assert.True(t, Coordinate{Longitude: 28.23, Latitude: -25.75}.Valid())
	assert.False(t, Coordinate{Longitude: 200, Latitude: 0}.Valid())
	assert.False(t, Coordinate{Latitude: 0, Height: math.NaN()}.Valid())
}
