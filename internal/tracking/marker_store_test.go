package tracking

import (
	"context"
	"testing"
	"time"

	"campus-map-server/internal/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMarkerStoreExpires(t *testing.T) {
	now := time.Now()
	s := NewMemoryMarkerStore(time.Minute)
	s.now = func() time.Time { return now }

	pos := Position{Coordinate: geo.Coordinate{Longitude: 28.23, Latitude: -25.75}}
	require.NoError(t, s.Save(context.Background(), "a", pos))

	got, ok, err := s.Load(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pos, got)

	now = now.Add(2 * time.Minute)
	_, ok, _ = s.Load(context.Background(), "a")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Cleanup())
}

func TestNewMarkerStoreFallsBackToMemory(t *testing.T) {
	_, ok := NewMarkerStore(nil, time.Hour).(*MemoryMarkerStore)
	assert.True(t, ok)
}

func TestMarkerKey(t *testing.T) {
	assert.Equal(t, "campus:marker:abc", markerKey("abc"))
}
