package redis

import (
	"testing"

	"campus-map-server/internal/shared/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "campus:marker:abc", Key("marker", "abc"))
	assert.Equal(t, "campus:", Key())
}

func TestConnectDisabledReturnsNil(t *testing.T) {
	client, err := Connect(config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, client)
	assert.NoError(t, client.Close())
}
