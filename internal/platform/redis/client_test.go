package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movetrack/internal/platform/config"
)

func TestOptions(t *testing.T) {
	opts, err := Options(config.Redis{
		URL:          "redis://cache:6380/2",
		PoolSize:     7,
		MinIdleConns: 2,
		ReadTimeout:  time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, 2, opts.MinIdleConns)
	assert.Equal(t, time.Second, opts.ReadTimeout)
	assert.Equal(t, "movetrack", opts.ClientName)
}

func TestOptionsRejectsBadURL(t *testing.T) {
	_, err := Options(config.Redis{URL: "http://not-redis"})
	require.Error(t, err)
}

func TestNewWithoutURL(t *testing.T) {
	client, err := New(context.Background(), config.Redis{})
	require.NoError(t, err)
	assert.Nil(t, client)
}
