package tokenstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrefix = "finbricks:tokens:"

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := DialRedis(context.Background(), &redis.Options{Addr: mr.Addr()}, testPrefix)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseStore(t, s)
}

func TestRedisStoreUsesPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := DialRedis(context.Background(), &redis.Options{Addr: mr.Addr()}, testPrefix)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Set(context.Background(), RefreshTokenKey, "R1"))

	got, err := mr.Get(testPrefix + RefreshTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "R1", got)
	assert.False(t, mr.Exists(RefreshTokenKey))
}

func TestDialRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := DialRedis(context.Background(), &redis.Options{Addr: addr, MaxRetries: -1}, testPrefix)
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}
