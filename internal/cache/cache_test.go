package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test"), mr
}

// exerciseStore checks the behaviour both stores share; advance moves the
// store's clock forward.
func exerciseStore(t *testing.T, s Store, advance func(time.Duration)) {
	ctx := context.Background()

	ok, err := s.Acquire(ctx, RefreshKey("t1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Acquire(ctx, RefreshKey("t1"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while the first is held")

	require.NoError(t, s.Release(ctx, RefreshKey("t1")))
	ok, err = s.Acquire(ctx, RefreshKey("t1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	advance(2 * time.Minute)
	ok, err = s.Acquire(ctx, RefreshKey("t1"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "an expired marker must not block")

	require.NoError(t, s.Set(ctx, ProfileKey("p", "v1"), "narrative", 10*time.Minute))
	v, found, err := s.Get(ctx, ProfileKey("p", "v1"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "narrative", v)

	_, found, err = s.Get(ctx, ProfileKey("p", "v2"))
	require.NoError(t, err)
	assert.False(t, found)

	advance(11 * time.Minute)
	_, found, err = s.Get(ctx, ProfileKey("p", "v1"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	exerciseStore(t, s, func(d time.Duration) { now = now.Add(d) })
}

func TestRedisStore(t *testing.T) {
	s, mr := newRedisStore(t)

	exerciseStore(t, s, mr.FastForward)
}

func TestRedisStorePrefixesKeys(t *testing.T) {
	s, mr := newRedisStore(t)

	_, err := s.Acquire(context.Background(), RefreshKey("abc"), time.Minute)
	require.NoError(t, err)

	assert.True(t, mr.Exists("test:refresh:abc"))
	assert.Equal(t, time.Minute, mr.TTL("test:refresh:abc"))
}
