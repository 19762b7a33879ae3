package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestResolutionCaches(t *testing.T) {
	_, client := newTestRedis(t)

	caches := map[string]ResolutionCache{
		"memory": NewMemoryResolutionCache(),
		"redis":  NewRedisResolutionCache(client),
	}
	for name, c := range caches {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := c.Get(ctx, "Artist SongX")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, c.Set(ctx, "Artist SongX", "dQw4w9WgXcQ"))
			id, ok, err := c.Get(ctx, "Artist SongX")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "dQw4w9WgXcQ", id)

			// 关键词区分大小写，按原样作为 key
			_, ok, err = c.Get(ctx, "artist songx")
			require.NoError(t, err)
			assert.False(t, ok)

			n, err := c.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestRedisResolutionCacheNeverExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewRedisResolutionCache(client)
	require.NoError(t, c.Set(context.Background(), "q", "id"))

	assert.Zero(t, mr.TTL(fmt.Sprintf(resolveKey, "q")))
}

func TestMemoryResolutionCacheConcurrentWrites(t *testing.T) {
	c := NewMemoryResolutionCache()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.Set(ctx, "same query", "same-id")
			_ = c.Set(ctx, fmt.Sprintf("q%d", i), "id")
			_, _, _ = c.Get(ctx, "same query")
		}(i)
	}
	wg.Wait()

	n, _ := c.Len(ctx)
	assert.Equal(t, 17, n)
}

func TestFallbackServesLocalCopyWhenRedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	c := NewFallback(NewRedisResolutionCache(client))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "q", "id"))
	mr.Close()

	id, ok, err := c.Get(ctx, "q")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "id", id)
}
