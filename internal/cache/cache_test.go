package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, maxEntries int) *Cache {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, Options{TTL: time.Minute, MaxEntries: maxEntries}, nil)
}

func TestKeyIsDeterministic(t *testing.T) {
	assert.Equal(t, Key("summary", "abc"), Key("summary", "abc"))
	assert.NotEqual(t, Key("summary", "abc"), Key("transcript", "abc"))
	assert.NotEqual(t, Key("summary", "a", "bc"), Key("summary", "ab", "c"))
}

func TestStoreAndLoad(t *testing.T) {
	c := newTestCache(t, 0)
	ctx := context.Background()

	_, ok := Load[string](ctx, c, "k")
	assert.False(t, ok)

	Store(ctx, c, "k", "value")
	got, ok := Load[string](ctx, c, "k")
	require.True(t, ok)
	assert.Equal(t, "value", got)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestExpiredEntryMisses(t *testing.T) {
	c := newTestCache(t, 0)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.SetBytes(context.Background(), "k", []byte(`"v"`))
	now = now.Add(2 * time.Minute)

	_, ok := c.GetBytes(context.Background(), "k")
	assert.False(t, ok)
}

func TestEvictsOldestWhenFull(t *testing.T) {
	c := newTestCache(t, 2)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.SetBytes(ctx, "a", []byte("1"))
	now = now.Add(time.Second)
	c.SetBytes(ctx, "b", []byte("2"))
	now = now.Add(time.Second)
	c.SetBytes(ctx, "c", []byte("3"))

	_, ok := c.GetBytes(ctx, "a")
	assert.False(t, ok)
	_, ok = c.GetBytes(ctx, "c")
	assert.True(t, ok)
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	Store(ctx, c, "k", 1)
	_, ok := Load[int](ctx, c, "k")
	assert.False(t, ok)
	assert.NoError(t, c.Close())
}

func TestInvalidRedisURLDisablesL2(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(ctx, Options{RedisURL: "not a url", TTL: time.Minute}, nil)
	assert.Nil(t, c.rdb)
}
