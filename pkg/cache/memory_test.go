package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(100, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "user:u1", []byte("ada"), "users", "users:u1"))

	v, ok, err := c.Get(ctx, "user:u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("ada"), v)

	_, ok, err = c.Get(ctx, "user:u2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_InvalidKey(t *testing.T) {
	c := NewMemoryCache(100, time.Minute)
	ctx := context.Background()

	_, _, err := c.Get(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, c.Set(ctx, "", []byte("x")), ErrInvalidKey)
}

func TestMemoryCache_InvalidateTags(t *testing.T) {
	c := NewMemoryCache(100, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "user:u1", []byte("1"), "users", "users:u1"))
	require.NoError(t, c.Set(ctx, "user:u2", []byte("2"), "users", "users:u2"))
	require.NoError(t, c.Set(ctx, "users:list:50:0", []byte("[]"), "users"))
	require.NoError(t, c.Set(ctx, "other", []byte("x")))

	require.NoError(t, c.InvalidateTags(ctx, "users:u1"))

	_, ok, _ := c.Get(ctx, "user:u1")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "user:u2")
	assert.True(t, ok)

	require.NoError(t, c.InvalidateTags(ctx, "users"))

	_, ok, _ = c.Get(ctx, "user:u2")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "users:list:50:0")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "other")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_InvalidateUnknownTag(t *testing.T) {
	c := NewMemoryCache(100, time.Minute)
	assert.NoError(t, c.InvalidateTags(context.Background(), "nothing"))
}

func TestMemoryCache_EvictionCleansTagIndex(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), "users"))
	}

	assert.Equal(t, 10, c.Len())
	c.mu.Lock()
	c.pruneEvicted()
	assert.Len(t, c.tags["users"], 10)
	assert.Len(t, c.keyTags, 10)
	c.mu.Unlock()
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(10, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), "users"))
	time.Sleep(50 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_Close(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v")))

	require.NoError(t, c.Close())
	assert.Zero(t, c.Len())
}

func TestMemoryCache_SetIfCurrent(t *testing.T) {
	c := NewMemoryCache(100, time.Minute)
	ctx := context.Background()

	stamp, err := c.Generations(ctx, "users", "users:u1")
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 0}, stamp.Gens)

	stored, err := c.SetIfCurrent(ctx, "user:u1", []byte("ada"), stamp)
	require.NoError(t, err)
	assert.True(t, stored)

	// the entry carries the stamp's tags
	require.NoError(t, c.InvalidateTags(ctx, "users:u1"))
	_, ok, _ := c.Get(ctx, "user:u1")
	assert.False(t, ok)
}

func TestMemoryCache_SetIfCurrent_InvalidatedDuringRead(t *testing.T) {
	c := NewMemoryCache(100, time.Minute)
	ctx := context.Background()

	stamp, err := c.Generations(ctx, "users", "users:u1")
	require.NoError(t, err)

	require.NoError(t, c.InvalidateTags(ctx, "users:u1"))

	stored, err := c.SetIfCurrent(ctx, "user:u1", []byte("stale"), stamp)
	require.NoError(t, err)
	assert.False(t, stored)
	_, ok, _ := c.Get(ctx, "user:u1")
	assert.False(t, ok)

	// unrelated tags do not void the stamp
	fresh, err := c.Generations(ctx, "users", "users:u1")
	require.NoError(t, err)
	require.NoError(t, c.InvalidateTags(ctx, "users:u2"))
	stored, err = c.SetIfCurrent(ctx, "user:u1", []byte("ada"), fresh)
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestMemoryCache_SetIfCurrent_SurvivesClose(t *testing.T) {
	c := NewMemoryCache(100, time.Minute)
	ctx := context.Background()

	stamp, err := c.Generations(ctx, "users")
	require.NoError(t, err)
	require.NoError(t, c.InvalidateTags(ctx, "users"))
	require.NoError(t, c.Close())

	stored, err := c.SetIfCurrent(ctx, "users:list:50:0", []byte("[]"), stamp)
	require.NoError(t, err)
	assert.False(t, stored)
}

func TestMemoryCache_SetIfCurrent_InvalidStamp(t *testing.T) {
	c := NewMemoryCache(100, time.Minute)
	ctx := context.Background()

	_, err := c.SetIfCurrent(ctx, "k", []byte("v"), Stamp{Tags: []string{"users"}})
	assert.ErrorIs(t, err, ErrInvalidStamp)
	_, err = c.SetIfCurrent(ctx, "", []byte("v"), Stamp{})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestMemoryCache_ConcurrentSetAndInvalidate(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("user:%d", (w*200+i)%25)
				_ = c.Set(ctx, key, []byte("v"), "users", "users:"+key)
				if i%7 == 0 {
					_ = c.InvalidateTags(ctx, "users")
				}
			}
		}(w)
	}
	wg.Wait()

	// every live entry is still reachable through the global tag
	require.NoError(t, c.InvalidateTags(ctx, "users"))
	assert.Zero(t, c.Len())
}
