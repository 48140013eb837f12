package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) *TTLCache[string] {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c, err := NewTTL[string](ctx, ttl, time.Minute)
	require.NoError(t, err)
	return c
}

func TestSetGet(t *testing.T) {
	c := newTestCache(t, time.Minute)
	c.Set("k", "v")

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestGetMissing(t *testing.T) {
	c := newTestCache(t, time.Minute)
	_, ok := c.Get("absent")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c := newTestCache(t, 10*time.Millisecond)
	c.Set("k", "v")

	time.Sleep(25 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestSetResetsTTL(t *testing.T) {
	c := newTestCache(t, 50*time.Millisecond)
	c.Set("k", "v1")
	time.Sleep(30 * time.Millisecond)
	c.Set("k", "v2")
	time.Sleep(30 * time.Millisecond)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", got)
}

func TestClear(t *testing.T) {
	c := newTestCache(t, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	assert.Equal(t, 2, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	c := newTestCache(t, time.Minute)
	c.Set("a", "1")
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestJanitorSweeps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := NewTTL[int](ctx, 5*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)

	c.Set("k", 1)
	assert.Eventually(t, func() bool {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return len(c.entries) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestInvalidConfig(t *testing.T) {
	_, err := NewTTL[int](context.Background(), 0, time.Minute)
	assert.Error(t, err)
	_, err = NewTTL[int](context.Background(), time.Minute, 0)
	assert.Error(t, err)
}
