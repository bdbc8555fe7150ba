package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_GetSet(t *testing.T) {
	c, err := NewTTLCache[string, int](2, time.Minute)
	require.NoError(t, err)

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestTTLCache_Expiry(t *testing.T) {
	c, err := NewTTLCache[string, string](10, time.Minute)
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	now = now.Add(30 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_Eviction(t *testing.T) {
	c, err := NewTTLCache[int, int](2, time.Minute)
	require.NoError(t, err)

	c.Set(1, 1)
	c.Set(2, 2)
	c.Set(3, 3)

	_, ok := c.Get(1)
	assert.False(t, ok)
	_, ok = c.Get(3)
	assert.True(t, ok)

	c.Delete(3)
	_, ok = c.Get(3)
	assert.False(t, ok)
}
