package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, c.Set(ctx, "forever", []byte("x"), 0))

	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)

	_, ok, _ = c.Get(ctx, "forever")
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "forever"))
	_, ok, _ = c.Get(ctx, "forever")
	assert.False(t, ok)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	type payload struct {
		Count int `json:"count"`
	}
	require.NoError(t, SetJSON(ctx, c, "p", payload{Count: 3}, 0))

	var out payload
	ok, err := GetJSON(ctx, c, "p", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, out.Count)

	ok, err = GetJSON(ctx, c, "missing", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}
