package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(1024 * 1024)

	var missing string
	assert.ErrorIs(t, c.Get(ctx, "key", &missing), ErrMiss)

	require.NoError(t, c.Set(ctx, "key", "100MB", time.Minute))

	var result string
	require.NoError(t, c.Get(ctx, "key", &result))
	assert.Equal(t, "100MB", result)

	require.NoError(t, c.Delete(ctx, "key"))
	assert.ErrorIs(t, c.Get(ctx, "key", &result), ErrMiss)
}

func TestFetch(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(1024 * 1024)

	calls := 0
	load := func() (string, error) {
		calls++
		return "24", nil
	}

	v, err := Fetch(ctx, c, "default_expiry_offset", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "24", v)

	v, err = Fetch(ctx, c, "default_expiry_offset", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "24", v)
	assert.Equal(t, 1, calls)

	_, err = Fetch(ctx, c, "broken", time.Minute, func() (string, error) {
		return "", errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
}
