package plans_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwatch/edge/internal/plans"
)

func TestMemoryCache_SetGetDelete(t *testing.T) {
	t.Parallel()

	c, err := plans.NewMemoryCache(1 << 20)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	c.Wait()

	b, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), b)

	require.NoError(t, c.Delete(ctx, "k"))
	c.Wait()

	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	t.Parallel()

	c, err := plans.NewMemoryCache(1 << 20)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 20*time.Millisecond))
	c.Wait()

	time.Sleep(50 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_Stats(t *testing.T) {
	t.Parallel()

	c, err := plans.NewMemoryCache(1 << 20)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	c.Wait()

	_, _, _ = c.Get(ctx, "k")
	_, _, _ = c.Get(ctx, "missing")

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.EqualValues(t, 1, stats.KeysAdded)
}

func TestTieredCache_BackfillsL1(t *testing.T) {
	t.Parallel()

	l1 := newMapCache()
	l2 := newMapCache()
	tc := plans.NewTieredCache(l1, l2, time.Minute)

	ctx := context.Background()
	// Seed only L2, as if another replica populated the shared tier.
	require.NoError(t, l2.Set(ctx, "k", []byte("v"), time.Minute))

	b, ok, err := tc.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), b)

	_, ok, err = l1.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "read-through populates L1")
}

func TestTieredCache_WritesAndDeletesHitBothTiers(t *testing.T) {
	t.Parallel()

	l1 := newMapCache()
	l2 := newMapCache()
	tc := plans.NewTieredCache(l1, l2, time.Minute)

	ctx := context.Background()
	require.NoError(t, tc.Set(ctx, "k", []byte("v"), time.Minute))

	for _, c := range []plans.Cache{l1, l2} {
		_, ok, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	require.NoError(t, tc.Delete(ctx, "k"))
	for _, c := range []plans.Cache{l1, l2} {
		_, ok, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestTieredCache_MissInBothTiers(t *testing.T) {
	t.Parallel()

	tc := plans.NewTieredCache(newMapCache(), newMapCache(), time.Minute)

	_, ok, err := tc.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}
