package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Slots []string `json:"slots"`
}

func TestSnapshotCache_RoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKVStore()
	c := NewSnapshotCache(kv, "availability", time.Minute)

	var got snapshot
	hit, err := c.Get(ctx, "room-1", "2024-03-04", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Put(ctx, "room-1", "2024-03-04", snapshot{Slots: []string{"09:00-18:00"}}))
	require.NoError(t, c.Put(ctx, "room-1", "2024-03-05", snapshot{Slots: []string{"09:00-12:00"}}))

	hit, err = c.Get(ctx, "room-1", "2024-03-04", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"09:00-18:00"}, got.Slots)

	require.NoError(t, c.Invalidate(ctx, "room-1", "2024-03-04"))
	hit, _ = c.Get(ctx, "room-1", "2024-03-04", &got)
	assert.False(t, hit)
	hit, _ = c.Get(ctx, "room-1", "2024-03-05", &got)
	assert.True(t, hit, "other dates must survive invalidation")
}

func TestMemoryKVStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	kv := NewMemoryKVStore()
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.Set(ctx, "k", "v", time.Second))
	val, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	now = now.Add(2 * time.Second)
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSnapshotCache_DefaultTTLAndKey(t *testing.T) {
	c := NewSnapshotCache(NewMemoryKVStore(), "availability", 0)
	assert.Equal(t, DefaultTTL, c.ttl)
	assert.Equal(t, "availability:room-9:2024-03-04", c.Key("room-9", "2024-03-04"))
}
