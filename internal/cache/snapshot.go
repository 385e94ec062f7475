package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultTTL bounds how stale a snapshot may be when an invalidation is lost.
const DefaultTTL = 30 * time.Second

// SnapshotCache stores JSON snapshots keyed by room and calendar date.
type SnapshotCache struct {
	kv     KVStore
	ttl    time.Duration
	prefix string
}

// NewSnapshotCache creates a cache namespaced by prefix. A non-positive ttl
// uses DefaultTTL.
func NewSnapshotCache(kv KVStore, prefix string, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SnapshotCache{kv: kv, ttl: ttl, prefix: prefix}
}

// Key renders the storage key of a room/date snapshot.
func (c *SnapshotCache) Key(roomID, date string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, roomID, date)
}

// Get decodes the snapshot into dst. It reports false on a miss.
func (c *SnapshotCache) Get(ctx context.Context, roomID, date string, dst any) (bool, error) {
	raw, err := c.kv.Get(ctx, c.Key(roomID, date))
	if errors.Is(err, ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("cache: decode %s: %w", c.Key(roomID, date), err)
	}
	return true, nil
}

// Put stores value as the snapshot for roomID and date.
func (c *SnapshotCache) Put(ctx context.Context, roomID, date string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", c.Key(roomID, date), err)
	}
	return c.kv.Set(ctx, c.Key(roomID, date), string(raw), c.ttl)
}

// Invalidate drops the snapshots of roomID for every listed date.
func (c *SnapshotCache) Invalidate(ctx context.Context, roomID string, dates ...string) error {
	keys := make([]string, 0, len(dates))
	for _, date := range dates {
		keys = append(keys, c.Key(roomID, date))
	}
	return c.kv.Delete(ctx, keys...)
}
