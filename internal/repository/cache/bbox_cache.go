package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mapborders/partitioner/internal/domain"
	"github.com/mapborders/partitioner/internal/domain/repository"
)

func ttlDuration(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}

// CachedBorderStore decorates a repository.BorderStore, memoizing InBBox
// results in Redis keyed by bbox and simplify level so repeated map-pan
// requests for the same viewport skip the spatial query.
type CachedBorderStore struct {
	repository.BorderStore
	redis *Redis
	ttl   int64
}

func NewCachedBorderStore(store repository.BorderStore, redis *Redis, ttlSeconds int64) *CachedBorderStore {
	return &CachedBorderStore{BorderStore: store, redis: redis, ttl: ttlSeconds}
}

func bboxCacheKey(bbox domain.BBox, level domain.SimplifyLevel) string {
	return fmt.Sprintf("bbox:%.6f:%.6f:%.6f:%.6f:%d", bbox.West, bbox.South, bbox.East, bbox.North, level)
}

func (c *CachedBorderStore) InBBox(ctx context.Context, bbox domain.BBox, level domain.SimplifyLevel) ([]*domain.Region, error) {
	key := bboxCacheKey(bbox, level)

	if cached, err := c.redis.client.Get(ctx, key).Bytes(); err == nil {
		var regions []*domain.Region
		if jsonErr := json.Unmarshal(cached, &regions); jsonErr == nil {
			return regions, nil
		}
	}

	regions, err := c.BorderStore.InBBox(ctx, bbox, level)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(regions); err == nil {
		if err := c.redis.client.Set(ctx, key, encoded, ttlDuration(c.ttl)).Err(); err != nil {
			c.redis.logger.Warn("bbox cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return regions, nil
}

// InvalidateBBoxCache drops every memoized viewport, since a single
// geometry edit can move a region in or out of an arbitrary number of
// cached viewports. CachedBorderStore's mutating methods pass straight
// through to the wrapped store and do not call it.
func (c *CachedBorderStore) InvalidateBBoxCache(ctx context.Context) error {
	iter := c.redis.client.Scan(ctx, 0, "bbox:*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.client.Del(ctx, keys...).Err()
}

// TryAcquireSnapshotSlot claims the one-backup-per-minute slot for label
// using SETNX so concurrent editor processes agree on which of them
// performs the snapshot. Returns false if another process already holds it.
func TryAcquireSnapshotSlot(ctx context.Context, redis *Redis, label string) (bool, error) {
	key := "snapshot-throttle:" + label
	ok, err := redis.client.SetNX(ctx, key, 1, ttlDuration(65)).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}
