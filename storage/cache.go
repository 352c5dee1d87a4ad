package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"quadplan/domain"
)

type backend interface {
	LoadSnapshot(ctx context.Context, scope string) (domain.Snapshot, error)
	SaveSnapshot(ctx context.Context, scope string, snap domain.Snapshot) error
}

// Cache wraps a snapshot backend with Redis-backed read caching. Cache
// failures never surface: a miss or a redis outage just falls through to the
// backing store.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) LoadSnapshot(ctx context.Context, scope string) (domain.Snapshot, error) {
	if snap, ok := c.loadFromCache(ctx, scope); ok {
		return snap, nil
	}

	snap, err := c.base.LoadSnapshot(ctx, scope)
	if err != nil {
		return domain.Snapshot{}, err
	}

	c.store(ctx, scope, snap)
	return snap, nil
}

// SaveSnapshot writes through to the backend and refreshes the cache with
// the snapshot just written, so the next load is served hot.
func (c *Cache) SaveSnapshot(ctx context.Context, scope string, snap domain.Snapshot) error {
	if err := c.base.SaveSnapshot(ctx, scope, snap); err != nil {
		c.evict(ctx, scope)
		return err
	}
	c.store(ctx, scope, snap)
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context, scope string) (domain.Snapshot, bool) {
	if c.redis == nil {
		return domain.Snapshot{}, false
	}
	data, err := c.redis.Get(ctx, snapshotCacheKey(scope)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, snapshotCacheKey(scope)).Err()
		}
		return domain.Snapshot{}, false
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		_ = c.redis.Del(ctx, snapshotCacheKey(scope)).Err()
		return domain.Snapshot{}, false
	}
	return snap, true
}

func (c *Cache) store(ctx context.Context, scope string, snap domain.Snapshot) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, snapshotCacheKey(scope), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, scope string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, snapshotCacheKey(scope)).Result()
}

func snapshotCacheKey(scope string) string {
	return "snap:" + scope
}
