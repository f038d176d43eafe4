package plans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/redis/go-redis/v9"
)

// Cache is the process-wide query-result cache behind the directory. It is
// injected rather than ambient so its concurrency discipline lives in one
// place. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close()
}

// CacheStats is a point-in-time snapshot of cache effectiveness, exposed
// through the admin API.
type CacheStats struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	KeysAdded   uint64  `json:"keysAdded"`
	KeysEvicted uint64  `json:"keysEvicted"`
	Ratio       float64 `json:"ratio"`
}

// MemoryCache is the in-process L1 cache.
type MemoryCache struct {
	c *ristretto.Cache[string, []byte]
}

// NewMemoryCache creates a ristretto-backed cache. maxCostBytes is the
// maximum total size of cached values in bytes.
func NewMemoryCache(maxCostBytes int64) (*MemoryCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10, // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("plans.NewMemoryCache: %w", err)
	}
	return &MemoryCache{c: c}, nil
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := m.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.c.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.c.Del(key)
	return nil
}

func (m *MemoryCache) Close() {
	m.c.Close()
}

// Wait blocks until buffered writes are applied. Test helper.
func (m *MemoryCache) Wait() {
	m.c.Wait()
}

// Stats snapshots ristretto's metrics.
func (m *MemoryCache) Stats() CacheStats {
	met := m.c.Metrics
	return CacheStats{
		Hits:        met.Hits(),
		Misses:      met.Misses(),
		KeysAdded:   met.KeysAdded(),
		KeysEvicted: met.KeysEvicted(),
		Ratio:       met.Ratio(),
	}
}

// RedisCache is the optional shared L2 cache, for deployments running more
// than one router replica.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects and pings Redis.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("plans.NewRedisCache: ping: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("plans.RedisCache.Get: %w", err)
	}
	return b, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("plans.RedisCache.Set: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("plans.RedisCache.Delete: %w", err)
	}
	return nil
}

func (r *RedisCache) Close() {
	_ = r.client.Close()
}

// TieredCache layers an in-process L1 over a shared L2. Reads fall through
// and backfill L1; writes and deletes go to both.
type TieredCache struct {
	l1          Cache
	l2          Cache
	backfillTTL time.Duration
}

func NewTieredCache(l1, l2 Cache, backfillTTL time.Duration) *TieredCache {
	return &TieredCache{l1: l1, l2: l2, backfillTTL: backfillTTL}
}

func (t *TieredCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if b, ok, err := t.l1.Get(ctx, key); err == nil && ok {
		return b, true, nil
	}
	b, ok, err := t.l2.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = t.l1.Set(ctx, key, b, t.backfillTTL)
	return b, true, nil
}

func (t *TieredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.l1.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return t.l2.Set(ctx, key, value, ttl)
}

func (t *TieredCache) Delete(ctx context.Context, key string) error {
	if err := t.l1.Delete(ctx, key); err != nil {
		return err
	}
	return t.l2.Delete(ctx, key)
}

func (t *TieredCache) Close() {
	t.l1.Close()
	t.l2.Close()
}

// Stats delegates to the L1 cache when it tracks metrics.
func (t *TieredCache) Stats() CacheStats {
	if s, ok := t.l1.(interface{ Stats() CacheStats }); ok {
		return s.Stats()
	}
	return CacheStats{}
}
