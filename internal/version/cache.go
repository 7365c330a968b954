package version

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// SnapshotCache keeps serialized versions in Redis. Versions never change
// once written, so entries are only dropped by TTL.
type SnapshotCache struct {
	client *redis.Client
	config *CacheConfig
	logger *zap.Logger
	hits   int64
	misses int64
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// NewSnapshotCache connects to Redis
func NewSnapshotCache(config *CacheConfig, logger *zap.Logger) (*SnapshotCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.MaxConnections > 0 {
		opts.PoolSize = config.MaxConnections
	}
	opts.MinIdleConns = config.MinIdleConns

	cache := newSnapshotCache(redis.NewClient(opts), config, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.client.Ping(ctx).Err(); err != nil {
		cache.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Version cache initialized successfully",
		zap.String("redis_url", maskURL(config.RedisURL)),
		zap.Duration("default_ttl", config.DefaultTTL))

	return cache, nil
}

func newSnapshotCache(client *redis.Client, config *CacheConfig, logger *zap.Logger) *SnapshotCache {
	return &SnapshotCache{
		client: client,
		config: config,
		logger: logger,
	}
}

// Get returns the cached version or false on a miss. Redis failures are
// logged and reported as misses.
func (c *SnapshotCache) Get(ctx context.Context, id string) (*Version, bool) {
	key := c.key(id)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	} else if err != nil {
		atomic.AddInt64(&c.misses, 1)
		c.logger.Warn("Cache lookup failed", zap.Error(err), zap.String("version_id", id))
		return nil, false
	}

	var v Version
	if err := json.Unmarshal(data, &v); err != nil {
		atomic.AddInt64(&c.misses, 1)
		c.logger.Error("Failed to unmarshal cached version", zap.Error(err), zap.String("version_id", id))
		c.client.Del(ctx, key)
		return nil, false
	}

	atomic.AddInt64(&c.hits, 1)
	return &v, true
}

// Put caches a version
func (c *SnapshotCache) Put(ctx context.Context, v *Version) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal version for caching: %w", err)
	}
	if err := c.client.Set(ctx, c.key(v.ID), data, c.config.DefaultTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache version: %w", err)
	}
	return nil
}

// Stats returns hit and miss counts since start
func (c *SnapshotCache) Stats() CacheStats {
	stats := CacheStats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

// Close closes the Redis connection
func (c *SnapshotCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *SnapshotCache) key(id string) string {
	return fmt.Sprintf("%s:version:%s", c.config.KeyPrefix, id)
}

// CachedStore reads versions through a SnapshotCache and writes through to
// the underlying store.
type CachedStore struct {
	Store
	cache  *SnapshotCache
	logger *zap.Logger
}

// NewCachedStore wraps store with cache
func NewCachedStore(store Store, cache *SnapshotCache, logger *zap.Logger) *CachedStore {
	return &CachedStore{Store: store, cache: cache, logger: logger}
}

// Append persists the draft and primes the cache with the new version
func (s *CachedStore) Append(ctx context.Context, draft Draft) (*Version, error) {
	v, err := s.Store.Append(ctx, draft)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(ctx, v); err != nil {
		s.logger.Warn("Failed to prime version cache", zap.Error(err), zap.String("version_id", v.ID))
	}
	return v, nil
}

// Get serves from the cache and falls back to the store on a miss
func (s *CachedStore) Get(ctx context.Context, id string) (*Version, error) {
	if v, ok := s.cache.Get(ctx, id); ok {
		return v, nil
	}

	v, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(ctx, v); err != nil {
		s.logger.Warn("Failed to cache version", zap.Error(err), zap.String("version_id", id))
	}
	return v, nil
}

// Close closes the cache and the underlying store
func (s *CachedStore) Close() error {
	cacheErr := s.cache.Close()
	if err := s.Store.Close(); err != nil {
		return err
	}
	return cacheErr
}
