package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
	"github.com/hugo-lorenzo-mato/reelsight/internal/logging"
	"github.com/hugo-lorenzo-mato/reelsight/internal/metrics"
)

// DefaultCacheTTL bounds how long a finished job stays cached.
const DefaultCacheTTL = 24 * time.Hour

const cacheKeyPrefix = "reelsight:job:"

// RedisOptions configures the cache connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// CacheOption configures a RedisCache.
type CacheOption func(*RedisCache)

// WithCacheMetrics reports hits and misses.
func WithCacheMetrics(m *metrics.Collector) CacheOption {
	return func(c *RedisCache) {
		c.metrics = m
	}
}

// WithCacheLogger sets the logger for cache failures.
func WithCacheLogger(l *logging.Logger) CacheOption {
	return func(c *RedisCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// RedisCache is a read-through cache in front of another ResultStore.
// Only terminal records are cached; in-flight jobs always read through.
// Cache failures are logged and never fail the call.
type RedisCache struct {
	inner   core.ResultStore
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Collector
	logger  *logging.Logger
}

// NewRedisCache connects to Redis and wraps inner.
func NewRedisCache(inner core.ResultStore, opts RedisOptions, options ...CacheOption) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return newRedisCache(inner, client, opts.TTL, options...), nil
}

func newRedisCache(inner core.ResultStore, client *redis.Client, ttl time.Duration, options ...CacheOption) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &RedisCache{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logging.NewNop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func cacheKey(id core.JobID) string {
	return cacheKeyPrefix + string(id)
}

// Put writes through to the backing store, then refreshes the cache.
func (c *RedisCache) Put(ctx context.Context, rec *core.JobRecord) error {
	if err := c.inner.Put(ctx, rec); err != nil {
		return err
	}
	if rec.Status.IsTerminal() {
		c.set(ctx, rec)
	} else {
		c.evict(ctx, rec.ID)
	}
	return nil
}

// Get serves terminal records from Redis and falls back to the store.
func (c *RedisCache) Get(ctx context.Context, id core.JobID) (*core.JobRecord, error) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	switch {
	case err == nil:
		var rec core.JobRecord
		if jsonErr := json.Unmarshal(data, &rec); jsonErr == nil {
			c.metrics.CacheHit()
			return &rec, nil
		}
		c.evict(ctx, id)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("cache read failed", "job_id", id, "error", err)
	}
	c.metrics.CacheMiss()

	rec, err := c.inner.Get(ctx, id)
	if err != nil || rec == nil {
		return rec, err
	}
	if rec.Status.IsTerminal() {
		c.set(ctx, rec)
	}
	return rec, nil
}

// List always reads the backing store.
func (c *RedisCache) List(ctx context.Context, opts core.ListOptions) ([]core.JobSummary, error) {
	return c.inner.List(ctx, opts)
}

// Delete removes id from both layers.
func (c *RedisCache) Delete(ctx context.Context, id core.JobID) error {
	if err := c.inner.Delete(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, id)
	return nil
}

// Count reads the backing store.
func (c *RedisCache) Count(ctx context.Context) (int, error) {
	return c.inner.Count(ctx)
}

// Close closes Redis and the backing store.
func (c *RedisCache) Close() error {
	return errors.Join(c.client.Close(), c.inner.Close())
}

func (c *RedisCache) set(ctx context.Context, rec *core.JobRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		c.logger.Warn("cache encode failed", "job_id", rec.ID, "error", err)
		return
	}
	if err := c.client.Set(ctx, cacheKey(rec.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "job_id", rec.ID, "error", err)
	}
}

func (c *RedisCache) evict(ctx context.Context, id core.JobID) {
	if err := c.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		c.logger.Warn("cache evict failed", "job_id", id, "error", err)
	}
}
