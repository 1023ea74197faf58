package meeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultCacheTTL = 30 * 24 * time.Hour

	cacheKeyPrefix = "meeting:link:"
)

type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// CachedProvider remembers the inner provider's link per booking. Cache
// errors are logged and never fail provisioning.
type CachedProvider struct {
	inner  Provider
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedProvider(inner Provider, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func (p *CachedProvider) Name() string { return p.inner.Name() }

func (p *CachedProvider) Provision(ctx context.Context, req Request) (string, error) {
	key := cacheKeyPrefix + p.inner.Name() + ":" + req.Booking.ID

	url, ok, err := p.cache.Get(ctx, key)
	switch {
	case err != nil:
		p.logger.Warn("meeting cache read failed", zap.String("key", key), zap.Error(err))
	case ok:
		return url, nil
	}

	url, err = p.inner.Provision(ctx, req)
	if err != nil {
		return "", err
	}
	if err := p.cache.Set(ctx, key, url, p.ttl); err != nil {
		p.logger.Warn("meeting cache write failed", zap.String("key", key), zap.Error(err))
	}
	return url, nil
}
