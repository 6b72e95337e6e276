package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ResponseCache stores serialized responses by request key.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CacheConfig configures the response cache. An empty RedisURL disables it.
type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
	Prefix   string
}

// RedisCache is a ResponseCache backed by Redis string keys.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the Redis instance at url.
func NewRedisCache(url string) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opt)}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// CachingProvider is a decorator that serves repeated identical requests
// from a ResponseCache and collapses concurrent duplicates into one call.
// Cache failures degrade to a direct call.
type CachingProvider struct {
	inner  Provider
	cache  ResponseCache
	ttl    time.Duration
	prefix string
	group  singleflight.Group
	logger *zap.Logger
}

// WithCache wraps a Provider with response caching.
func WithCache(p Provider, cache ResponseCache, cfg CacheConfig, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "gradeproxy:llm:"
	}
	return &CachingProvider{
		inner:  p,
		cache:  cache,
		ttl:    cfg.TTL,
		prefix: prefix,
		logger: logger,
	}
}

func (c *CachingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	key := c.prefix + cacheKey(c.inner.ModelID(), req)

	if b, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("llm cache read failed", zap.Error(err))
	} else if ok {
		var resp Response
		if err := json.Unmarshal(b, &resp); err == nil {
			resp.Cached = true
			return &resp, nil
		}
	}

	// The shared call outlives any single caller, so one caller cancelling
	// does not fail the others waiting on the same key.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		resp, err := c.inner.Generate(shared, req)
		if err != nil {
			return nil, err
		}
		if b, err := json.Marshal(resp); err == nil {
			if err := c.cache.Set(shared, key, b, c.ttl); err != nil {
				c.logger.Warn("llm cache write failed", zap.Error(err))
			}
		}
		return resp, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	// Shared callers get their own copy.
	resp := *res.Val.(*Response)
	return &resp, nil
}

func (c *CachingProvider) ModelID() string {
	return c.inner.ModelID()
}

// cacheKey hashes everything that influences the reply.
func cacheKey(model string, req Request) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(model)
	_ = enc.Encode(req)
	return hex.EncodeToString(h.Sum(nil))
}
