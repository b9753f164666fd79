package duration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/xco2/tripspot/internal/types"
)

// LegCache remembers live travel times between coordinate pairs.
type LegCache interface {
	Get(ctx context.Context, key string) (float64, bool)
	Set(ctx context.Context, key string, seconds float64)
}

// LegKey identifies a directed leg by its rounded coordinates.
func LegKey(from, to types.Place) string {
	return fmt.Sprintf("tripspot:leg:%.6f,%.6f:%.6f,%.6f", from.Longitude, from.Latitude, to.Longitude, to.Latitude)
}

// MemoryCache is an in-process cache with expiry.
type MemoryCache struct {
	cache *cache.Cache
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{cache: cache.New(ttl, 2*ttl)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (float64, bool) {
	v, ok := m.cache.Get(key)
	if !ok {
		return 0, false
	}
	seconds, ok := v.(float64)
	return seconds, ok
}

func (m *MemoryCache) Set(_ context.Context, key string, seconds float64) {
	m.cache.Set(key, seconds, cache.DefaultExpiration)
}

// RedisCache shares leg estimates between processes.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// OpenRedis returns a client for addr, or nil when addr is empty.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

func (r *RedisCache) Get(ctx context.Context, key string) (float64, bool) {
	seconds, err := r.client.Get(ctx, key).Float64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.WarnContext(ctx, "redis_get_error", slog.String("key", key), slog.Any("error", err))
		}
		return 0, false
	}
	return seconds, true
}

func (r *RedisCache) Set(ctx context.Context, key string, seconds float64) {
	if err := r.client.Set(ctx, key, seconds, r.ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "redis_set_error", slog.String("key", key), slog.Any("error", err))
	}
}

// TieredCache reads through its layers in order and back-fills the faster ones.
type TieredCache []LegCache

func (t TieredCache) Get(ctx context.Context, key string) (float64, bool) {
	for i, c := range t {
		if seconds, ok := c.Get(ctx, key); ok {
			for _, faster := range t[:i] {
				faster.Set(ctx, key, seconds)
			}
			return seconds, true
		}
	}
	return 0, false
}

func (t TieredCache) Set(ctx context.Context, key string, seconds float64) {
	for _, c := range t {
		c.Set(ctx, key, seconds)
	}
}
