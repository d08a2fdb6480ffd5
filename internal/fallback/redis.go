package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig is the external fallback-store connection surface
// (cache.host, cache.port, cache.ttlMs).
type RedisConfig struct {
	Host         string
	Port         int
	DefaultTTL   time.Duration
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Redis is the external Store implementation, selected when cache.host is
// configured.
type Redis struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// NewRedis dials the configured Redis endpoint and pings it before
// returning, so a misconfigured cache fails fast at startup rather than on
// the first fallback read.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect fallback cache: %w", err)
	}
	return &Redis{client: client, defaultTTL: cfg.DefaultTTL}, nil
}

// Get returns the value for key if present.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("fallback cache get %s: %w", key, err)
	}
	return val, true, nil
}

// Put stores value under key with the given TTL (or the default TTL if ttl
// is zero).
func (r *Redis) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("fallback cache put %s: %w", key, err)
	}
	return nil
}

// HealthCheck reports whether the external cache is reachable.
func (r *Redis) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
