package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a cache shared between processes.
//
// Every backend failure is logged and reported as a miss (Get, Has) or
// ignored (Set, Delete); callers fall through to the upstream source.
type Redis struct {
	client redis.UniversalClient
	prefix string
	opts   Options
	counters
}

// NewRedis wraps an existing client. prefix is prepended to every key so
// several deployments can share one database.
func NewRedis(client redis.UniversalClient, prefix string, opts Options) *Redis {
	return &Redis{client: client, prefix: prefix, opts: opts.withDefaults()}
}

// OpenRedis connects using a redis:// URL and verifies the connection.
func OpenRedis(ctx context.Context, url, prefix string, opts Options) (*Redis, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedis(client, prefix, opts), nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.opts.Logger.Warn("redis cache get failed", "key", key, "error", err)
		}
		r.misses.Add(1)
		r.opts.Hooks.OnCacheMiss(ctx, keyType(key))
		return nil, false, nil
	}
	r.hits.Add(1)
	r.opts.Hooks.OnCacheHit(ctx, keyType(key))
	return data, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	// go-redis treats a zero expiration as "keep forever".
	exp := r.opts.resolveTTL(key, ttl)
	if err := r.client.Set(ctx, r.prefix+key, data, exp).Err(); err != nil {
		r.opts.Logger.Warn("redis cache set failed", "key", key, "error", err)
		return nil
	}
	r.sets.Add(1)
	r.opts.Hooks.OnCacheSet(ctx, keyType(key), len(data))
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	n, err := r.client.Del(ctx, r.prefix+key).Result()
	if err != nil {
		r.opts.Logger.Warn("redis cache delete failed", "key", key, "error", err)
		return nil
	}
	r.deletes.Add(n)
	return nil
}

func (r *Redis) Has(ctx context.Context, key string) bool {
	n, err := r.client.Exists(ctx, r.prefix+key).Result()
	if err != nil {
		r.opts.Logger.Warn("redis cache exists failed", "key", key, "error", err)
		return false
	}
	return n > 0
}

// Metrics reports the counters of this process only. Size is not tracked.
func (r *Redis) Metrics() Metrics {
	return r.snapshot(0)
}

func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Cache = (*Redis)(nil)
