package storage

import (
	"context"
	"crypto/tls"

	"github.com/redis/go-redis/v9"

	"github.com/echocog/spiralmem/internal/storeerr"
)

// RedisCache is the optional distributed cache backend (spec.md §4.A:
// "distributed cache (optional, with optional transport encryption
// flag)"), backed by a single-node redis client.
type RedisCache struct {
	addr      string
	tlsConfig *tls.Config
	client    *redis.Client
}

// NewRedisCache constructs a RedisCache pointed at addr. When enableTLS
// is true the connection requires transport encryption per
// remote_cache_tls (spec.md §6).
func NewRedisCache(addr string, enableTLS bool) *RedisCache {
	rc := &RedisCache{addr: addr}
	if enableTLS {
		rc.tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return rc
}

func (r *RedisCache) Init(ctx context.Context) error {
	r.client = redis.NewClient(&redis.Options{
		Addr:      r.addr,
		TLSConfig: r.tlsConfig,
	})
	if err := r.client.Ping(ctx).Err(); err != nil {
		return storeerr.Wrap(storeerr.BackendUnavailable, "connect to redis cache", err)
	}
	return nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeerr.Wrap(storeerr.BackendUnavailable, "get", err)
	}
	return v, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return storeerr.Wrap(storeerr.BackendUnavailable, "set", err)
	}
	return nil
}

func (r *RedisCache) Del(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return storeerr.Wrap(storeerr.BackendUnavailable, "del", err)
	}
	return nil
}

func (r *RedisCache) Keys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	iter := r.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, storeerr.Wrap(storeerr.BackendUnavailable, "keys", err)
	}
	return out, nil
}

// AtomicIncr uses Redis's native INCRBY, which is atomic server-side —
// no client-side lock or CAS loop is needed.
func (r *RedisCache) AtomicIncr(ctx context.Context, key string, delta int64) (int64, error) {
	v, err := r.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, storeerr.Wrap(storeerr.BackendUnavailable, "atomic_incr", err)
	}
	return v, nil
}

func (r *RedisCache) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

var _ Adapter = (*RedisCache)(nil)
