package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of go-redis used by RedisKV, kept small so
// tests can fake it.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisKV stores each slot as a plain redis string under Namespace+key.
type RedisKV struct {
	client    RedisClient
	namespace string
}

func NewRedisKV(addr, password, namespace string) *RedisKV {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisKV{client: c, namespace: namespace}
}

func NewRedisKVWithClient(c RedisClient, namespace string) *RedisKV {
	return &RedisKV{client: c, namespace: namespace}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.namespace+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.namespace+key, value, 0).Err()
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.namespace+key).Err()
}

// Close closes the underlying client when it owns a connection pool.
func (r *RedisKV) Close() error {
	if c, ok := r.client.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
