package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKV_MissingKeyIsNotAnError(t *testing.T) {
	kv := NewMemoryKV()
	v, ok, err := kv.Get(context.Background(), "bookingHistory")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestPrefixed_Namespaces(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryKV()
	a := Prefixed{KV: base, Prefix: "a:"}
	b := Prefixed{KV: base, Prefix: "b:"}

	require.NoError(t, a.Set(ctx, "k", "1"))
	_, ok, _ := b.Get(ctx, "k")
	assert.False(t, ok)

	v, ok, _ := base.Get(ctx, "a:k")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	require.NoError(t, a.Delete(ctx, "k"))
	_, ok, _ = a.Get(ctx, "k")
	assert.False(t, ok)
}

// fakeRedis implements RedisClient over a map.
type fakeRedis struct {
	data   map[string]string
	setErr error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.data[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisKV_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := &fakeRedis{data: map[string]string{}}
	kv := NewRedisKVWithClient(f, "trip-booking:")

	_, ok, err := kv.Get(ctx, "bookingHistory")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "bookingHistory", "[]"))
	assert.Equal(t, "[]", f.data["trip-booking:bookingHistory"])

	v, ok, err := kv.Get(ctx, "bookingHistory")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", v)

	require.NoError(t, kv.Delete(ctx, "bookingHistory"))
	assert.Empty(t, f.data)
}

func TestRedisKV_SetError(t *testing.T) {
	f := &fakeRedis{data: map[string]string{}, setErr: errors.New("READONLY")}
	kv := NewRedisKVWithClient(f, "")
	assert.Error(t, kv.Set(context.Background(), "k", "v"))
}
