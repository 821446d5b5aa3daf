package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisKVStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisKVStore(client), mr
}

func TestRedisKVStore_SetGet(t *testing.T) {
	kv, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", 30*time.Second))
	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	assert.Equal(t, 30*time.Second, mr.TTL("k"))
}

func TestRedisKVStore_Miss(t *testing.T) {
	kv, mr := newTestStore(t)
	ctx := context.Background()

	_, err := kv.Get(ctx, "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, kv.Set(ctx, "short", "v", time.Second))
	mr.FastForward(2 * time.Second)
	_, err = kv.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
