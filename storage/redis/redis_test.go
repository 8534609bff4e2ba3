package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, DefaultConfig())
	require.NoError(t, err)
	return store, mr
}

func TestNew(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.Error(t, err, "nil client must be rejected")

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	store, err := New(client, Config{})
	require.NoError(t, err)
	assert.Equal(t, "replyforge:", store.config.KeyPrefix)
	assert.Equal(t, time.Hour, store.config.TTLGrace)
}

func TestIncrement(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		used, allowed, err := store.Increment(ctx, "sess-1", "2026-03-14", 5)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, i, used)
	}

	used, allowed, err := store.Increment(ctx, "sess-1", "2026-03-14", 5)
	require.NoError(t, err)
	assert.False(t, allowed, "increment past the limit must be rejected")
	assert.Equal(t, 5, used, "rejected increment must not move the counter")
}

func TestIncrement_KeysAreIndependent(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, allowed, err := store.Increment(ctx, "sess-1", "2026-03-14", 1)
	require.NoError(t, err)
	require.True(t, allowed)

	_, allowed, err = store.Increment(ctx, "sess-1", "2026-03-14", 1)
	require.NoError(t, err)
	assert.False(t, allowed)

	_, allowed, err = store.Increment(ctx, "sess-2", "2026-03-14", 1)
	require.NoError(t, err)
	assert.True(t, allowed, "other sessions keep their own counter")

	_, allowed, err = store.Increment(ctx, "sess-1", "2026-03-15", 1)
	require.NoError(t, err)
	assert.True(t, allowed, "the next day starts a fresh counter")
}

func TestIncrement_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	// 23:00 UTC, so one hour remains in the day plus the grace hour.
	at := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	store, err := New(client, Config{
		TTLGrace: time.Hour,
		Now:      func() time.Time { return at },
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, _, err = store.Increment(ctx, "sess-ttl", "2026-03-14", 5)
	require.NoError(t, err)

	key := "replyforge:anon:sess-ttl:2026-03-14"
	require.True(t, mr.Exists(key))
	assert.Equal(t, 2*time.Hour, mr.TTL(key))

	// A second increment must not extend the TTL.
	mr.FastForward(30 * time.Minute)
	_, _, err = store.Increment(ctx, "sess-ttl", "2026-03-14", 5)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, mr.TTL(key))
}

func TestGet(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	used, err := store.Get(ctx, "never-seen", "2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, 0, used, "missing key reads as zero")

	_, _, err = store.Increment(ctx, "sess-1", "2026-03-14", 5)
	require.NoError(t, err)
	_, _, err = store.Increment(ctx, "sess-1", "2026-03-14", 5)
	require.NoError(t, err)

	used, err = store.Get(ctx, "sess-1", "2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, 2, used)
}

func TestKeyPrefix(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	_, _, err := store.Increment(ctx, "abc", "2026-03-14", 5)
	require.NoError(t, err)
	assert.True(t, mr.Exists("replyforge:anon:abc:2026-03-14"))
}
