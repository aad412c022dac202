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

func newTestRateLimitStore(t *testing.T) (*RateLimitStore, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	store := NewRateLimitStore(client)
	store.now = func() time.Time { return clock }
	return store, mr, &clock
}

func TestRateLimitStore_Allow(t *testing.T) {
	store, _, _ := newTestRateLimitStore(t)
	ctx := context.Background()

	t.Run("allows requests within limit", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			result, err := store.Allow(ctx, "10.0.0.1:write", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, result.Allowed, "request %d should be allowed", i)
			assert.Equal(t, int64(3), result.Limit)
			assert.Equal(t, 3-i, result.Remaining)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		result, err := store.Allow(ctx, "10.0.0.1:write", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, int64(0), result.Remaining)
	})

	t.Run("groups are independent", func(t *testing.T) {
		result, err := store.Allow(ctx, "10.0.0.1:read", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, int64(4), result.Remaining)
	})
}

func TestRateLimitStore_SlidingWindow(t *testing.T) {
	store, _, clock := newTestRateLimitStore(t)
	ctx := context.Background()
	key := "10.0.0.2:write"
	start := *clock

	_, err := store.Allow(ctx, key, 2, time.Minute)
	require.NoError(t, err)

	*clock = start.Add(30 * time.Second)
	_, err = store.Allow(ctx, key, 2, time.Minute)
	require.NoError(t, err)

	*clock = start.Add(45 * time.Second)
	result, err := store.Allow(ctx, key, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	// the first request ages out one window after it was made
	assert.Equal(t, start.Add(time.Minute).Unix(), result.ResetAt)

	*clock = start.Add(61 * time.Second)
	result, err = store.Allow(ctx, key, 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, int64(0), result.Remaining)
}

func TestRateLimitStore_RejectedRequestsNotCounted(t *testing.T) {
	store, mr, _ := newTestRateLimitStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Allow(ctx, "10.0.0.3:read", 1, time.Minute)
		require.NoError(t, err)
	}

	members, err := mr.ZMembers("ratelimit:10.0.0.3:read")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestRateLimitStore_KeyExpires(t *testing.T) {
	store, mr, _ := newTestRateLimitStore(t)
	ctx := context.Background()

	_, err := store.Allow(ctx, "10.0.0.4:write", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("ratelimit:10.0.0.4:write"))

	mr.FastForward(61 * time.Second)
	assert.False(t, mr.Exists("ratelimit:10.0.0.4:write"))
}

func TestRateLimitStore_RedisDown(t *testing.T) {
	store, mr, _ := newTestRateLimitStore(t)
	mr.Close()

	_, err := store.Allow(context.Background(), "10.0.0.5:read", 1, time.Minute)
	assert.Error(t, err)
}
