package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Unix(1_700_000_000, 0)
	limiter := Sliding{Client: client, Prefix: "rl:", Now: func() time.Time { return now }}
	ctx := context.Background()
	window := 2 * time.Second

	for i := 0; i < 2; i++ {
		decision, err := limiter.Allow(ctx, "confirm:1.2.3.4", window, 2)
		require.NoError(t, err)
		require.True(t, decision.Allowed)
		require.Equal(t, 1-i, decision.Remaining)
		now = now.Add(time.Millisecond)
	}

	decision, err := limiter.Allow(ctx, "confirm:1.2.3.4", window, 2)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Zero(t, decision.Remaining)

	now = now.Add(window + time.Second)
	decision, err = limiter.Allow(ctx, "confirm:1.2.3.4", window, 2)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestSlidingWithoutClientAllows(t *testing.T) {
	decision, err := Sliding{}.Allow(context.Background(), "k", time.Second, 1)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestFixedMemory(t *testing.T) {
	limiter := NewMemory("test:")
	ctx := context.Background()

	first, err := limiter.Allow(ctx, "checkout:ip", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, first.Allowed)
	require.Zero(t, first.Remaining)

	second, err := limiter.Allow(ctx, "checkout:ip", time.Minute, 1)
	require.NoError(t, err)
	require.False(t, second.Allowed)

	other, err := limiter.Allow(ctx, "checkout:other", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, other.Allowed)
}

func TestFixedRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := NewRedisFixed(client, "fixed")
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		decision, err := limiter.Allow(ctx, "confirm:ip", time.Minute, 3)
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}
	decision, err := limiter.Allow(ctx, "confirm:ip", time.Minute, 3)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
}
