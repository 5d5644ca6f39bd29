package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterBurstThenRefill(t *testing.T) {
	now := time.Now()
	l := NewMemoryLimiter(2, 1)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		info, err := l.Allow(ctx, "ip:1")
		require.NoError(t, err)
		require.True(t, info.Allowed, "request %d", i)
	}
	info, err := l.Allow(ctx, "ip:1")
	require.NoError(t, err)
	require.False(t, info.Allowed)

	other, err := l.Allow(ctx, "ip:2")
	require.NoError(t, err)
	require.True(t, other.Allowed)

	now = now.Add(30 * time.Second)
	info, err = l.Allow(ctx, "ip:1")
	require.NoError(t, err)
	require.True(t, info.Allowed)
}

func TestRedisLimiterWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := NewRedisLimiter(client, 2, "rl")
	ctx := context.Background()

	first, err := l.Allow(ctx, "ip:1")
	require.NoError(t, err)
	require.True(t, first.Allowed)
	require.Equal(t, 1, first.Remaining)
	second, err := l.Allow(ctx, "ip:1")
	require.NoError(t, err)
	require.True(t, second.Allowed)
	third, err := l.Allow(ctx, "ip:1")
	require.NoError(t, err)
	require.False(t, third.Allowed)
	require.Greater(t, mr.TTL("rl:ip:1"), time.Duration(0))

	mr.FastForward(time.Minute + time.Second)
	again, err := l.Allow(ctx, "ip:1")
	require.NoError(t, err)
	require.True(t, again.Allowed)
}
