package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryBanRateLimiterSlidingWindow(t *testing.T) {
	clock := newFakeClock(baseTime)
	limiter := NewMemoryBanRateLimiter(BanRateLimiterConfig{Now: clock.Now}, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Allow(ctx, "Alice"))
		clock.Advance(time.Minute)
	}
	require.False(t, limiter.Allow(ctx, "Alice"))
	require.True(t, limiter.Allow(ctx, "Bob"))

	// only the ban issued at +2m is still inside the window
	clock.Advance(28 * time.Minute)
	require.True(t, limiter.Allow(ctx, "Alice"))
	require.True(t, limiter.Allow(ctx, "Alice"))
	require.False(t, limiter.Allow(ctx, "Alice"))

	clock.Advance(31 * time.Minute)
	require.True(t, limiter.Allow(ctx, "Alice"))
}

func TestMemoryBanRateLimiterConcurrentAllow(t *testing.T) {
	clock := newFakeClock(baseTime)
	limiter := NewMemoryBanRateLimiter(BanRateLimiterConfig{Max: 5, Window: time.Hour, Now: clock.Now}, testLogger())
	ctx := context.Background()

	var (
		allowed atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow(ctx, "Alice") {
				allowed.Add(1)
			}
			clock.Advance(time.Second)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 5, allowed.Load())
	require.False(t, limiter.Allow(ctx, "Alice"))
	require.True(t, limiter.Allow(ctx, "Bob"))
}

func TestRedisBanRateLimiterSharesWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := newFakeClock(baseTime)
	config := BanRateLimiterConfig{Max: 2, Window: 10 * time.Minute, Now: clock.Now}
	first, err := NewRedisBanRateLimiter(client, config, testLogger())
	require.NoError(t, err)
	second, err := NewRedisBanRateLimiter(client, config, testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	require.True(t, first.Allow(ctx, "Alice"))
	require.True(t, second.Allow(ctx, "Alice"))
	require.False(t, first.Allow(ctx, "Alice"))
	require.True(t, second.Allow(ctx, "Bob"))

	clock.Advance(11 * time.Minute)
	require.True(t, first.Allow(ctx, "Alice"))
}

func TestRedisBanRateLimiterFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := NewRedisBanRateLimiter(client, BanRateLimiterConfig{Max: 1}, testLogger())
	require.NoError(t, err)

	mr.Close()
	ctx := context.Background()
	require.True(t, limiter.Allow(ctx, "Alice"))
	require.True(t, limiter.Allow(ctx, "Alice"))

	_, err = NewRedisBanRateLimiter(nil, BanRateLimiterConfig{}, testLogger())
	require.Error(t, err)
}
