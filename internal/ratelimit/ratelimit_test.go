package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryLimiterBoundary(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(20, time.Minute).WithClock(clock.Now)
	ctx := context.Background()

	for i := 1; i <= 20; i++ {
		ok, err := l.Allow(ctx, "improve_bio")
		require.NoError(t, err)
		require.True(t, ok, "call %d should be admitted", i)
		clock.Advance(time.Second)
	}

	ok, err := l.Allow(ctx, "improve_bio")
	require.NoError(t, err)
	assert.False(t, ok, "21st call within the window must be rejected")

	// First event was at +0s; at +60s it has left the window.
	clock.t = time.Date(2026, 5, 1, 9, 1, 0, 0, time.UTC)
	ok, err = l.Allow(ctx, "improve_bio")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "a")
	assert.False(t, ok)
	ok, _ = l.Allow(ctx, "b")
	assert.True(t, ok)
}

func TestMemoryLimiterRejectedCallsDoNotConsume(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(2, time.Minute).WithClock(clock.Now)
	ctx := context.Background()

	l.Allow(ctx, "k")
	l.Allow(ctx, "k")
	for range 5 {
		ok, _ := l.Allow(ctx, "k")
		assert.False(t, ok)
	}

	// Rejections left no timestamps behind, so the window reopens a minute
	// after the two admitted calls.
	clock.Advance(time.Minute + time.Millisecond)
	for range 2 {
		ok, _ := l.Allow(ctx, "k")
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryLimiterSweep(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(5, time.Minute).WithClock(clock.Now)

	l.Allow(context.Background(), "old")
	clock.Advance(2 * time.Minute)
	l.Sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.events, "old")
}

func TestSweepLoopDropsIdleKeys(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(1, time.Minute).WithClock(clock.Now)

	for _, ip := range []string{"ip:10.0.0.1", "ip:10.0.0.2", "ip:10.0.0.3"} {
		ok, _ := l.Allow(context.Background(), ip)
		require.True(t, ok)
	}
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.SweepLoop(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.events) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep loop did not stop on cancel")
	}
}

func TestRedisLimiterKey(t *testing.T) {
	l := NewRedisLimiter(nil, "ratelimit:generate", 20, time.Minute)
	assert.Equal(t, "ratelimit:generate:improve_bio", l.key("improve_bio"))
}

func TestRedisLimiter(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer client.Close()

	prefix := "test-ratelimit-" + time.Now().Format("150405.000000")
	l := NewRedisLimiter(client, prefix, 3, time.Minute)

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
