package guards

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowBoundary(t *testing.T) {
	limiter := NewMemoryRateLimiter(3, time.Minute)
	base := time.Now().Truncate(time.Minute)
	limiter.now = func() time.Time { return base }
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		ok, err := limiter.Allow(ctx, "create_booking", "customer-1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d fits under the limit", i)
	}

	ok, err := limiter.Allow(ctx, "create_booking", "customer-1")
	require.NoError(t, err)
	assert.False(t, ok, "fourth request in the window is rejected")

	// The counter resets at the window boundary, not on a sliding horizon.
	limiter.now = func() time.Time { return base.Add(time.Minute) }
	ok, err = limiter.Allow(ctx, "create_booking", "customer-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiterIsolatesScopeAndIdentity(t *testing.T) {
	limiter := NewMemoryRateLimiter(1, time.Minute)
	base := time.Now().Truncate(time.Minute)
	limiter.now = func() time.Time { return base }
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "create_booking", "customer-1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = limiter.Allow(ctx, "create_booking", "customer-1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = limiter.Allow(ctx, "create_booking", "customer-2")
	require.NoError(t, err)
	assert.True(t, ok, "another identity has its own counter")

	ok, err = limiter.Allow(ctx, "transition_booking", "customer-1")
	require.NoError(t, err)
	assert.True(t, ok, "another scope has its own counter")
}

func TestLimiterSweepsDeadWindows(t *testing.T) {
	limiter := NewMemoryRateLimiter(1, time.Minute)
	limiter.sweepThreshold = 2
	base := time.Now().Truncate(time.Minute)
	limiter.now = func() time.Time { return base }
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := limiter.Allow(ctx, "s", id)
		require.NoError(t, err)
	}

	limiter.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err := limiter.Allow(ctx, "s", "d")
	require.NoError(t, err)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Equal(t, 1, len(limiter.counters), "stale window counters are dropped")
}
