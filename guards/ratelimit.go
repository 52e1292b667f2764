package guards

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/joy095/booking-core/logger"
	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests in fixed windows. Allow returns false once the
// configured maximum is reached within the current window.
type RateLimiter interface {
	Allow(ctx context.Context, scope, identity string) (bool, error)
}

// MemoryRateLimiter keeps fixed-window counters keyed by
// scope:identity:windowIndex. Dead windows are swept whenever the map grows
// past sweepThreshold.
type MemoryRateLimiter struct {
	max    int
	window time.Duration

	mu       sync.Mutex
	counters map[string]int
	windows  map[string]int64

	sweepThreshold int
	now            func() time.Time
}

// NewMemoryRateLimiter creates a limiter allowing max requests per window.
func NewMemoryRateLimiter(max int, window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		max:            max,
		window:         window,
		counters:       make(map[string]int),
		windows:        make(map[string]int64),
		sweepThreshold: 4096,
		now:            time.Now,
	}
}

// Allow increments the counter for the current window and reports whether the
// request fits under the limit.
func (l *MemoryRateLimiter) Allow(_ context.Context, scope, identity string) (bool, error) {
	windowIndex := l.now().UnixMilli() / l.window.Milliseconds()
	key := fmt.Sprintf("%s:%s:%d", scope, identity, windowIndex)

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.counters) > l.sweepThreshold {
		l.sweepLocked(windowIndex)
	}

	if l.counters[key] >= l.max {
		return false, nil
	}
	l.counters[key]++
	l.windows[key] = windowIndex
	return true, nil
}

func (l *MemoryRateLimiter) sweepLocked(current int64) {
	for key, w := range l.windows {
		if w < current {
			delete(l.counters, key)
			delete(l.windows, key)
		}
	}
}

// RedisRateLimiter shares fixed-window counters across processes via
// INCR + EXPIRE on window-scoped keys.
type RedisRateLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
	prefix string
}

// NewRedisRateLimiter creates a Redis-backed limiter allowing max requests per
// window.
func NewRedisRateLimiter(client *redis.Client, max int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, max: max, window: window, prefix: "rate:"}
}

// Allow increments the counter for the current window and reports whether the
// request fits under the limit.
func (l *RedisRateLimiter) Allow(ctx context.Context, scope, identity string) (bool, error) {
	windowIndex := time.Now().UnixMilli() / l.window.Milliseconds()
	key := fmt.Sprintf("%s%s:%s:%d", l.prefix, scope, identity, windowIndex)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		logger.ErrorLogger.Errorf("Redis error incrementing rate counter: %v", err)
		return false, fmt.Errorf("failed to increment rate counter: %w", err)
	}
	if count == 1 {
		// Two windows covers clock skew between processes; the key is dead
		// either way once its window index is stale.
		if err := l.client.Expire(ctx, key, 2*l.window).Err(); err != nil {
			logger.WarnLogger.Warnf("Failed to set expiry on rate counter %s: %v", key, err)
		}
	}
	return count <= int64(l.max), nil
}
