// Package ratelimit implements per-identifier fixed-window request limits.
// Counts are best-effort: the memory backend is per process and the redis
// backend is shared but not linearizable across windows.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long the caller should wait before the window resets.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

type counter struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps windows in an in-process go-cache.
type MemoryLimiter struct {
	mu     sync.Mutex
	cache  *cache.Cache
	max    int
	window time.Duration
	now    func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		// expired windows are purged every few windows
		cache:  cache.New(window, 5*window),
		max:    max,
		window: window,
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	var c *counter
	if x, found := l.cache.Get(key); found {
		c = x.(*counter)
	}
	if c == nil || !now.Before(c.resetAt) {
		c = &counter{resetAt: now.Add(l.window)}
	}
	c.count++
	l.cache.Set(key, c, c.resetAt.Sub(now))

	return result(c.count, l.max, c.resetAt), nil
}

// RedisLimiter shares windows across instances with INCR + EXPIRE.
type RedisLimiter struct {
	rdb    *redis.Client
	max    int
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(rdb *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		max:    max,
		window: window,
		prefix: "promptmap:ratelimit:",
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	k := l.prefix + key

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, l.window)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit counter: %w", err)
	}

	remaining := ttl.Val()
	if remaining <= 0 {
		remaining = l.window
	}
	return result(int(incr.Val()), l.max, l.now().Add(remaining)), nil
}

func result(count, max int, resetAt time.Time) Result {
	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= max,
		Limit:     max,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
