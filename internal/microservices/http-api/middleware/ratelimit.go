package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts requests per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// NewRedisClient parses url, connects and pings.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("connected to Redis", "addr", opts.Addr)
	return client, nil
}

// RedisLimiter is a fixed window counter shared by every API instance.
type RedisLimiter struct {
	rdb     redis.Cmdable
	maxReqs int
	window  time.Duration
}

func NewRedisLimiter(rdb redis.Cmdable, maxReqs int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, maxReqs: maxReqs, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	key = "ratelimit:" + key

	// EXPIRE NX only arms a key without a TTL, so a key left without one by
	// an earlier failure heals on its next hit.
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	if _, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		ttl = pipe.TTL(ctx, key)
		return nil
	}); err != nil {
		return Decision{}, err
	}

	count := int(incr.Val())
	retry := ttl.Val()
	if retry <= 0 {
		retry = l.window
	}
	return Decision{
		Allowed:    count <= l.maxReqs,
		Limit:      l.maxReqs,
		Remaining:  max(0, l.maxReqs-count),
		RetryAfter: retry,
	}, nil
}

// LocalLimiter keeps a token bucket per key in process memory. Used when no
// Redis is configured.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*localEntry
	every    rate.Limit
	burst    int
	idle     time.Duration
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter allows maxReqs per window with bursts up to maxReqs.
func NewLocalLimiter(maxReqs int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		limiters: map[string]*localEntry{},
		every:    rate.Limit(float64(maxReqs) / window.Seconds()),
		burst:    maxReqs,
		idle:     2 * window,
	}
}

func (l *LocalLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[key]
	if !ok {
		l.evictIdle(now)
		entry = &localEntry{limiter: rate.NewLimiter(l.every, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now

	r := entry.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
		return Decision{Allowed: false, Limit: l.burst, RetryAfter: delay}, nil
	}
	return Decision{
		Allowed:   true,
		Limit:     l.burst,
		Remaining: int(entry.limiter.TokensAt(now)),
	}, nil
}

func (l *LocalLimiter) evictIdle(now time.Time) {
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.idle {
			delete(l.limiters, k)
		}
	}
}

// RateLimit limits requests per client IP. Limiter failures let the request
// through.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			slog.WarnContext(c.Request.Context(), "rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			retry := int(d.RetryAfter.Round(time.Second).Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retry,
			})
			return
		}
		c.Next()
	}
}
