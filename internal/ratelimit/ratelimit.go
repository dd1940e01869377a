package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rumpus/rucho/internal/client"
)

// KeyPrefix namespaces limiter counters in Redis.
const KeyPrefix = "rucho:ratelimit:"

// RateLimiter is a fixed-window admission limiter keyed by client.
type RateLimiter struct {
	redis  redis.Cmdable
	limit  int
	window time.Duration
	logger *zap.Logger
}

// Result describes one admission decision.
type Result struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// constructor to make rate limiting configurable.
func NewRateLimiter(rdb redis.Cmdable, limit int, window time.Duration, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		redis:  rdb,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Allow counts one request for clientID in the current window.
func (rl *RateLimiter) Allow(ctx context.Context, clientID string) (Result, error) {
	key := KeyPrefix + clientID

	pipe := rl.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{Allowed: true}, err
	}

	resetIn := ttl.Val()
	if resetIn < 0 {
		// first request of the window
		if err := rl.redis.PExpire(ctx, key, rl.window).Err(); err != nil {
			return Result{Allowed: true}, err
		}
		resetIn = rl.window
	}

	count := int(incr.Val())
	remaining := rl.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= rl.limit,
		Remaining: remaining,
		ResetIn:   resetIn,
	}, nil
}

// Middleware rejects callers over their limit with 429. Redis errors let
// the request through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := client.FromContext(r.Context())
		if !ok {
			c = client.Identify(r)
		}

		res, err := rl.Allow(r.Context(), c.ID)
		if err != nil {
			rl.logger.Warn("rate limiter unavailable, admitting request",
				zap.String("client", c.ID), zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			retry := int(res.ResetIn.Round(time.Second) / time.Second)
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
