package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Varun5711/shortlinks/internal/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a per-client sliding window log kept in a Redis sorted
// set. Any Redis failure lets the request through.
type RateLimiter struct {
	redis     *redis.Client
	limit     int
	window    time.Duration
	keyPrefix string
	keyFunc   func(*http.Request) string
	log       *logger.Logger
	now       func() time.Time
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration, keyFunc func(*http.Request) string, log *logger.Logger) *RateLimiter {
	return &RateLimiter{
		redis:     redisClient,
		limit:     limit,
		window:    window,
		keyPrefix: "ratelimit:",
		keyFunc:   keyFunc,
		log:       log,
		now:       time.Now,
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if rl.redis == nil || rl.limit <= 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, resetTime := rl.allowRequest(r.Context(), rl.keyPrefix+rl.keyFunc(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			retry := int(resetTime.Sub(rl.now()).Seconds())
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

func (rl *RateLimiter) allowRequest(ctx context.Context, key string) (bool, int, time.Time) {
	now := rl.now()
	windowStart := now.Add(-rl.window)

	pipe := rl.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart.UnixNano(), 10))
	zcard := pipe.ZCard(ctx, key)
	oldest := pipe.ZRangeWithScores(ctx, key, 0, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		rl.log.Debug("Rate limiter unavailable, allowing request: %v", err)
		return true, rl.limit, now.Add(rl.window)
	}

	count := int(zcard.Val())
	if count >= rl.limit {
		resetTime := now.Add(rl.window)
		if first := oldest.Val(); len(first) > 0 {
			resetTime = time.Unix(0, int64(first[0].Score)).Add(rl.window)
		}
		return false, 0, resetTime
	}

	pipe = rl.redis.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	pipe.Expire(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		rl.log.Debug("Rate limiter unavailable, allowing request: %v", err)
	}

	return true, rl.limit - count - 1, now.Add(rl.window)
}
