package ratelimit

import (
	"context"
	"strconv"
	"time"

	"ledger-platform/internal/apperror"
	"ledger-platform/internal/httpapi"
	"ledger-platform/pkg/logger"
	"ledger-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Limiter answers whether one more request fits the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Window() time.Duration
}

// RedisLimiter is a fixed-window counter on Redis, one key per client
// and window. State lives in Redis so every API replica shares the
// same budget.
type RedisLimiter struct {
	rdb    *redis.Client
	window time.Duration
	max    int
}

func NewRedisLimiter(rdb *redis.Client, window time.Duration, max int) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, window: window, max: max}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	n, err := utils.CountInWindow(ctx, l.rdb, "ratelimit:"+key, l.window)
	if err != nil {
		return false, err
	}
	return n <= int64(l.max), nil
}

func (l *RedisLimiter) Window() time.Duration { return l.window }

// Middleware rejects requests over the window budget with 429. Redis
// failures fail open: correctness never depends on the limiter, so an
// unavailable Redis must not take the ledger down with it.
func Middleware(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.FromGin(c).Warn("rate limiter unavailable", "err", err)
			c.Next()
			return
		}
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(l.Window().Seconds())))
			httpapi.Fail(c, apperror.RateLimited())
			c.Abort()
			return
		}
		c.Next()
	}
}
