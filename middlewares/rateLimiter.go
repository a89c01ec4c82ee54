package middlewares

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter counts hits against a key within a fixed window.
type Limiter interface {
	// Hit records one request and returns the count so far and the time
	// left in the current window.
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix}
}

func (l *RedisLimiter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	key = l.prefix + ":" + key

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis error incrementing count: %w", err)
	}

	// Set TTL only for the first increment
	if count == 1 {
		if err := l.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("redis error setting TTL: %w", err)
		}
		return count, window, nil
	}

	ttl, err := l.client.TTL(ctx, key).Result()
	if err != nil {
		return count, window, nil
	}
	return count, ttl, nil
}

// RateLimitRule names a limited route group.
type RateLimitRule struct {
	Name    string
	Limit   int64
	Window  time.Duration
	Key     func(c *gin.Context) string
	Message string
}

// KeyByUser keys on the authenticated user, falling back to the client IP.
func KeyByUser(c *gin.Context) string {
	if id := c.GetString(userIDKey); id != "" {
		return "user:" + id
	}
	return KeyByIP(c)
}

func KeyByIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// RateLimit rejects requests over rule.Limit per window with 429. A nil
// limiter disables limiting. Limiter errors let the request through.
func RateLimit(limiter Limiter, rule RateLimitRule, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	keyFn := rule.Key
	if keyFn == nil {
		keyFn = KeyByIP
	}
	message := rule.Message
	if message == "" {
		message = "Too many requests, please try again later."
	}

	return func(c *gin.Context) {
		if limiter == nil || rule.Limit <= 0 {
			c.Next()
			return
		}

		key := rule.Name + ":" + keyFn(c)
		count, retryAfter, err := limiter.Hit(c.Request.Context(), key, rule.Window)
		if err != nil {
			log.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		if count > rule.Limit {
			c.Header("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"error":       message,
				"retry_after": retryAfter.Seconds(),
			})
			return
		}

		c.Next()
	}
}
