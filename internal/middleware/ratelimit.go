package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Limits are fixed-window request budgets per client IP. Zero disables a window.
type Limits struct {
	PerSecond int
	PerDay    int
}

// Counter is the subset of the Redis client the limiter needs
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RateLimit counts requests per client IP in Redis and rejects them with
// 429 once a window is spent. Redis errors let the request through.
func RateLimit(rdb Counter, limits Limits, log zerolog.Logger) fiber.Handler {
	return rateLimit(rdb, limits, log, time.Now)
}

func rateLimit(rdb Counter, limits Limits, log zerolog.Logger, clock func() time.Time) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		now := clock().UTC()
		ip := c.IP()

		// Check per-second rate limit
		if limits.PerSecond > 0 {
			key := fmt.Sprintf("rl:ip:%s:second:%d", ip, now.Unix())
			count, err := hit(ctx, rdb, key, 2*time.Second)
			if err != nil {
				log.Warn().Err(err).Str("ip", ip).Msg("rate limiter unavailable")
				return c.Next()
			}
			if count > int64(limits.PerSecond) {
				c.Set("X-RateLimit-Limit-Second", strconv.Itoa(limits.PerSecond))
				c.Set("X-RateLimit-Remaining-Second", "0")
				c.Set("X-RateLimit-Reset-Second", strconv.FormatInt(now.Unix()+1, 10))
				c.Set(fiber.HeaderRetryAfter, "1")

				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error":      "rate_limit_exceeded",
					"message":    "Too many requests per second",
					"limitType":  "per_second",
					"limit":      limits.PerSecond,
					"retryAfter": 1,
				})
			}
			c.Set("X-RateLimit-Limit-Second", strconv.Itoa(limits.PerSecond))
		}

		// Check per-day rate limit
		if limits.PerDay > 0 {
			key := fmt.Sprintf("rl:ip:%s:day:%s", ip, now.Format(time.DateOnly))
			// 25 hours so a counter never expires before its day ends
			count, err := hit(ctx, rdb, key, 25*time.Hour)
			if err != nil {
				log.Warn().Err(err).Str("ip", ip).Msg("rate limiter unavailable")
				return c.Next()
			}
			if count > int64(limits.PerDay) {
				tomorrow := now.AddDate(0, 0, 1)
				midnight := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, time.UTC)
				retryAfter := int64(midnight.Sub(now).Seconds())

				c.Set("X-RateLimit-Limit-Day", strconv.Itoa(limits.PerDay))
				c.Set("X-RateLimit-Remaining-Day", "0")
				c.Set("X-RateLimit-Reset-Day", strconv.FormatInt(midnight.Unix(), 10))
				c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))

				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error":      "daily_quota_exceeded",
					"message":    "Daily quota exceeded",
					"limitType":  "per_day",
					"limit":      limits.PerDay,
					"used":       count,
					"retryAfter": retryAfter,
					"resetAt":    midnight.Format(time.RFC3339),
				})
			}
			c.Set("X-RateLimit-Limit-Day", strconv.Itoa(limits.PerDay))
			c.Set("X-RateLimit-Remaining-Day", strconv.FormatInt(int64(limits.PerDay)-count, 10))
		}

		return c.Next()
	}
}

// hit increments key and sets its expiry on the first increment
func hit(ctx context.Context, rdb Counter, key string, ttl time.Duration) (int64, error) {
	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := rdb.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, err
		}
	}
	return count, nil
}
