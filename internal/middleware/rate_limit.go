package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// PayoutRateLimit limits withdrawal attempts per caller using Redis if
// available. Keyed by the authenticated user so one freelancer cannot flood
// the payout queue.
func PayoutRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		userID, _ := c.Locals(localUserID).(string)
		if userID == "" {
			userID = c.IP()
		}
		key := "rl:payout:" + userID
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err == nil && cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many payout requests, try again later")
		}
		return c.Next()
	}
}
