package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// PurchaseRateLimit limits purchase attempts per account (falling back to the
// caller IP) using Redis if available. It protects the settlement path from
// runaway clients; the engine's own idempotency still guards correctness.
func PurchaseRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 30
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		var req struct {
			PurchaserID string `json:"purchaser_id"`
		}
		_ = c.BodyParser(&req)
		subject := strings.TrimSpace(req.PurchaserID)
		if subject == "" {
			subject = c.IP()
		}
		key := "rl:purchase:" + subject
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err == nil && cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many purchase attempts, try again later")
		}
		return c.Next()
	}
}
