package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/gema-reminders/internal/utils"
)

// RateLimit throttles a route group per calling principal over a sliding window.
// Callers without a principal share a bucket per IP.
func RateLimit(scope string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}
	details := fiber.Map{"scope": scope, "limit": max, "window": window.String()}

	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return scope + ":" + rateKey(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.Fail(c, fiber.StatusTooManyRequests, "rate limit exceeded", details)
		},
	})
}

func rateKey(c *fiber.Ctx) string {
	switch id := c.Locals("user_id").(type) {
	case uint:
		if id > 0 {
			return "user:" + strconv.FormatUint(uint64(id), 10)
		}
	case string:
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			return "user:" + trimmed
		}
	}
	return "ip:" + c.IP()
}
