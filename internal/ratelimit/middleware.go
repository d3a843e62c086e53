package ratelimit

import (
	"math"
	"strconv"
	"time"

	"hrportal-backend/internal/apperr"
	"hrportal-backend/internal/logging"

	"github.com/gofiber/fiber/v2"
)

var (
	LoginRule = Rule{
		Name:    "login",
		Max:     10,
		Window:  15 * time.Minute,
		Message: "Too many login attempts. Please try again later.",
	}
	RecoveryAnswerRule = Rule{
		Name:    "recovery-answer",
		Max:     10,
		Window:  15 * time.Minute,
		Message: "Too many requests. Please try again later.",
	}
	ResetPasswordRule = Rule{
		Name:    "reset-password",
		Max:     5,
		Window:  time.Hour,
		Message: "Too many password reset attempts. Please try again later.",
	}
)

// Middleware enforces rule per client IP. When Redis cannot be reached the
// request is rejected rather than let through unmetered.
func Middleware(l *Limiter, rule Rule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := l.Allow(c.UserContext(), rule, c.IP())
		if err != nil {
			logging.FromFiber(c, nil).ErrorContext(c.UserContext(), "rate limiter unavailable",
				"rule", rule.Name,
				"error", err,
			)
			return apperr.Internal("Rate limiter unavailable. Please try again later.", err)
		}

		resetSeconds := int(math.Ceil(res.ResetIn.Seconds()))
		c.Set("RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Set("RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Set("RateLimit-Reset", strconv.Itoa(resetSeconds))

		if !res.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(resetSeconds))
			logging.FromFiber(c, nil).WarnContext(c.UserContext(), "rate limit exceeded",
				"rule", rule.Name,
				"ip", c.IP(),
			)
			return apperr.New(apperr.KindRateLimited, rule.Message)
		}
		return c.Next()
	}
}
