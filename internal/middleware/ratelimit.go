// Package middleware holds the Fiber middleware for the audit API.
package middleware

import (
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-diff-auditor/internal/port"
	"github.com/arturoeanton/go-diff-auditor/internal/ratelimit"
)

// RateLimitConfig configures the per-client request limiter.
type RateLimitConfig struct {
	Limiter *ratelimit.Limiter
	// TrustProxyHeaders enables client identification via X-Forwarded-For /
	// X-Real-IP. Leave off unless a trusted proxy terminates requests:
	// these headers are trivially spoofed otherwise.
	TrustProxyHeaders bool
}

// RateLimit rejects requests with 429 once a client's sliding window is
// full. Denied requests never reach the handler, so they consume neither a
// cache lookup nor a provider call.
func RateLimit(cfg RateLimitConfig) fiber.Handler {
	return func(c fiber.Ctx) error {
		allowed, retryAfter := cfg.Limiter.Allow(ClientID(c, cfg.TrustProxyHeaders))
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Set("Retry-After", strconv.Itoa(seconds))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":               port.ErrRateLimited.Error(),
				"retry_after_seconds": seconds,
			})
		}
		return c.Next()
	}
}

// ClientID derives the client identity for rate limiting. Forwarded headers
// are honored only when the deployment explicitly trusts its proxy.
func ClientID(c fiber.Ctx, trustProxy bool) string {
	if trustProxy {
		if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
			return strings.TrimSpace(strings.Split(forwarded, ",")[0])
		}
		if realIP := c.Get("X-Real-IP"); realIP != "" {
			return strings.TrimSpace(realIP)
		}
	}
	if ip := c.IP(); ip != "" {
		return ip
	}
	return "unknown"
}
