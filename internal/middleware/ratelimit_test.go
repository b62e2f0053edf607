package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-diff-auditor/internal/ratelimit"
)

func newLimitedApp(limit int, trustProxy bool) *fiber.App {
	app := fiber.New()
	app.Use(RateLimit(RateLimitConfig{
		Limiter:           ratelimit.New(limit, time.Minute),
		TrustProxyHeaders: trustProxy,
	}))
	app.Get("/ping", func(c fiber.Ctx) error {
		return c.SendString("pong")
	})
	return app
}

func TestRateLimitAllowsThenDenies(t *testing.T) {
	app := newLimitedApp(2, false)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, "request %d should pass", i+1)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"), "denial should carry a Retry-After header")
}

func TestClientIDIgnoresForwardedHeadersByDefault(t *testing.T) {
	app := newLimitedApp(1, false)

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Spoofing a new identity must not reset the window.
	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestClientIDHonorsForwardedHeadersWhenTrusted(t *testing.T) {
	app := newLimitedApp(1, true)

	first := httptest.NewRequest("GET", "/ping", nil)
	first.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	resp, err := app.Test(first)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	second := httptest.NewRequest("GET", "/ping", nil)
	second.Header.Set("X-Forwarded-For", "198.51.100.7")
	resp, err = app.Test(second)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, "a different forwarded identity gets its own window")
}
