package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"phonebook/config"
	domainerrors "phonebook/internal/domain/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, requests int, window time.Duration) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRateLimiter(RateLimiterParams{
		Config: &config.Config{RateLimit: &config.RateLimitConfig{Enabled: true, Requests: requests, Window: window}},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Redis:  client,
	})

	return limiter, mr
}

func serveLimited(limiter *RateLimiter, ip string) error {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
	req.RemoteAddr = ip + ":1234"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/contacts")

	return limiter.Handle(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
}

func TestRateLimiter_FixedWindow(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, 5*time.Second)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	require.NoError(t, serveLimited(limiter, "10.0.0.1"))
	require.NoError(t, serveLimited(limiter, "10.0.0.1"))
	assert.ErrorIs(t, serveLimited(limiter, "10.0.0.1"), domainerrors.ErrTooManyRequests)

	// Other clients have their own budget.
	assert.NoError(t, serveLimited(limiter, "10.0.0.2"))

	// The next window starts fresh.
	now = now.Add(5 * time.Second)
	assert.NoError(t, serveLimited(limiter, "10.0.0.1"))
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Second)
	mr.Close()

	for range 3 {
		assert.NoError(t, serveLimited(limiter, "10.0.0.1"))
	}
}

func TestRateLimiter_DisabledPassesThrough(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterParams{
		Config: &config.Config{RateLimit: &config.RateLimitConfig{Enabled: false, Requests: 1, Window: time.Second}},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	for range 3 {
		assert.NoError(t, serveLimited(limiter, "10.0.0.1"))
	}
}
