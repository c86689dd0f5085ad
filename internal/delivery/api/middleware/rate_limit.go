package middleware

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"phonebook/config"
	deliverycontext "phonebook/internal/delivery/context"
	domainerrors "phonebook/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateLimiterParams holds dependencies for RateLimiter, injected by Fx.
type RateLimiterParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
	Redis  redis.UniversalClient `optional:"true"`
}

// RateLimiter is a Redis fixed-window limiter keyed by client IP and route.
type RateLimiter struct {
	client   redis.UniversalClient
	requests int64
	window   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewRateLimiter returns a limiter, or a pass-through one when rate limiting is off.
func NewRateLimiter(params RateLimiterParams) *RateLimiter {
	limiter := &RateLimiter{
		logger: params.Logger,
		now:    time.Now,
	}

	cfg := params.Config.RateLimit
	if cfg == nil || !cfg.Enabled || params.Redis == nil {
		return limiter
	}

	limiter.client = params.Redis
	limiter.requests = int64(cfg.Requests)
	limiter.window = cfg.Window

	return limiter
}

// Handle counts the request in the current window and rejects it with 429 once the limit is exceeded.
// Redis failures let the request through.
func (l *RateLimiter) Handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if l.client == nil || l.requests <= 0 || l.window <= 0 {
			return next(c)
		}

		ctx := c.Request().Context()
		count, err := l.hit(ctx, c.Path(), c.RealIP())
		if err != nil {
			deliverycontext.GetLoggerOrDefault(ctx, l.logger).Warn("Rate limiter unavailable", slog.Any("error", err))

			return next(c)
		}

		if count > l.requests {
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))

			return domainerrors.ErrTooManyRequests
		}

		return next(c)
	}
}

func (l *RateLimiter) hit(ctx context.Context, route, ip string) (int64, error) {
	bucket := l.now().UnixNano() / int64(l.window)
	key := rateLimitKeyPrefix + route + ":" + ip + ":" + strconv.FormatInt(bucket, 10)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, l.window)

		return nil
	})
	if err != nil {
		return 0, err
	}

	return incr.Val(), nil
}
