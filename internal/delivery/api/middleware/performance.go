package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// HeaderPerformance carries the handler latency in seconds.
const HeaderPerformance = "Performance"

// Performance sets the Performance response header before the body is written.
func Performance(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		c.Response().Before(func() {
			elapsed := time.Since(start).Seconds()
			c.Response().Header().Set(HeaderPerformance, strconv.FormatFloat(elapsed, 'f', 6, 64))
		})

		return next(c)
	}
}
