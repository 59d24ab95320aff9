package relay

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"feedviewer/internal/metrics"
)

// requestLogger logs each request as one structured line.
func requestLogger(log zerolog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		evt := log.Info()
		if status >= 500 {
			evt = log.Error()
		} else if status >= 400 {
			evt = log.Warn()
		}

		evt.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("duration_ms", time.Since(start)).
			Int("bytes_sent", len(c.Response().Body())).
			Msg("request")

		return err
	}
}

// requestMetrics counts relay endpoint responses by status.
func requestMetrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		// Copy before c.Next(): fiber reuses the underlying buffer.
		path := string([]byte(c.Path()))

		err := c.Next()

		if path == Path {
			metrics.RelayRequests.WithLabelValues(strconv.Itoa(c.Response().StatusCode())).Inc()
		}
		return err
	}
}
