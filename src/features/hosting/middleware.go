package hosting

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// pollPaths are hit every few seconds by clients following a job, only logged on failure.
var pollPaths = []string{"/jobs/", "/health"}

func isPollPath(path string) bool {
	for _, p := range pollPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// LogAllRequestsMiddleware logs every request, errors at error level
func LogAllRequestsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()

		if status >= 400 {
			slog.Error("HTTP request",
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"duration", duration.String(),
				"error", err,
			)
		} else if !isPollPath(c.Path()) || c.Method() != fiber.MethodGet {
			slog.Debug("HTTP request",
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"duration", duration.String(),
			)
		}
		return err
	}
}
