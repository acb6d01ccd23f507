package middleware

import (
	"strconv"
	"strings"
	"time"

	"DetectOverlay/pkg/log"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type loggingMiddleware struct {
	logger *logrus.Logger
}

func newLoggingMiddleware(logger *logrus.Logger) *loggingMiddleware {
	return &loggingMiddleware{
		logger: logger,
	}
}

func (m *loggingMiddleware) handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID, ok := c.Locals(RequestIDKey).(string)
		if !ok || requestID == "" {
			requestID = "unknown"
		}

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()

		logFields := log.Fields{
			"request_id":    requestID,
			"method":        c.Method(),
			"path":          c.Path(),
			"status":        status,
			"latency_ms":    latency.Milliseconds(),
			"ip":            c.IP(),
			"user_agent":    c.Get("User-Agent"),
			"response_size": len(c.Response().Body()),
		}

		if ct := string(c.Request().Header.ContentType()); ct != "" {
			logFields["request_body"] = describeBody(ct, len(c.Request().Body()))
		}

		entry := m.logger.WithFields(logFields)
		if status >= 500 {
			entry.Error("Server error")
		} else if status >= 400 {
			entry.Warn("Client error")
		} else {
			entry.Info("Success")
		}

		return err
	}
}

// describeBody never logs media payloads, only their shape.
func describeBody(contentType string, size int) string {
	kind := contentType
	if i := strings.Index(kind, ";"); i >= 0 {
		kind = kind[:i]
	}
	return kind + " (" + formatBytes(size) + ")"
}

func formatBytes(n int) string {
	const unit = 1024
	if n < unit {
		return strconv.Itoa(n) + " B"
	}
	if n < unit*unit {
		return strconv.Itoa(n/unit) + " KiB"
	}
	return strconv.Itoa(n/(unit*unit)) + " MiB"
}
