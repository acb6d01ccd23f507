package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type Middleware interface {
	NewRateLimiter(ctx *fiber.Ctx) error
	NewVideoRateLimiter(ctx *fiber.Ctx) error
	NewRequestIDMiddleware() fiber.Handler
	NewLoggingMiddleware() fiber.Handler
	GetRequestID(ctx *fiber.Ctx) string
}

type middleware struct {
	uploadLimiter       *rateLimiter
	videoLimiter        *rateLimiter
	loggingMiddleware   *loggingMiddleware
	requestIDMiddleware fiber.Handler
	log                 *logrus.Logger
}

type Option func(*middleware)

// WithRateLimit overrides the per-IP limit on image and verify uploads.
func WithRateLimit(rps float64, burst int) Option {
	return func(m *middleware) {
		m.uploadLimiter = newRateLimiter("upload", rate.Limit(rps), burst)
	}
}

// WithVideoRateLimit overrides the per-IP limit on video tracking.
func WithVideoRateLimit(rps float64, burst int) Option {
	return func(m *middleware) {
		m.videoLimiter = newRateLimiter("video", rate.Limit(rps), burst)
	}
}

func New(logger *logrus.Logger, opts ...Option) Middleware {
	m := &middleware{
		uploadLimiter:       newRateLimiter("upload", defaultUploadRPS, defaultUploadBurst),
		videoLimiter:        newRateLimiter("video", defaultVideoRPS, defaultVideoBurst),
		loggingMiddleware:   newLoggingMiddleware(logger),
		requestIDMiddleware: NewRequestIDMiddleware(),
		log:                 logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *middleware) GetRequestID(ctx *fiber.Ctx) string {
	requestID, ok := ctx.Locals(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

func (m *middleware) NewRequestIDMiddleware() fiber.Handler {
	return m.requestIDMiddleware
}

func (m *middleware) NewLoggingMiddleware() fiber.Handler {
	return m.loggingMiddleware.handler()
}
