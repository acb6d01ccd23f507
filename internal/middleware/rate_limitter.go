package middleware

import (
	"net/http"
	"sync"

	"DetectOverlay/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	ErrTooManyRequests = response.NewError(http.StatusTooManyRequests, "too many requests")
)

// Default budgets. A video submission holds a tracking worker for minutes, so
// its bucket is far smaller than the one shared by image and verify uploads.
const (
	defaultUploadRPS   = 50
	defaultUploadBurst = 100
	defaultVideoRPS    = 0.2
	defaultVideoBurst  = 3
)

// rateLimiter keeps one token bucket per client IP.
type rateLimiter struct {
	name    string
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

func newRateLimiter(name string, limit rate.Limit, burst int) *rateLimiter {
	return &rateLimiter{
		name:    name,
		limit:   limit,
		burst:   burst,
		clients: make(map[string]*rate.Limiter),
	}
}

func (r *rateLimiter) allow(ip string) bool {
	r.mu.Lock()
	limiter, ok := r.clients[ip]
	if !ok {
		limiter = rate.NewLimiter(r.limit, r.burst)
		r.clients[ip] = limiter
	}
	r.mu.Unlock()

	return limiter.Allow()
}

func (m *middleware) limitBy(r *rateLimiter, ctx *fiber.Ctx) error {
	clientIP := ctx.IP()

	if !r.allow(clientIP) {
		m.log.WithFields(logrus.Fields{
			"bucket": r.name,
			"ip":     clientIP,
			"path":   ctx.Path(),
		}).Warn("Submission rate limited")
		return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": ErrTooManyRequests.Error(),
			"code":  "RATE_LIMITED",
		})
	}

	return ctx.Next()
}

// NewRateLimiter guards image detection and car verification. Every upload
// costs a remote inference, so the limit is per client IP.
func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	return m.limitBy(m.uploadLimiter, ctx)
}

// NewVideoRateLimiter guards video tracking with its own, stricter bucket.
func (m *middleware) NewVideoRateLimiter(ctx *fiber.Ctx) error {
	return m.limitBy(m.videoLimiter, ctx)
}
