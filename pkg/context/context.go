package context

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	// LocalsRequestID is where the request-id middleware leaves the id.
	LocalsRequestID = "X-Request-ID"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	requestID, ok := ctx.Value(requestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

// FromFiberCtx derives a context for service calls made on behalf of c. It is
// rooted at parent, not at the fasthttp request, because fiber recycles the
// request context once the handler returns.
func FromFiberCtx(parent context.Context, c *fiber.Ctx) context.Context {
	if parent == nil {
		parent = context.Background()
	}

	requestID, ok := c.Locals(LocalsRequestID).(string)
	if !ok || requestID == "" {
		requestID = c.Get(LocalsRequestID)

		if requestID == "" {
			requestID = "unknown"
		}
	}

	return WithRequestID(parent, requestID)
}
