package ratelimit

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Kripu77/prompt-map-sub001/internal/pkg/logger"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/metrics"
	"github.com/Kripu77/prompt-map-sub001/internal/pkg/serverutils"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Middleware rejects requests over the limit with 429 before the handler runs.
// Signed-in users are keyed by user id, everyone else by client IP. Limiter
// failures let the request through.
func Middleware(l Limiter, route string, log logger.ILogger, m *metrics.Metrics) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		key := "ip:" + ctx.IP()
		if userID, ok := serverutils.UserID(ctx); ok {
			key = "user:" + userID.String()
		}
		key = route + ":" + key

		res, err := l.Allow(ctx.UserContext(), key)
		if err != nil {
			log.Warn("RateLimiter", "Limiter unavailable, allowing request", map[string]interface{}{
				"route": route,
				"error": err.Error(),
			})
			return ctx.Next()
		}

		ctx.Set(HeaderLimit, strconv.Itoa(res.Limit))
		ctx.Set(HeaderRemaining, strconv.Itoa(res.Remaining))
		ctx.Set(HeaderReset, strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			if m != nil {
				m.RateLimitedTotal.WithLabelValues(route).Inc()
			}
			return serverutils.NewRateLimitError(res.RetryAfter(time.Now()))
		}
		return ctx.Next()
	}
}
