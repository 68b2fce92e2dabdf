package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/feedmill/quote-service/internal/adapters/http/dto"
	"github.com/feedmill/quote-service/internal/platform/logging"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// RateLimit limits requests per client IP. Requests over the limit get
// 429 RATE_LIMITED. Store failures let the request through.
func RateLimit(l *limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		state, err := l.Get(ctx, c.ClientIP())
		if err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "rate limiter unavailable", slog.Any("error", err))
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set(HeaderRateLimitLimit, strconv.FormatInt(state.Limit, 10))
		h.Set(HeaderRateLimitRemaining, strconv.FormatInt(state.Remaining, 10))
		h.Set(HeaderRateLimitReset, strconv.FormatInt(state.Reset, 10))

		if state.Reached {
			retryAfter := max(time.Until(time.Unix(state.Reset, 0)).Round(time.Second), 0)
			h.Set(HeaderRetryAfter, strconv.Itoa(int(retryAfter.Seconds())))
			dto.AbortWithCode(c, dto.ErrorCodeRateLimited, "rate limit exceeded")
			return
		}

		c.Next()
	}
}
