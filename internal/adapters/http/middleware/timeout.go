package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feedmill/quote-service/internal/adapters/http/dto"
)

// Timeout returns middleware that sets a deadline on the request context.
// The store, renderer and catalog client stop with the context error once it
// expires and handlers map that to 504. A handler that outlives the deadline
// without writing a response gets a 504 TIMEOUT as well.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			dto.AbortWithCode(c, dto.ErrorCodeTimeout, "request timeout exceeded")
		}
	}
}
