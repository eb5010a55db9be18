package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// Timeout bounds every request to d, replacing the request's context the
// same way main.go bounds the startup Redis ping with
// context.WithTimeout. Handlers that thread ctx through to the store/cache
// see it cancelled once the deadline passes; they're still responsible for
// checking ctx.Err() on their own blocking calls.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
