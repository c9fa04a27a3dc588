package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/viewmaxx/backend/internal/respond"
)

// AttemptLimiter is the slice of the cache the credential throttle needs
type AttemptLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}

// ThrottleAuth caps credential attempts per client IP inside a fixed window.
// The counter lives in Redis so the cap holds across API instances, unlike
// the in-process request limiter.
func ThrottleAuth(store AttemptLimiter, limit int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("auth:%s", c.ClientIP())

		allowed, err := store.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			// Redis trouble must not lock everyone out of login
			c.Next()
			return
		}

		if !allowed {
			respond.Error(c, http.StatusTooManyRequests, "Too many attempts, please try again later.")
			return
		}

		c.Next()
	}
}
