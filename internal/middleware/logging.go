package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/viewmaxx/backend/internal/logging"
	"github.com/viewmaxx/backend/internal/metrics"
)

// RequestLogger logs request details and records request metrics
func RequestLogger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger.LogHTTPRequest(c.Request.Method, path, c.ClientIP(), status, latency)
		metrics.RecordHTTPRequest(c.Request.Method, c.FullPath(), status, latency)
	}
}
