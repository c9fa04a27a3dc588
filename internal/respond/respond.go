package respond

import (
	"github.com/gin-gonic/gin"
)

var development bool

// SetDevelopment toggles inclusion of raw error detail in error envelopes
func SetDevelopment(enabled bool) {
	development = enabled
}

// Success writes the standard success envelope
func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// Error writes the standard error envelope and aborts the request
func Error(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": message,
	})
}

// InternalError writes a 500 envelope. In development mode the raw error is
// included; in production only the message leaves the process.
func InternalError(c *gin.Context, status int, message string, err error) {
	body := gin.H{
		"success": false,
		"message": message,
	}
	if development && err != nil {
		body["error"] = err.Error()
	}
	c.AbortWithStatusJSON(status, body)
}
