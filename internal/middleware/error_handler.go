package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/policyqa/core/internal/errors"
)

// ErrorHandler renders the last error attached to the Gin context as the
// error envelope.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		if appErr, ok := errors.IsAppError(err); ok {
			c.JSON(appErr.HTTPCode, gin.H{
				"error": gin.H{
					"kind":           appErr.Kind,
					"message":        appErr.Message,
					"stage":          appErr.Stage,
					"retry_after_ms": appErr.RetryAfterMs,
				},
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"kind":    errors.KindInternal,
				"message": "internal server error",
			},
		})
	}
}
