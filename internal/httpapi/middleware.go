package httpapi

import (
	"callcenter/internal/audit"

	"github.com/gin-gonic/gin"
)

// RequestContext copies the client IP into the request context for audit records.
// The request logger is already there, set by logger.Middleware.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(audit.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}
