package rbac

import (
	"net/http"

	"callcenter/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireAnyRole allows access if the caller has any of the provided roles.
// admin bypasses all checks.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "status": "fail", "message": "Role required"})
			return
		}

		if IsAdmin(role) {
			c.Next()
			return
		}

		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "status": "fail", "message": "Forbidden"})
			return
		}
		c.Next()
	}
}

// RequireSelfOrRole lets an agent act on its own :param resource, and anyone
// holding one of roles act on any.
func RequireSelfOrRole(param string, roles ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		role, err := auth.Role(ctx)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "status": "fail", "message": "Role required"})
			return
		}
		if IsAdmin(role) {
			c.Next()
			return
		}
		if _, ok := allowedSet[role]; ok {
			c.Next()
			return
		}
		if id, err := auth.AgentID(ctx); err == nil && id == c.Param(param) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "status": "fail", "message": "Forbidden"})
	}
}
