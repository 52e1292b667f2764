package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joy095/booking-core/logger"
	"github.com/joy095/booking-core/middlewares/auth"
	"github.com/joy095/booking-core/permissions"
)

// RequirePermission gates a route on the RBAC graph. Runs after
// AuthMiddleware; denial is a 403, distinct from the 401 of a missing
// identity.
func RequirePermission(graph *permissions.Graph, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := auth.GetUserID(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "error": "Authentication required."})
			return
		}

		allowed, err := graph.HasPermission(c.Request.Context(), userID, permission)
		if err != nil {
			logger.ErrorLogger.Errorf("Permission check failed for user %s: %v", userID, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": "SERVER_ERROR", "error": "Could not verify permissions."})
			return
		}
		if !allowed {
			logger.WarnLogger.Warnf("User %s denied permission %s", userID, permission)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": "ACCESS_DENIED", "error": "You do not have permission to perform this action."})
			return
		}

		c.Next()
	}
}
