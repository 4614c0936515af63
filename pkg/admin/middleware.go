// Package admin exposes the management API for users and permission rules.
// Every endpoint sits behind basic auth plus an admin gate.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/davshare/davshare/internal/logger"
	"github.com/davshare/davshare/pkg/auth"
	"github.com/davshare/davshare/pkg/store"
)

// RequireAdmin returns middleware that rejects non-admin principals. It
// assumes basic auth already ran; a missing principal is answered with 401,
// a non-admin one with 403.
func RequireAdmin(users store.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := auth.Username(c)
		if username == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		isAdmin, err := users.IsAdmin(c.Request.Context(), username)
		if err != nil {
			logger.Error("admin check failed for %s: %v", username, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !isAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin privileges required"})
			return
		}

		c.Next()
	}
}
