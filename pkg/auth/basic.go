// Package auth provides HTTP Basic authentication against the user store
// and exposes the authenticated principal to downstream handlers.
package auth

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/davshare/davshare/internal/logger"
	"github.com/davshare/davshare/pkg/store"
)

// Realm is the Basic auth realm presented in challenges.
const Realm = `Basic realm="davshare"`

// principalKey is the gin context key carrying the authenticated username.
const principalKey = "davshare.principal"

// Username returns the authenticated principal for the request, or ""
// when the request is unauthenticated.
func Username(c *gin.Context) string {
	name, _ := c.Get(principalKey)
	s, _ := name.(string)
	return s
}

// BasicAuth returns middleware that validates HTTP Basic credentials
// against the user store. On success the username is stored in the
// context; on failure the request is aborted with 401 and a challenge.
func BasicAuth(users store.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := parseBasicAuth(c.GetHeader("Authorization"))
		if !ok {
			challenge(c)
			return
		}

		user, err := users.Authenticate(c.Request.Context(), username, password)
		if err != nil {
			logger.Error("authentication lookup failed for %s: %v", username, err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if user == nil {
			challenge(c)
			return
		}

		c.Set(principalKey, user.Username)
		c.Next()
	}
}

func challenge(c *gin.Context) {
	c.Header("WWW-Authenticate", Realm)
	c.AbortWithStatus(http.StatusUnauthorized)
}

// parseBasicAuth decodes an Authorization header of the Basic scheme.
func parseBasicAuth(header string) (username, password string, ok bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(strings.TrimPrefix(header, prefix)))
	if err != nil {
		return "", "", false
	}

	creds := string(raw)
	i := strings.IndexByte(creds, ':')
	if i < 0 {
		return "", "", false
	}
	username, password = creds[:i], creds[i+1:]
	if username == "" {
		return "", "", false
	}
	return username, password, true
}
