package webdav

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/davshare/davshare/internal/logger"
	"github.com/davshare/davshare/pkg/auth"
	"github.com/davshare/davshare/pkg/authz"
	"github.com/davshare/davshare/pkg/pathres"
	"github.com/davshare/davshare/pkg/storage"
)

// Handler serves the WebDAV method set for one filesystem subtree.
//
// GET/HEAD/OPTIONS are authenticated but not authorized against the rule
// set; PROPFIND, PUT, DELETE and MKCOL check the corresponding capability
// before touching the filesystem. This asymmetry is inherited behavior,
// kept on purpose.
type Handler struct {
	resolver *pathres.Resolver
	storage  storage.Storage
	authz    *authz.Engine
}

// NewHandler wires a Handler from its collaborators.
func NewHandler(resolver *pathres.Resolver, st storage.Storage, engine *authz.Engine) *Handler {
	return &Handler{
		resolver: resolver,
		storage:  st,
		authz:    engine,
	}
}

// Options responds with the server's DAV compliance class and method set.
func (h *Handler) Options(c *gin.Context) {
	c.Header("DAV", "1")
	c.Header("Allow", "OPTIONS, PROPFIND, GET, HEAD, PUT, DELETE, MKCOL")
	c.Header("MS-Author-Via", "DAV")
	c.Status(http.StatusOK)
}

// urlPath extracts the resource path below the WebDAV mount. The catch-all
// parameter carries a leading slash; the mount root itself yields "/".
func urlPath(c *gin.Context) string {
	p := c.Param("path")
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// requireAuth returns the authenticated principal, or writes 401 and
// returns false. The basic-auth middleware normally guarantees a
// principal; this is the handler-level backstop.
func requireAuth(c *gin.Context) (string, bool) {
	username := auth.Username(c)
	if username == "" {
		c.Header("WWW-Authenticate", auth.Realm)
		c.Status(http.StatusUnauthorized)
		return "", false
	}
	return username, true
}

// checkPermission verifies the capability and writes the failure response
// itself: 403 on denial, 500 if the rule lookup failed.
func (h *Handler) checkPermission(c *gin.Context, username, path string, op authz.Operation) bool {
	allowed, err := h.authz.HasPermission(c.Request.Context(), username, path, op)
	if err != nil {
		logger.Error("permission lookup failed for %s on %s: %v", username, path, err)
		c.String(http.StatusInternalServerError, "permission lookup failed")
		return false
	}
	if !allowed {
		c.String(http.StatusForbidden, "No %s permission", op)
		return false
	}
	return true
}

// failResolve maps a path resolution error onto the response: path escapes
// are 403, anything else is 500 with the underlying message.
func failResolve(c *gin.Context, err error) {
	if errors.Is(err, pathres.ErrAccessDenied) {
		c.String(http.StatusForbidden, "Access denied")
		return
	}
	c.String(http.StatusInternalServerError, "%s", err.Error())
}
