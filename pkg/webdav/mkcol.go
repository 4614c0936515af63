package webdav

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/davshare/davshare/pkg/authz"
	"github.com/davshare/davshare/pkg/storage"
)

// Mkcol creates a new collection. The parent must already exist (409) and
// the target must not (405). Intermediate collections are never created
// implicitly.
func (h *Handler) Mkcol(c *gin.Context) {
	username, ok := requireAuth(c)
	if !ok {
		return
	}

	path := urlPath(c)
	if !h.checkPermission(c, username, path, authz.OpMkcol) {
		return
	}

	fsPath, err := h.resolver.Resolve(path)
	if err != nil {
		failResolve(c, err)
		return
	}

	if h.storage.Exists(fsPath) {
		c.String(http.StatusMethodNotAllowed, "Resource already exists")
		return
	}

	parent := filepath.Dir(fsPath)
	if parent != fsPath && !h.storage.IsDirectory(parent) {
		c.String(http.StatusConflict, "Parent collection does not exist")
		return
	}

	if err := h.storage.CreateDirectory(fsPath); err != nil {
		switch {
		case errors.Is(err, storage.ErrExists):
			c.String(http.StatusMethodNotAllowed, "Resource already exists")
		case errors.Is(err, storage.ErrNotFound):
			c.String(http.StatusConflict, "Parent collection does not exist")
		default:
			c.String(http.StatusInternalServerError, "%s", err.Error())
		}
		return
	}

	c.Status(http.StatusCreated)
}
