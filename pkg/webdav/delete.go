package webdav

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/davshare/davshare/pkg/authz"
	"github.com/davshare/davshare/pkg/storage"
)

// Delete removes a file or an empty collection. Non-empty collections are
// refused with 409 rather than deleted recursively.
func (h *Handler) Delete(c *gin.Context) {
	username, ok := requireAuth(c)
	if !ok {
		return
	}

	path := urlPath(c)
	if !h.checkPermission(c, username, path, authz.OpDelete) {
		return
	}

	fsPath, err := h.resolver.Resolve(path)
	if err != nil {
		failResolve(c, err)
		return
	}

	if !h.storage.Exists(fsPath) {
		c.Status(http.StatusNotFound)
		return
	}

	if h.storage.IsDirectory(fsPath) {
		err = h.storage.DeleteDirectory(fsPath)
	} else {
		err = h.storage.DeleteFile(fsPath)
	}

	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, storage.ErrNotEmpty):
		c.String(http.StatusConflict, "Directory is not empty")
	case errors.Is(err, storage.ErrNotFound):
		c.Status(http.StatusNotFound)
	default:
		c.String(http.StatusInternalServerError, "%s", err.Error())
	}
}
