package webdav

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/davshare/davshare/pkg/authz"
)

// Put stores the request body as the target file, creating it if absent.
//
// The parent collection must already exist (409 otherwise) and the target
// must not be a collection (405). If-Match and If-None-Match: * are honored
// before any bytes land; a failed precondition answers 412. If-Match
// compares the header value against the current entity tag verbatim. The
// write itself is atomic, so readers never observe a half-written file.
func (h *Handler) Put(c *gin.Context) {
	username, ok := requireAuth(c)
	if !ok {
		return
	}

	path := urlPath(c)
	if !h.checkPermission(c, username, path, authz.OpWrite) {
		return
	}

	fsPath, err := h.resolver.Resolve(path)
	if err != nil {
		failResolve(c, err)
		return
	}

	parent := filepath.Dir(fsPath)
	if parent != fsPath && !h.storage.IsDirectory(parent) {
		c.String(http.StatusConflict, "Parent collection does not exist")
		return
	}

	if h.storage.IsDirectory(fsPath) {
		c.String(http.StatusMethodNotAllowed, "Cannot PUT to a collection")
		return
	}

	exists := h.storage.Exists(fsPath)

	if ifMatch := c.GetHeader("If-Match"); ifMatch != "" {
		if !exists {
			c.Status(http.StatusPreconditionFailed)
			return
		}
		meta := h.storage.GetMetadata(fsPath)
		if meta == nil || ifMatch != meta.ETag() {
			c.Status(http.StatusPreconditionFailed)
			return
		}
	}

	if c.GetHeader("If-None-Match") == "*" && exists {
		c.Status(http.StatusPreconditionFailed)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "Failed to read request body")
		return
	}

	// Create-vs-update is decided before the write so the status code
	// reflects what the client actually caused.
	isCreate := !exists

	if err := h.storage.WriteFile(fsPath, body); err != nil {
		c.String(http.StatusInternalServerError, "%s", err.Error())
		return
	}

	if meta := h.storage.GetMetadata(fsPath); meta != nil {
		c.Header("ETag", meta.ETag())
	}

	if isCreate {
		c.Status(http.StatusCreated)
	} else {
		c.Status(http.StatusNoContent)
	}
}
