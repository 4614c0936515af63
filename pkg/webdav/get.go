package webdav

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/davshare/davshare/pkg/storage"
)

// Get serves file content. Head runs the same logic but stops after the
// headers. Directories are not listable through GET; that is PROPFIND's
// job, so a directory target answers 403.
func (h *Handler) Get(c *gin.Context) {
	h.serveFile(c, true)
}

// Head reports the same headers as Get without a body.
func (h *Handler) Head(c *gin.Context) {
	h.serveFile(c, false)
}

func (h *Handler) serveFile(c *gin.Context, withBody bool) {
	if _, ok := requireAuth(c); !ok {
		return
	}

	fsPath, err := h.resolver.Resolve(urlPath(c))
	if err != nil {
		failResolve(c, err)
		return
	}

	if !h.storage.Exists(fsPath) {
		c.Status(http.StatusNotFound)
		return
	}

	if h.storage.IsDirectory(fsPath) {
		c.String(http.StatusForbidden, "Cannot GET a directory")
		return
	}

	meta := h.storage.GetMetadata(fsPath)
	if meta == nil {
		c.Status(http.StatusNotFound)
		return
	}

	contentType := GuessContentType(fsPath)

	c.Header("ETag", meta.ETag())
	c.Header("Last-Modified", formatHTTPDate(meta.LastModified))
	c.Header("Content-Length", strconv.FormatInt(meta.Size, 10))
	c.Header("Content-Type", contentType)

	if !withBody {
		c.Status(http.StatusOK)
		return
	}

	content, err := h.storage.ReadFile(fsPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		c.String(http.StatusInternalServerError, "%s", err.Error())
		return
	}

	c.Data(http.StatusOK, contentType, content)
}
