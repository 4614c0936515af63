package webdav

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/davshare/davshare/pkg/authz"
)

// Propfind describes a resource and, at depth 1, its immediate children.
//
// Depth handling: "0" describes only the target, "1" or a missing or
// unrecognized header adds direct children, "infinity" is rejected with
// 403. This server never recurses.
func (h *Handler) Propfind(c *gin.Context) {
	username, ok := requireAuth(c)
	if !ok {
		return
	}

	path := urlPath(c)
	if !h.checkPermission(c, username, path, authz.OpList) {
		return
	}

	depth := 1
	switch c.GetHeader("Depth") {
	case "0":
		depth = 0
	case "infinity":
		c.String(http.StatusForbidden, "Depth: infinity not supported")
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

	var resources []Resource

	if meta := h.storage.GetMetadata(fsPath); meta != nil {
		displayName := filepath.Base(fsPath)
		if path == "/" {
			displayName = "/"
		}
		resources = append(resources, NewResource(path, displayName, meta))
	}

	if depth == 1 && h.storage.IsDirectory(fsPath) {
		for _, childPath := range h.storage.ListDirectory(fsPath) {
			childMeta := h.storage.GetMetadata(childPath)
			if childMeta == nil {
				// The child vanished between list and stat; skip it
				// rather than failing the whole listing.
				continue
			}
			childHref, err := h.resolver.ToURLPath(childPath)
			if err != nil {
				failResolve(c, err)
				return
			}
			resources = append(resources, NewResource(childHref, filepath.Base(childPath), childMeta))
		}
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusMultiStatus, BuildMultiStatus(resources))
}
