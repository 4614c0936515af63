package share

import (
	"fmt"
	"html"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/davshare/davshare/internal/logger"
	"github.com/davshare/davshare/pkg/metrics"
	"github.com/davshare/davshare/pkg/pathres"
	"github.com/davshare/davshare/pkg/storage"
	"github.com/davshare/davshare/pkg/store"
	"github.com/davshare/davshare/pkg/webdav"
)

// Handler serves the public, unauthenticated share endpoints under /s.
type Handler struct {
	service  *Service
	storage  storage.Storage
	resolver *pathres.Resolver
	metrics  *metrics.ShareMetrics
}

// NewHandler wires the public share handler. metrics may be nil.
func NewHandler(service *Service, st storage.Storage, r *pathres.Resolver, m *metrics.ShareMetrics) *Handler {
	return &Handler{service: service, storage: st, resolver: r, metrics: m}
}

func accessOutcome(reason Reason) string {
	switch reason {
	case ReasonNotFound:
		return "not_found"
	case ReasonExpired:
		return "expired"
	case ReasonLimitReached:
		return "limit_reached"
	case ReasonBadPassword:
		return "bad_password"
	default:
		return "valid"
	}
}

// failValidation writes the HTTP response for an invalid link. A wrong
// password is the caller's mistake (401); everything else is reported as
// absent (404) so probing tokens learns nothing.
func failValidation(c *gin.Context, reason Reason) {
	status := http.StatusNotFound
	if reason == ReasonBadPassword {
		status = http.StatusUnauthorized
	}
	c.JSON(status, gin.H{"error": reason.Message()})
}

// Access handles GET /s/:token: streams a shared file or renders the HTML
// listing of a shared folder. The optional password travels as a query
// parameter.
func (h *Handler) Access(c *gin.Context) {
	token := c.Param("token")
	password := c.Query("password")

	link, reason, err := h.service.Validate(c.Request.Context(), token, password)
	if err != nil {
		logger.Error("share validation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.metrics.RecordAccess(accessOutcome(reason))
	if link == nil {
		failValidation(c, reason)
		return
	}

	if err := h.service.RecordAccess(c.Request.Context(), token); err != nil {
		logger.Warn("failed to record share access for token: %v", err)
	}

	fsPath, err := h.resolver.Resolve(link.ResourcePath)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	if !h.storage.Exists(fsPath) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource no longer exists"})
		return
	}

	if link.ResourceType == store.ResourceTypeFile {
		h.serveFile(c, fsPath)
		return
	}
	h.serveFolderListing(c, fsPath, link)
}

// FileAccess handles GET /s/:token/file?path=...: downloads one file from
// inside a shared folder. The requested path must be textually prefixed by
// the share's resource path; the resolver's containment check still runs
// afterwards, so both guards have to pass.
func (h *Handler) FileAccess(c *gin.Context) {
	token := c.Param("token")
	password := c.Query("password")

	filePath, ok := c.GetQuery("path")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path parameter required"})
		return
	}

	link, reason, err := h.service.Validate(c.Request.Context(), token, password)
	if err != nil {
		logger.Error("share validation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	h.metrics.RecordAccess(accessOutcome(reason))
	if link == nil {
		failValidation(c, reason)
		return
	}

	if !strings.HasPrefix(filePath, link.ResourcePath) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	if err := h.service.RecordAccess(c.Request.Context(), token); err != nil {
		logger.Warn("failed to record share access for token: %v", err)
	}

	fsPath, err := h.resolver.Resolve(filePath)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	if !h.storage.Exists(fsPath) || h.storage.IsDirectory(fsPath) {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	h.serveFile(c, fsPath)
}

func (h *Handler) serveFile(c *gin.Context, fsPath string) {
	content, err := h.storage.ReadFile(fsPath)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	fileName := filepath.Base(fsPath)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, webdav.GuessContentType(fileName), content)
}

func (h *Handler) serveFolderListing(c *gin.Context, fsPath string, link *store.ShareLink) {
	entries := h.storage.ListDirectory(fsPath)
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(filepath.Base(entries[i])) < strings.ToLower(filepath.Base(entries[j]))
	})

	folderName := filepath.Base(fsPath)

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>")
	sb.WriteString("<html><head>")
	sb.WriteString(`<meta charset="UTF-8">`)
	fmt.Fprintf(&sb, "<title>Shared Folder: %s</title>", html.EscapeString(folderName))
	sb.WriteString("<style>")
	sb.WriteString("body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; }")
	sb.WriteString("h1 { color: #333; }")
	sb.WriteString("ul { list-style: none; padding: 0; }")
	sb.WriteString("li { padding: 10px; border-bottom: 1px solid #eee; }")
	sb.WriteString("li:hover { background: #f5f5f5; }")
	sb.WriteString("a { text-decoration: none; color: #0066cc; }")
	sb.WriteString(".folder::before { content: '\\1F4C1 '; }")
	sb.WriteString(".file::before { content: '\\1F4C4 '; }")
	sb.WriteString(".size { color: #666; font-size: 0.9em; margin-left: 10px; }")
	sb.WriteString("</style>")
	sb.WriteString("</head><body>")
	fmt.Fprintf(&sb, "<h1>%s</h1>", html.EscapeString(folderName))
	sb.WriteString("<ul>")

	for _, entry := range entries {
		name := filepath.Base(entry)
		escaped := html.EscapeString(name)

		if h.storage.IsDirectory(entry) {
			// Folders are shown but not browsable; that would need
			// nested share semantics.
			fmt.Fprintf(&sb, `<li class="folder">%s</li>`, escaped)
			continue
		}

		subPath := link.ResourcePath
		if !strings.HasSuffix(subPath, "/") {
			subPath += "/"
		}
		subPath += name

		size := ""
		if meta := h.storage.GetMetadata(entry); meta != nil {
			size = formatSize(meta.Size)
		}

		href := fmt.Sprintf("/s/%s/file?path=%s", url.PathEscape(link.Token), url.QueryEscape(subPath))
		fmt.Fprintf(&sb, `<li class="file"><a href="%s">%s</a><span class="size">%s</span></li>`,
			html.EscapeString(href), escaped, size)
	}

	sb.WriteString("</ul>")
	sb.WriteString("</body></html>")

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(sb.String()))
}

func formatSize(bytes int64) string {
	switch {
	case bytes < 1<<10:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1<<20:
		return fmt.Sprintf("%d KB", bytes/(1<<10))
	case bytes < 1<<30:
		return fmt.Sprintf("%d MB", bytes/(1<<20))
	default:
		return fmt.Sprintf("%d GB", bytes/(1<<30))
	}
}
