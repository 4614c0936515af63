// Package webdav implements the protocol surface: the resource model, the
// multistatus XML encoder, and the method handlers for the RFC 4918 subset
// this server speaks (OPTIONS, PROPFIND, GET, HEAD, PUT, DELETE, MKCOL).
package webdav

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/davshare/davshare/pkg/storage"
)

// Resource is the protocol-visible projection of a filesystem entry: what
// PROPFIND reports and what GET/HEAD derive their headers from.
type Resource struct {
	// Href is the URL path of the resource, always rooted at the WebDAV
	// mount.
	Href string

	// DisplayName is the final path segment, or "/" for the root.
	DisplayName string

	// IsCollection reports whether the resource is a directory.
	IsCollection bool

	// ContentLength is the size in bytes; 0 for collections.
	ContentLength int64

	// LastModified is the modification timestamp.
	LastModified time.Time

	// ETag is the opaque validator for the current content.
	ETag string

	// ContentType is the reported media type.
	ContentType string
}

// NewResource builds a Resource from storage metadata. Collections report
// the conventional httpd/unix-directory type; files default to
// application/octet-stream (GET refines this by extension).
func NewResource(href, displayName string, meta *storage.ResourceMetadata) Resource {
	contentType := "application/octet-stream"
	if meta.IsDirectory {
		contentType = "httpd/unix-directory"
	}
	return Resource{
		Href:          href,
		DisplayName:   displayName,
		IsCollection:  meta.IsDirectory,
		ContentLength: meta.Size,
		LastModified:  meta.LastModified,
		ETag:          meta.ETag(),
		ContentType:   contentType,
	}
}

// FormatLastModified renders the timestamp per RFC 1123 in UTC, the format
// WebDAV clients expect in getlastmodified and Last-Modified.
func (r Resource) FormatLastModified() string {
	return formatHTTPDate(r.LastModified)
}

func formatHTTPDate(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006 15:04:05") + " GMT"
}

// contentTypes maps lowercase file extensions to media types for GET
// responses. Anything unlisted is served as application/octet-stream.
var contentTypes = map[string]string{
	"txt":  "text/plain",
	"html": "text/html",
	"htm":  "text/html",
	"css":  "text/css",
	"js":   "application/javascript",
	"json": "application/json",
	"xml":  "application/xml",
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"zip":  "application/zip",
	"tar":  "application/x-tar",
	"gz":   "application/gzip",
}

// GuessContentType returns the media type for a file name based on its
// extension.
func GuessContentType(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
