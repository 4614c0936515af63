package admin

import (
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/davshare/davshare/internal/logger"
	"github.com/davshare/davshare/pkg/pathres"
	"github.com/davshare/davshare/pkg/storage"
	"github.com/davshare/davshare/pkg/webdav"
)

// FileAPI serves the admin file browser under /api/admin/files. It works
// directly on the served root, bypassing per-user permission rules; the
// admin gate in front of it is the only access control.
type FileAPI struct {
	resolver *pathres.Resolver
	storage  storage.Storage
}

// NewFileAPI wires the admin file browser.
func NewFileAPI(resolver *pathres.Resolver, st storage.Storage) *FileAPI {
	return &FileAPI{resolver: resolver, storage: st}
}

// FileEntry describes one file or folder in a browser response. MimeType
// is set for files only, ChildCount for folders only.
type FileEntry struct {
	Name          string  `json:"name"`
	Path          string  `json:"path"`
	Type          string  `json:"type"`
	Size          int64   `json:"size"`
	SizeFormatted string  `json:"sizeFormatted"`
	LastModified  string  `json:"lastModified"`
	MimeType      *string `json:"mimeType,omitempty"`
	ChildCount    *int    `json:"childCount,omitempty"`
}

// DirectoryListResponse is the GET /api/admin/files body.
type DirectoryListResponse struct {
	Path        string      `json:"path"`
	ParentPath  *string     `json:"parentPath"`
	Entries     []FileEntry `json:"entries"`
	TotalCount  int         `json:"totalCount"`
	FolderCount int         `json:"folderCount"`
	FileCount   int         `json:"fileCount"`
}

// MkdirRequest is the POST /api/admin/files/mkdir body.
type MkdirRequest struct {
	Path string `json:"path" binding:"required"`
}

// List handles GET /api/admin/files. Query parameters: path (default "/"),
// sort (name, size, modified) and order (asc, desc). Name order puts
// folders before files and compares names case-insensitively.
func (a *FileAPI) List(c *gin.Context) {
	urlPath := c.DefaultQuery("path", "/")
	sortBy := c.DefaultQuery("sort", "name")
	order := c.DefaultQuery("order", "asc")

	fsPath, err := a.resolver.Resolve(urlPath)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}
	if !a.storage.Exists(fsPath) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Path not found: " + urlPath})
		return
	}
	if !a.storage.IsDirectory(fsPath) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Not a directory: " + urlPath})
		return
	}

	entries := make([]FileEntry, 0)
	for _, child := range a.storage.ListDirectory(fsPath) {
		entries = append(entries, a.describe(child))
	}
	sortEntries(entries, sortBy, order)

	folders, files := 0, 0
	for _, e := range entries {
		if e.Type == "FOLDER" {
			folders++
		} else {
			files++
		}
	}

	c.JSON(http.StatusOK, DirectoryListResponse{
		Path:        urlPath,
		ParentPath:  parentOf(urlPath),
		Entries:     entries,
		TotalCount:  len(entries),
		FolderCount: folders,
		FileCount:   files,
	})
}

// Info handles GET /api/admin/files/info.
func (a *FileAPI) Info(c *gin.Context) {
	urlPath := c.Query("path")
	if urlPath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path parameter required"})
		return
	}

	fsPath, err := a.resolver.Resolve(urlPath)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}
	if !a.storage.Exists(fsPath) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Path not found: " + urlPath})
		return
	}

	entry := a.describe(fsPath)
	entry.Path = urlPath
	c.JSON(http.StatusOK, entry)
}

// Mkdir handles POST /api/admin/files/mkdir.
func (a *FileAPI) Mkdir(c *gin.Context) {
	var req MkdirRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if !strings.HasPrefix(req.Path, "/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Path must start with /"})
		return
	}
	if strings.Contains(req.Path, "..") {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid path"})
		return
	}

	fsPath, err := a.resolver.Resolve(req.Path)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}
	if a.storage.Exists(fsPath) {
		c.JSON(http.StatusConflict, gin.H{"error": "Path already exists: " + req.Path})
		return
	}
	if parent := filepath.Dir(fsPath); !a.storage.Exists(parent) {
		c.JSON(http.StatusConflict, gin.H{"error": "Parent directory does not exist"})
		return
	}

	if err := a.storage.CreateDirectory(fsPath); err != nil {
		logger.Error("failed to create directory %s: %v", req.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create directory"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"name": filepath.Base(fsPath),
		"path": req.Path,
		"type": "FOLDER",
	})
}

// Delete handles DELETE /api/admin/files. Non-empty directories are only
// removed with recursive=true; the root itself can never be deleted.
func (a *FileAPI) Delete(c *gin.Context) {
	urlPath := c.Query("path")
	recursive := c.Query("recursive") == "true"

	if urlPath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path parameter required"})
		return
	}
	if urlPath == "/" {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot delete root directory"})
		return
	}

	fsPath, err := a.resolver.Resolve(urlPath)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}
	if !a.storage.Exists(fsPath) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Path not found: " + urlPath})
		return
	}

	if a.storage.IsDirectory(fsPath) {
		if !a.storage.IsDirectoryEmpty(fsPath) && !recursive {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Directory is not empty. Use recursive=true to delete non-empty directories",
			})
			return
		}
		if recursive {
			err = a.deleteTree(fsPath)
		} else {
			err = a.storage.DeleteDirectory(fsPath)
		}
	} else {
		err = a.storage.DeleteFile(fsPath)
	}
	if err != nil {
		logger.Error("failed to delete %s: %v", urlPath, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete"})
		return
	}

	c.Status(http.StatusNoContent)
}

// deleteTree removes a subtree depth-first.
func (a *FileAPI) deleteTree(fsPath string) error {
	if a.storage.IsDirectory(fsPath) {
		for _, child := range a.storage.ListDirectory(fsPath) {
			if err := a.deleteTree(child); err != nil {
				return err
			}
		}
		return a.storage.DeleteDirectory(fsPath)
	}
	return a.storage.DeleteFile(fsPath)
}

// describe builds the browser projection of one filesystem entry.
func (a *FileAPI) describe(fsPath string) FileEntry {
	isDir := a.storage.IsDirectory(fsPath)
	meta := a.storage.GetMetadata(fsPath)

	var size int64
	lastModified := ""
	if meta != nil {
		size = meta.Size
		lastModified = meta.LastModified.UTC().Format(time.RFC3339)
	}

	urlPath, err := a.resolver.ToURLPath(fsPath)
	if err != nil {
		urlPath = ""
	}

	entry := FileEntry{
		Name:          filepath.Base(fsPath),
		Path:          urlPath,
		Type:          "FILE",
		Size:          size,
		SizeFormatted: formatSize(size),
		LastModified:  lastModified,
	}
	if isDir {
		entry.Type = "FOLDER"
		n := len(a.storage.ListDirectory(fsPath))
		entry.ChildCount = &n
	} else {
		mime := webdav.GuessContentType(entry.Name)
		entry.MimeType = &mime
	}
	return entry
}

func sortEntries(entries []FileEntry, sortBy, order string) {
	switch sortBy {
	case "size":
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Size < entries[j].Size
		})
	case "modified":
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].LastModified < entries[j].LastModified
		})
	default:
		sort.SliceStable(entries, func(i, j int) bool {
			if (entries[i].Type == "FOLDER") != (entries[j].Type == "FOLDER") {
				return entries[i].Type == "FOLDER"
			}
			return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
		})
	}
	if order == "desc" {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
}

// parentOf returns the parent URL path, or nil at the root.
func parentOf(urlPath string) *string {
	if urlPath == "" || urlPath == "/" {
		return nil
	}
	parent := "/"
	if i := strings.LastIndex(urlPath, "/"); i > 0 {
		parent = urlPath[:i]
	}
	return &parent
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
