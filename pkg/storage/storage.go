// Package storage provides the filesystem operations behind the WebDAV
// handlers and the share-link service.
//
// All mutation goes through single-level primitives: atomic write-and-rename
// for files, non-recursive delete and mkdir for directories. These primitives
// are the only concurrency-safety boundary the core provides; readers never
// observe a partially written file because the rename either happened or it
// did not.
package storage

import (
	"errors"
	"fmt"
	"hash/fnv"
	"time"
)

var (
	// ErrNotFound indicates the target (or its parent, depending on the
	// operation) does not exist or is not of the expected kind.
	ErrNotFound = errors.New("no such file or directory")

	// ErrNotEmpty indicates a directory delete was attempted on a
	// non-empty directory. This layer never deletes recursively.
	ErrNotEmpty = errors.New("directory not empty")

	// ErrExists indicates a create was attempted on an existing target.
	ErrExists = errors.New("already exists")
)

// ResourceMetadata describes a single filesystem entry. It is derived from
// a stat call and never persisted.
type ResourceMetadata struct {
	// Path is the absolute filesystem path of the entry.
	Path string

	// IsDirectory reports whether the entry is a directory.
	IsDirectory bool

	// Size is the content length in bytes. Always 0 for directories.
	Size int64

	// LastModified is the modification timestamp.
	LastModified time.Time

	// CreationTime is the creation timestamp where the platform provides
	// one; falls back to the modification timestamp otherwise.
	CreationTime time.Time
}

// ETag returns an opaque validator for the entry, quoted per RFC 7232.
//
// The tag is a stable hash over (size, mtime in epoch millis): two stats of
// an unchanged file produce the same tag, and any content or timestamp
// change produces a different one with overwhelming probability.
func (m ResourceMetadata) ETag() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%d", m.Size, m.LastModified.UnixMilli())
	return fmt.Sprintf("%q", fmt.Sprintf("%x", h.Sum64()))
}

// Storage abstracts the filesystem operations needed by the protocol
// handlers. Implementations must keep the single-level mutation contract:
// no operation creates or removes more than one directory entry.
type Storage interface {
	// Exists reports whether a filesystem entry exists at path.
	Exists(path string) bool

	// IsDirectory reports whether path exists and is a directory.
	IsDirectory(path string) bool

	// IsFile reports whether path exists and is a regular file.
	IsFile(path string) bool

	// GetMetadata returns metadata for path, or nil if the entry is
	// absent or unreadable. It never returns an error for a missing
	// entry; a nil result is the "not there" signal.
	GetMetadata(path string) *ResourceMetadata

	// ListDirectory returns the absolute paths of the direct children of
	// path. Returns an empty slice if path is not a directory or cannot
	// be read; enumeration failures degrade to zero children rather than
	// failing the caller.
	ListDirectory(path string) []string

	// ReadFile returns the full content of a regular file.
	// Fails with ErrNotFound if path is not a regular file.
	ReadFile(path string) ([]byte, error)

	// WriteFile atomically replaces the content of path. The content is
	// written to a temporary file in the same parent directory and then
	// renamed over the target; on failure the temporary file is removed
	// best-effort and the target is left untouched.
	// Fails with ErrNotFound if the parent directory does not exist.
	WriteFile(path string, content []byte) error

	// DeleteFile removes a regular file.
	// Fails with ErrNotFound if path is not a regular file.
	DeleteFile(path string) error

	// DeleteDirectory removes an empty directory. Fails with ErrNotFound
	// if path is not a directory, ErrNotEmpty if it has entries.
	DeleteDirectory(path string) error

	// CreateDirectory creates a single directory. Fails with ErrNotFound
	// if the parent is missing, ErrExists if the target already exists.
	CreateDirectory(path string) error

	// IsDirectoryEmpty reports whether path is a directory with no
	// entries. Returns false for non-directories and unreadable
	// directories.
	IsDirectoryEmpty(path string) bool
}
