package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/davshare/davshare/internal/logger"
)

// FSStorage implements Storage over the local filesystem.
//
// Thread safety: the underlying syscalls are atomic individually, and
// WriteFile uses rename for atomic replacement, so concurrent writers to
// the same path race at the rename step (last writer wins) without ever
// exposing a torn file to readers.
type FSStorage struct{}

// NewFSStorage returns a filesystem-backed Storage.
func NewFSStorage() *FSStorage {
	return &FSStorage{}
}

func (s *FSStorage) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func (s *FSStorage) IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (s *FSStorage) IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (s *FSStorage) GetMetadata(path string) *ResourceMetadata {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}

	size := info.Size()
	if info.IsDir() {
		size = 0
	}

	return &ResourceMetadata{
		Path:         path,
		IsDirectory:  info.IsDir(),
		Size:         size,
		LastModified: info.ModTime(),
		CreationTime: creationTime(info),
	}
}

func (s *FSStorage) ListDirectory(path string) []string {
	entries, err := os.ReadDir(path)
	if err != nil {
		// Unreadable or not a directory: degrade to zero children.
		return []string{}
	}

	children := make([]string, 0, len(entries))
	for _, entry := range entries {
		children = append(children, filepath.Join(path, entry.Name()))
	}
	return children
}

func (s *FSStorage) ReadFile(path string) ([]byte, error) {
	if !s.IsFile(path) {
		return nil, fmt.Errorf("read %s: %w", path, ErrNotFound)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return content, nil
}

func (s *FSStorage) WriteFile(path string, content []byte) error {
	parent := filepath.Dir(path)
	if !s.Exists(parent) {
		return fmt.Errorf("parent directory does not exist: %s: %w", parent, ErrNotFound)
	}

	// The temp file lives in the same parent directory so the final
	// rename never crosses a filesystem boundary.
	tmp, err := os.CreateTemp(parent, ".davshare-upload-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", parent, err)
	}
	tmpName := tmp.Name()

	if err := writeAndClose(tmp, content); err != nil {
		removeQuietly(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		removeQuietly(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}

func (s *FSStorage) DeleteFile(path string) error {
	if !s.IsFile(path) {
		return fmt.Errorf("delete %s: %w", path, ErrNotFound)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

func (s *FSStorage) DeleteDirectory(path string) error {
	if !s.IsDirectory(path) {
		return fmt.Errorf("delete %s: %w", path, ErrNotFound)
	}
	if !s.IsDirectoryEmpty(path) {
		return fmt.Errorf("delete %s: %w", path, ErrNotEmpty)
	}
	if err := os.Remove(path); err != nil {
		if isNotEmpty(err) {
			// Raced with a concurrent create inside the directory.
			return fmt.Errorf("delete %s: %w", path, ErrNotEmpty)
		}
		return fmt.Errorf("failed to delete directory %s: %w", path, err)
	}
	return nil
}

func (s *FSStorage) CreateDirectory(path string) error {
	parent := filepath.Dir(path)
	if !s.Exists(parent) {
		return fmt.Errorf("parent directory does not exist: %s: %w", parent, ErrNotFound)
	}
	if s.Exists(path) {
		return fmt.Errorf("create %s: %w", path, ErrExists)
	}
	if err := os.Mkdir(path, 0755); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("create %s: %w", path, ErrExists)
		}
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

func (s *FSStorage) IsDirectoryEmpty(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	_, err = f.ReadDir(1)
	return err == io.EOF
}

// writeAndClose writes content to f and closes it, reporting the first
// failure. A close error matters here: buffered data may not have reached
// the disk.
func writeAndClose(f *os.File, content []byte) error {
	if _, err := f.Write(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// removeQuietly deletes a temp file best-effort. Its own failure is logged
// and swallowed so it never masks the original write error.
func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to clean up temp file %s: %v", path, err)
	}
}

func isNotEmpty(err error) bool {
	return errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST)
}
