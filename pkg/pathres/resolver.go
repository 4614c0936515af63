// Package pathres turns client-supplied URL paths into verified filesystem
// locations under a fixed root, and back again.
//
// Every handler that touches the filesystem goes through a Resolver. The
// security property it provides: the returned path always lies under the
// configured root, no matter what the client sends (literal `..`,
// percent-encoded `%2e%2e`, doubled slashes, backslashes). Decoding happens
// before the containment check, so encoded traversal sequences are caught by
// the same check as literal ones.
package pathres

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrAccessDenied indicates a path that escapes the server root.
// Handlers map it to 403, never to a generic 500.
var ErrAccessDenied = errors.New("access denied")

// Resolver maps URL paths to filesystem paths under a single root.
// The zero value is not usable; construct with New.
type Resolver struct {
	// root is the canonical absolute server root, without a trailing
	// separator (unless it is the filesystem root itself).
	root string
}

// New creates a Resolver for the given root directory. The root is
// canonicalized once at construction; all containment checks compare
// against this canonical form.
func New(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize root %q: %w", root, err)
	}
	return &Resolver{root: filepath.Clean(abs)}, nil
}

// Root returns the canonical absolute server root.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve converts a URL path (e.g. "/folder/file.txt") into an absolute
// filesystem path under the root.
//
// The input is percent-decoded as UTF-8 first; if decoding fails the raw
// string is used instead, so a stray '%' never fails the whole request.
// Returns ErrAccessDenied if the canonicalized result escapes the root.
func (r *Resolver) Resolve(urlPath string) (string, error) {
	decoded := decodeURL(urlPath)

	rel := strings.TrimPrefix(decoded, "/")
	resolved := filepath.Clean(filepath.Join(r.root, filepath.FromSlash(rel)))

	if !r.contains(resolved) {
		return "", fmt.Errorf("path traversal attempt detected: %s: %w", urlPath, ErrAccessDenied)
	}

	return resolved, nil
}

// ToURLPath converts a filesystem path confirmed to lie under the root back
// into a URL path with forward slashes. The root itself maps to "/".
//
// Returns ErrAccessDenied if the input lies outside the root. This is a
// defensive check: callers are expected to pass paths produced by Resolve
// or by listing a resolved directory, but a wrong path must not silently
// produce an href pointing outside the tree.
func (r *Resolver) ToURLPath(fsPath string) (string, error) {
	abs, err := filepath.Abs(fsPath)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize path %q: %w", fsPath, err)
	}
	abs = filepath.Clean(abs)

	if !r.contains(abs) {
		return "", fmt.Errorf("path is outside server root: %s: %w", fsPath, ErrAccessDenied)
	}

	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return "", fmt.Errorf("failed to relativize path %q: %w", fsPath, err)
	}
	if rel == "." {
		return "/", nil
	}
	return "/" + filepath.ToSlash(rel), nil
}

// contains reports whether the cleaned absolute path lies under the root.
func (r *Resolver) contains(cleaned string) bool {
	if cleaned == r.root {
		return true
	}
	return strings.HasPrefix(cleaned, r.root+string(filepath.Separator))
}

// decodeURL percent-decodes s, falling back to the raw string when the
// input is not valid percent-encoding.
func decodeURL(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}
