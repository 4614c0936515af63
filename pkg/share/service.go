// Package share implements anonymous share links: token issuance,
// multi-condition validation, access accounting, and the public and
// authenticated HTTP surfaces built on top.
package share

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davshare/davshare/pkg/authz"
	"github.com/davshare/davshare/pkg/pathres"
	"github.com/davshare/davshare/pkg/storage"
	"github.com/davshare/davshare/pkg/store"
)

// ErrPermissionDenied indicates the creator lacks read access to the path
// they are trying to share.
var ErrPermissionDenied = errors.New("permission denied")

// ErrResourceNotFound indicates the shared path does not exist on disk.
var ErrResourceNotFound = errors.New("resource not found")

const (
	tokenLength   = 32
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Reason classifies why a share link failed validation. Callers branch on
// the specific reason: a bad password maps to 401 at the HTTP layer, every
// other failure to 404.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNotFound
	ReasonExpired
	ReasonLimitReached
	ReasonBadPassword
)

// Message returns the human-readable description of the failure.
func (r Reason) Message() string {
	switch r {
	case ReasonNotFound:
		return "Share link not found"
	case ReasonExpired:
		return "Share link has expired"
	case ReasonLimitReached:
		return "Access limit reached"
	case ReasonBadPassword:
		return "Invalid password"
	default:
		return ""
	}
}

// Service owns the share-link lifecycle. It is stateless; every call takes
// its dependencies from the constructor-injected stores.
type Service struct {
	shares   store.ShareStore
	engine   *authz.Engine
	resolver *pathres.Resolver
	storage  storage.Storage
}

// NewService wires a Service from its collaborators.
func NewService(shares store.ShareStore, engine *authz.Engine, resolver *pathres.Resolver, st storage.Storage) *Service {
	return &Service{
		shares:   shares,
		engine:   engine,
		resolver: resolver,
		storage:  st,
	}
}

// GenerateToken returns a fresh 32-character token drawn uniformly from
// [A-Za-z0-9]. Rejection sampling keeps the distribution unbiased.
// Collisions are left to the store's uniqueness guarantee.
func GenerateToken() (string, error) {
	// 62 alphabet entries; accept bytes below the largest multiple of 62
	// so the modulo does not skew toward low indices.
	const limit = byte(248)

	token := make([]byte, 0, tokenLength)
	buf := make([]byte, tokenLength)
	for len(token) < tokenLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			token = append(token, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(token) == tokenLength {
				break
			}
		}
	}
	return string(token), nil
}

// CreateOptions carries the optional constraints for a new share link.
type CreateOptions struct {
	ExpiresInHours *int64
	Password       *string
	MaxAccessCount *int
	CanWrite       bool
}

// Create issues a share link for the given path on behalf of the creator.
//
// The path must resolve inside the server root, must exist, and the creator
// must hold read permission on it. The resource type is captured at creation
// time from what is on disk.
func (s *Service) Create(ctx context.Context, createdBy, urlPath string, opts CreateOptions) (*store.ShareLink, error) {
	fsPath, err := s.resolver.Resolve(urlPath)
	if err != nil {
		return nil, err
	}

	if !s.storage.Exists(fsPath) {
		return nil, fmt.Errorf("share path %s: %w", urlPath, ErrResourceNotFound)
	}

	allowed, err := s.engine.HasPermission(ctx, createdBy, urlPath, authz.OpRead)
	if err != nil {
		return nil, fmt.Errorf("failed to check share permission: %w", err)
	}
	if !allowed {
		return nil, fmt.Errorf("user %s cannot share %s: %w", createdBy, urlPath, ErrPermissionDenied)
	}

	resourceType := store.ResourceTypeFile
	if s.storage.IsDirectory(fsPath) {
		resourceType = store.ResourceTypeFolder
	}

	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if opts.ExpiresInHours != nil {
		t := time.Now().Add(time.Duration(*opts.ExpiresInHours) * time.Hour)
		expiresAt = &t
	}

	link := store.ShareLink{
		ID:             uuid.NewString(),
		Token:          token,
		ResourcePath:   urlPath,
		ResourceType:   resourceType,
		CreatedBy:      createdBy,
		CreatedAt:      time.Now(),
		ExpiresAt:      expiresAt,
		Password:       opts.Password,
		MaxAccessCount: opts.MaxAccessCount,
		CanRead:        true,
		CanWrite:       opts.CanWrite,
	}

	if err := s.shares.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to persist share link: %w", err)
	}
	return &link, nil
}

// Validate checks a token against the link's constraints in a fixed order:
// existence, expiry, access-count limit, password. The first failing check
// is terminal so later conditions never leak information past earlier ones.
//
// A non-nil error reports a store failure only; validation outcomes are
// carried by the Reason.
func (s *Service) Validate(ctx context.Context, token, password string) (*store.ShareLink, Reason, error) {
	link, err := s.shares.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ReasonNotFound, nil
		}
		return nil, ReasonNone, fmt.Errorf("failed to look up share token: %w", err)
	}

	if link.ExpiresAt != nil && time.Now().After(*link.ExpiresAt) {
		return nil, ReasonExpired, nil
	}

	if link.MaxAccessCount != nil && link.AccessCount >= *link.MaxAccessCount {
		return nil, ReasonLimitReached, nil
	}

	if link.Password != nil && password != *link.Password {
		return nil, ReasonBadPassword, nil
	}

	return link, ReasonNone, nil
}

// RecordAccess increments the link's access counter. It runs after a
// successful validation as a separate step, so two concurrent accesses
// racing a near-exhausted limit can both pass and both count; the limit is
// advisory under contention, not a hard ceiling.
func (s *Service) RecordAccess(ctx context.Context, token string) error {
	return s.shares.IncrementAccessCount(ctx, token)
}

// GetByID returns the link, or nil when absent.
func (s *Service) GetByID(ctx context.Context, id string) (*store.ShareLink, error) {
	link, err := s.shares.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return link, nil
}

// ListByUser returns all links created by the given user, newest first.
func (s *Service) ListByUser(ctx context.Context, username string) ([]store.ShareLink, error) {
	return s.shares.FindByUser(ctx, username)
}

// ListAll returns every link regardless of owner, newest first. Admin use
// only; the user-facing API goes through ListByUser.
func (s *Service) ListAll(ctx context.Context) ([]store.ShareLink, error) {
	return s.shares.List(ctx)
}

// Delete removes a link by ID.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.shares.Delete(ctx, id)
}

// CleanupExpired sweeps links whose expiry has passed. Idempotent; links
// without an expiry are never touched.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	return s.shares.DeleteExpired(ctx)
}
