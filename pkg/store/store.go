// Package store defines the persistence contracts for users, permission
// rules, and share links, plus the record types they exchange.
//
// The protocol core treats these as call-through lookups: no caching, no
// write-side locking. Two implementations exist, an in-memory one for tests
// and development (pkg/store/memory) and a BadgerDB-backed one for
// production (pkg/store/badger).
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrExists indicates a create collided with an existing record.
	ErrExists = errors.New("record already exists")
)

// User is an account that can authenticate against the server.
type User struct {
	Username    string
	Password    string
	DisplayName string
	Enabled     bool
	IsAdmin     bool
	CreatedAt   time.Time
	LastLoginAt *time.Time
}

// PermissionRule grants or denies capabilities on a path subtree to one
// user. Matching is by path prefix; the most specific matching rule wins
// and its Deny flag overrides every capability.
type PermissionRule struct {
	ID        string
	Username  string
	Path      string
	CanList   bool
	CanRead   bool
	CanWrite  bool
	CanDelete bool
	CanMkcol  bool
	Deny      bool
}

// ResourceType distinguishes file shares from folder shares.
type ResourceType string

const (
	ResourceTypeFile   ResourceType = "FILE"
	ResourceTypeFolder ResourceType = "FOLDER"
)

// ShareLink is an anonymous, token-addressed capability on one resource.
// AccessCount only ever increases; every other field is immutable after
// creation.
type ShareLink struct {
	ID             string
	Token          string
	ResourcePath   string
	ResourceType   ResourceType
	CreatedBy      string
	CreatedAt      time.Time
	ExpiresAt      *time.Time
	Password       *string
	MaxAccessCount *int
	AccessCount    int
	CanRead        bool
	CanWrite       bool
}

// UserStore persists user accounts.
type UserStore interface {
	// FindByUsername returns the user, or ErrNotFound.
	FindByUsername(ctx context.Context, username string) (*User, error)

	// List returns all users ordered by username.
	List(ctx context.Context) ([]User, error)

	// Create stores a new user. Fails with ErrExists on a duplicate
	// username.
	Create(ctx context.Context, user User) error

	// Update replaces the mutable profile fields (display name, admin
	// flag, enabled flag). Fails with ErrNotFound.
	Update(ctx context.Context, user User) error

	// UpdatePassword replaces the stored credential. Fails with
	// ErrNotFound.
	UpdatePassword(ctx context.Context, username, password string) error

	// Delete removes the user. Fails with ErrNotFound.
	Delete(ctx context.Context, username string) error

	// Authenticate validates credentials. Disabled users never
	// authenticate. Returns nil (no error) when the credentials do not
	// match; a successful authentication updates the last-login time.
	Authenticate(ctx context.Context, username, password string) (*User, error)

	// IsAdmin reports whether the user exists and has the admin flag.
	IsAdmin(ctx context.Context, username string) (bool, error)
}

// RuleStore persists permission rules.
type RuleStore interface {
	// RulesFor returns every rule owned by the user, in stable store
	// order. The authorization engine consumes this read-only.
	RulesFor(ctx context.Context, username string) ([]PermissionRule, error)

	// List returns all rules ordered by username then path.
	List(ctx context.Context) ([]PermissionRule, error)

	// Create stores a new rule under a fresh ID and returns it.
	Create(ctx context.Context, rule PermissionRule) (*PermissionRule, error)

	// Update replaces the capability and deny flags of an existing rule.
	// Fails with ErrNotFound.
	Update(ctx context.Context, rule PermissionRule) error

	// Delete removes a rule by ID. Fails with ErrNotFound.
	Delete(ctx context.Context, id string) error

	// DeleteByUsername removes every rule owned by the user and returns
	// how many were removed.
	DeleteByUsername(ctx context.Context, username string) (int, error)
}

// ShareStore persists share links.
type ShareStore interface {
	// Create stores a new share link.
	Create(ctx context.Context, link ShareLink) error

	// FindByToken returns the link, or ErrNotFound.
	FindByToken(ctx context.Context, token string) (*ShareLink, error)

	// FindByID returns the link, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*ShareLink, error)

	// FindByUser returns every link created by the user, newest first.
	FindByUser(ctx context.Context, username string) ([]ShareLink, error)

	// List returns every link regardless of owner, newest first. The
	// admin surface consumes this.
	List(ctx context.Context) ([]ShareLink, error)

	// IncrementAccessCount bumps the access counter by one. The bump is
	// unconditional: it is not fused with validation, so concurrent
	// accesses racing a near-exhausted limit can overshoot it.
	IncrementAccessCount(ctx context.Context, token string) error

	// Delete removes a link by ID. Fails with ErrNotFound.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes every link whose expiry is set and in the
	// past, returning how many were removed. Idempotent; links without
	// an expiry are never touched.
	DeleteExpired(ctx context.Context) (int, error)
}
