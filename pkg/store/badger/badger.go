// Package badger provides BadgerDB-backed implementations of the store
// interfaces.
//
// Storage model: a single Badger database shared by the three stores, with
// namespaced key prefixes and JSON-encoded values:
//
//	user:<username>       -> store.User
//	rule:<id>             -> store.PermissionRule
//	share:id:<id>         -> store.ShareLink
//	share:token:<token>   -> share ID (secondary index)
//
// Point lookups are O(1) and per-user scans are prefix iterations. The
// embedded database gives persistence across restarts without an external
// service.
package badger

import (
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/davshare/davshare/internal/logger"
)

const (
	userPrefix       = "user:"
	rulePrefix       = "rule:"
	shareIDPrefix    = "share:id:"
	shareTokenPrefix = "share:token:"
)

// DB wraps a Badger database and hands out the store implementations.
type DB struct {
	db *badger.DB
}

// Config controls how the database is opened.
type Config struct {
	// Path is the directory holding the database files.
	Path string

	// GCInterval is how often the value-log garbage collector runs.
	// Zero disables the collector.
	GCInterval time.Duration
}

// Open opens (or creates) the database at cfg.Path.
func Open(cfg Config) (*DB, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil // Badger's own logger is too chatty for server logs.

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", cfg.Path, err)
	}

	d := &DB{db: db}
	if cfg.GCInterval > 0 {
		go d.runGC(cfg.GCInterval)
	}
	return d, nil
}

// Close flushes and closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Users returns the user store backed by this database.
func (d *DB) Users() *UserStore {
	return &UserStore{db: d.db}
}

// Rules returns the permission-rule store backed by this database.
func (d *DB) Rules() *RuleStore {
	return &RuleStore{db: d.db}
}

// Shares returns the share-link store backed by this database.
func (d *DB) Shares() *ShareStore {
	return &ShareStore{db: d.db}
}

// runGC periodically reclaims value-log space. RunValueLogGC returns
// ErrNoRewrite when there is nothing to collect, which is not a failure.
func (d *DB) runGC(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if d.db.IsClosed() {
			return
		}
		if err := d.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
			logger.Warn("badger value log GC failed: %v", err)
		}
	}
}
