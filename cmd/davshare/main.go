package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davshare/davshare/internal/logger"
	"github.com/davshare/davshare/pkg/config"
	"github.com/davshare/davshare/pkg/metrics"
	"github.com/davshare/davshare/pkg/server"
	"github.com/davshare/davshare/pkg/store"
	badgerstore "github.com/davshare/davshare/pkg/store/badger"
	"github.com/davshare/davshare/pkg/store/memory"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure logging: %v\n", err)
		os.Exit(1)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	stores, cleanup, err := buildStores(cfg)
	if err != nil {
		logger.Error("Failed to initialize stores: %v", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := seedAdmin(ctx, cfg, stores.Users); err != nil {
		logger.Error("Failed to seed admin account: %v", err)
		os.Exit(1)
	}

	srv, err := server.New(cfg, stores)
	if err != nil {
		logger.Error("Failed to initialize server: %v", err)
		os.Exit(1)
	}

	logger.Info("Serving %s over WebDAV", cfg.Storage.Root)
	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server failed: %v", err)
		os.Exit(1)
	}
}

// buildStores constructs the persistence backends selected by the
// configuration. The returned cleanup closes whatever was opened.
func buildStores(cfg *config.Config) (server.Stores, func(), error) {
	switch cfg.Store.Type {
	case "badger":
		db, err := badgerstore.Open(badgerstore.Config{
			Path:       cfg.Store.Badger.Path,
			GCInterval: cfg.Store.Badger.GCInterval,
		})
		if err != nil {
			return server.Stores{}, nil, fmt.Errorf("failed to open badger store at %s: %w", cfg.Store.Badger.Path, err)
		}
		logger.Info("Using badger store at %s", cfg.Store.Badger.Path)
		cleanup := func() {
			if err := db.Close(); err != nil {
				logger.Warn("Failed to close badger store: %v", err)
			}
		}
		return server.Stores{
			Users:  db.Users(),
			Rules:  db.Rules(),
			Shares: db.Shares(),
		}, cleanup, nil

	default:
		logger.Warn("Using in-memory store; users, rules and shares will not survive a restart")
		return server.Stores{
			Users:  memory.NewUserStore(),
			Rules:  memory.NewRuleStore(),
			Shares: memory.NewShareStore(),
		}, func() {}, nil
	}
}

// seedAdmin creates the configured administrator account on first start.
// An existing account with the same username is left untouched.
func seedAdmin(ctx context.Context, cfg *config.Config, users store.UserStore) error {
	if cfg.Admin.Username == "" {
		return nil
	}

	if _, err := users.FindByUsername(ctx, cfg.Admin.Username); err == nil {
		logger.Debug("Admin account %s already exists", cfg.Admin.Username)
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	displayName := cfg.Admin.DisplayName
	if displayName == "" {
		displayName = cfg.Admin.Username
	}

	if err := users.Create(ctx, store.User{
		Username:    cfg.Admin.Username,
		Password:    cfg.Admin.Password,
		DisplayName: displayName,
		Enabled:     true,
		IsAdmin:     true,
		CreatedAt:   time.Now(),
	}); err != nil {
		return err
	}

	logger.Info("Seeded admin account %s", cfg.Admin.Username)
	return nil
}
