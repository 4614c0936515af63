// Package server assembles the HTTP surface: routing, middleware, the
// background share sweep, and the listener lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/davshare/davshare/internal/logger"
	"github.com/davshare/davshare/internal/ratelimiter"
	"github.com/davshare/davshare/pkg/admin"
	"github.com/davshare/davshare/pkg/auth"
	"github.com/davshare/davshare/pkg/authz"
	"github.com/davshare/davshare/pkg/config"
	"github.com/davshare/davshare/pkg/metrics"
	"github.com/davshare/davshare/pkg/pathres"
	"github.com/davshare/davshare/pkg/share"
	"github.com/davshare/davshare/pkg/storage"
	"github.com/davshare/davshare/pkg/store"
	"github.com/davshare/davshare/pkg/webdav"
)

// Stores bundles the persistence backends the server depends on.
type Stores struct {
	Users  store.UserStore
	Rules  store.RuleStore
	Shares store.ShareStore
}

// Server owns the HTTP listener and the background share sweep.
//
// Lifecycle: New() wires all handlers onto a router; Serve() starts
// listening and blocks until the context is cancelled, then drains
// in-flight requests within the configured shutdown timeout.
type Server struct {
	cfg     config.ServerConfig
	sweep   time.Duration
	router  *gin.Engine
	service *share.Service
}

// New builds a fully wired Server.
//
// Route map:
//   - GET  /                   liveness probe
//   - /s/:token[...]           anonymous share access
//   - /webdav[/*path]          basic-auth WebDAV method set
//   - /api/shares[...]         basic-auth share management
//   - /api/admin[...]          basic-auth + admin gate
//   - GET  /metrics            scrape endpoint, when metrics are enabled
func New(cfg *config.Config, stores Stores) (*Server, error) {
	resolver, err := pathres.New(cfg.Storage.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize path resolver: %w", err)
	}

	st := storage.NewFSStorage()
	engine := authz.NewEngine(stores.Rules)
	service := share.NewService(stores.Shares, engine, resolver, st)

	davHandler := webdav.NewHandler(resolver, st, engine)
	shareHandler := share.NewHandler(service, st, resolver, metrics.NewShareMetrics())
	shareAPI := share.NewAPI(service)
	userAPI := admin.NewUserAPI(stores.Users, stores.Rules)
	permAPI := admin.NewPermissionAPI(stores.Users, stores.Rules)
	shareAdminAPI := admin.NewShareAPI(service)
	fileAPI := admin.NewFileAPI(resolver, st)

	if !logger.IsDebug() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLog())
	router.Use(metrics.NewHTTPMetrics().Middleware())

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "davshare is running")
	})

	// Share tokens are guessable only by brute force; the limiter keeps
	// anonymous probing from turning into a dictionary attack.
	shareRoutes := router.Group("/s")
	if rl := cfg.Server.RateLimit; rl.RequestsPerSecond > 0 {
		limiter := ratelimiter.New(rl.RequestsPerSecond, rl.Burst)
		shareRoutes.Use(func(c *gin.Context) {
			if !limiter.Allow() {
				c.String(http.StatusTooManyRequests, "Too many requests")
				c.Abort()
				return
			}
			c.Next()
		})
	}
	shareRoutes.GET("/:token", shareHandler.Access)
	shareRoutes.GET("/:token/file", shareHandler.FileAccess)

	dav := router.Group("/webdav", auth.BasicAuth(stores.Users))
	for _, path := range []string{"", "/*path"} {
		dav.Handle(http.MethodOptions, path, davHandler.Options)
		dav.Handle("PROPFIND", path, davHandler.Propfind)
		dav.Handle(http.MethodGet, path, davHandler.Get)
		dav.Handle(http.MethodHead, path, davHandler.Head)
		dav.Handle(http.MethodPut, path, davHandler.Put)
		dav.Handle(http.MethodDelete, path, davHandler.Delete)
		dav.Handle("MKCOL", path, davHandler.Mkcol)
	}

	shares := router.Group("/api/shares", auth.BasicAuth(stores.Users))
	shares.POST("", shareAPI.Create)
	shares.GET("", shareAPI.List)
	shares.GET("/:id", shareAPI.Get)
	shares.DELETE("/:id", shareAPI.Delete)

	adm := router.Group("/api/admin", auth.BasicAuth(stores.Users), admin.RequireAdmin(stores.Users))
	adm.GET("/users", userAPI.List)
	adm.POST("/users", userAPI.Create)
	adm.GET("/users/:username", userAPI.Get)
	adm.PUT("/users/:username", userAPI.Update)
	adm.DELETE("/users/:username", userAPI.Delete)
	adm.PUT("/users/:username/password", userAPI.UpdatePassword)
	adm.GET("/permissions", permAPI.List)
	adm.POST("/permissions", permAPI.Create)
	adm.GET("/permissions/user/:username", permAPI.GetByUser)
	adm.GET("/permissions/:id", permAPI.Get)
	adm.PUT("/permissions/:id", permAPI.Update)
	adm.DELETE("/permissions/:id", permAPI.Delete)
	adm.GET("/shares", shareAdminAPI.List)
	adm.DELETE("/shares/expired", shareAdminAPI.DeleteExpired)
	adm.GET("/shares/:id", shareAdminAPI.Get)
	adm.DELETE("/shares/:id", shareAdminAPI.Delete)
	adm.GET("/files", fileAPI.List)
	adm.GET("/files/info", fileAPI.Info)
	adm.POST("/files/mkdir", fileAPI.Mkdir)
	adm.DELETE("/files", fileAPI.Delete)

	if h := metrics.Handler(); h != nil {
		router.GET("/metrics", h)
	}

	return &Server{
		cfg:     cfg.Server,
		sweep:   cfg.Shares.CleanupInterval,
		router:  router,
		service: service,
	}, nil
}

// requestLog emits one debug line per completed request.
func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Router exposes the assembled handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Serve starts the listener and blocks until ctx is cancelled or the
// listener fails. On cancellation, in-flight requests get the configured
// shutdown timeout to drain.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		s.runSweep(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
	case err := <-errChan:
		logger.Error("Listener failed: %v", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
		return err
	}

	<-sweepDone
	logger.Info("Server stopped gracefully")
	return ctx.Err()
}

// runSweep periodically deletes expired share links until ctx is
// cancelled. A zero interval disables the sweep.
func (s *Server) runSweep(ctx context.Context) {
	if s.sweep <= 0 {
		return
	}

	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.service.CleanupExpired(ctx)
			if err != nil {
				logger.Warn("Expired share sweep failed: %v", err)
				continue
			}
			if removed > 0 {
				logger.Info("Removed %d expired share link(s)", removed)
			}
		}
	}
}
