package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davshare/davshare/pkg/config"
	"github.com/davshare/davshare/pkg/store"
	"github.com/davshare/davshare/pkg/store/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.Root = t.TempDir()

	users := memory.NewUserStore()
	require.NoError(t, users.Create(context.Background(), store.User{
		Username: "alice", Password: "secret", Enabled: true,
	}))

	srv, err := New(cfg, Stores{
		Users:  users,
		Rules:  memory.NewRuleStore(),
		Shares: memory.NewShareStore(),
	})
	require.NoError(t, err)
	return srv
}

func TestLivenessProbe(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "davshare is running", w.Body.String())
}

func TestWebdavRoutesRequireAuth(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("PROPFIND", "/webdav", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodOptions, "/webdav", nil)
	req.SetBasicAuth("alice", "secret")
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("DAV"))
}

func TestShareRoutesArePublic(t *testing.T) {
	srv := newTestServer(t)

	// No credentials: the route answers, just with an unknown token.
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s/sometoken", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShareRoutesRateLimited(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.Root = t.TempDir()
	cfg.Server.RateLimit.RequestsPerSecond = 1
	cfg.Server.RateLimit.Burst = 2

	srv, err := New(cfg, Stores{
		Users:  memory.NewUserStore(),
		Rules:  memory.NewRuleStore(),
		Shares: memory.NewShareStore(),
	})
	require.NoError(t, err)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/s/sometoken", nil))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, http.StatusNotFound, codes[0])
	assert.Equal(t, http.StatusNotFound, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])

	// Other routes are not throttled.
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminRoutesGated(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.SetBasicAuth("alice", "secret")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMetricsRouteAbsentWhenDisabled(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
