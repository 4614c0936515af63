package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davshare/davshare/pkg/auth"
	"github.com/davshare/davshare/pkg/store"
	"github.com/davshare/davshare/pkg/store/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type adminEnv struct {
	router *gin.Engine
	users  *memory.UserStore
	rules  *memory.RuleStore
}

func newAdminEnv(t *testing.T) *adminEnv {
	t.Helper()

	users := memory.NewUserStore()
	rules := memory.NewRuleStore()
	require.NoError(t, users.Create(context.Background(), store.User{
		Username: "root", Password: "rootpw", Enabled: true, IsAdmin: true,
	}))
	require.NoError(t, users.Create(context.Background(), store.User{
		Username: "alice", Password: "secret", Enabled: true,
	}))

	userAPI := NewUserAPI(users, rules)
	permAPI := NewPermissionAPI(users, rules)

	router := gin.New()
	g := router.Group("/api/admin", auth.BasicAuth(users), RequireAdmin(users))
	g.GET("/users", userAPI.List)
	g.POST("/users", userAPI.Create)
	g.GET("/users/:username", userAPI.Get)
	g.PUT("/users/:username", userAPI.Update)
	g.DELETE("/users/:username", userAPI.Delete)
	g.PUT("/users/:username/password", userAPI.UpdatePassword)
	g.GET("/permissions", permAPI.List)
	g.POST("/permissions", permAPI.Create)
	g.GET("/permissions/user/:username", permAPI.GetByUser)
	g.GET("/permissions/:id", permAPI.Get)
	g.PUT("/permissions/:id", permAPI.Update)
	g.DELETE("/permissions/:id", permAPI.Delete)

	return &adminEnv{router: router, users: users, rules: rules}
}

func (e *adminEnv) do(method, target, body, username, password string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if username != "" {
		req.SetBasicAuth(username, password)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestAdminGateRejectsNonAdmins(t *testing.T) {
	env := newAdminEnv(t)

	w := env.do(http.MethodGet, "/api/admin/users", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodGet, "/api/admin/users", "", "alice", "secret")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodGet, "/api/admin/users", "", "root", "rootpw")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateUser(t *testing.T) {
	env := newAdminEnv(t)

	w := env.do(http.MethodPost, "/api/admin/users",
		`{"username":"bob","password":"hunter2","displayName":"Bob"}`, "root", "rootpw")

	require.Equal(t, http.StatusCreated, w.Code)
	var resp UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bob", resp.Username)
	assert.Equal(t, "Bob", resp.DisplayName)
	assert.True(t, resp.Enabled)
	assert.False(t, resp.IsAdmin)
	assert.Equal(t, 0, resp.PermissionCount)

	// Passwords never leak into the response body.
	assert.NotContains(t, w.Body.String(), "hunter2")
}

func TestCreateUserValidation(t *testing.T) {
	env := newAdminEnv(t)

	// Too-short username.
	w := env.do(http.MethodPost, "/api/admin/users",
		`{"username":"ab","password":"hunter2"}`, "root", "rootpw")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Illegal characters.
	w = env.do(http.MethodPost, "/api/admin/users",
		`{"username":"bad user!","password":"hunter2"}`, "root", "rootpw")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Short password.
	w = env.do(http.MethodPost, "/api/admin/users",
		`{"username":"bob","password":"abc"}`, "root", "rootpw")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Duplicate.
	w = env.do(http.MethodPost, "/api/admin/users",
		`{"username":"alice","password":"hunter2"}`, "root", "rootpw")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateUser(t *testing.T) {
	env := newAdminEnv(t)

	w := env.do(http.MethodPut, "/api/admin/users/alice",
		`{"displayName":"Alice A.","enabled":false}`, "root", "rootpw")

	require.Equal(t, http.StatusOK, w.Code)
	var resp UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Alice A.", resp.DisplayName)
	assert.False(t, resp.Enabled)

	w = env.do(http.MethodPut, "/api/admin/users/ghost", `{"enabled":true}`, "root", "rootpw")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLastAdminProtection(t *testing.T) {
	env := newAdminEnv(t)

	w := env.do(http.MethodPut, "/api/admin/users/root", `{"isAdmin":false}`, "root", "rootpw")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodDelete, "/api/admin/users/root", "", "root", "rootpw")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// With a second admin around, demotion works.
	require.NoError(t, env.users.Create(context.Background(), store.User{
		Username: "root2", Password: "rootpw2", Enabled: true, IsAdmin: true,
	}))
	w = env.do(http.MethodPut, "/api/admin/users/root2", `{"isAdmin":false}`, "root", "rootpw")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeleteUserCascadesRules(t *testing.T) {
	env := newAdminEnv(t)

	_, err := env.rules.Create(context.Background(), store.PermissionRule{Username: "alice", Path: "/", CanRead: true})
	require.NoError(t, err)

	w := env.do(http.MethodDelete, "/api/admin/users/alice", "", "root", "rootpw")
	require.Equal(t, http.StatusNoContent, w.Code)

	rules, err := env.rules.RulesFor(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, rules)

	_, err = env.users.FindByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdatePassword(t *testing.T) {
	env := newAdminEnv(t)

	w := env.do(http.MethodPut, "/api/admin/users/alice/password",
		`{"newPassword":"abc"}`, "root", "rootpw")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPut, "/api/admin/users/alice/password",
		`{"newPassword":"newsecret"}`, "root", "rootpw")
	require.Equal(t, http.StatusNoContent, w.Code)

	user, err := env.users.Authenticate(context.Background(), "alice", "newsecret")
	require.NoError(t, err)
	assert.NotNil(t, user)
}

func TestPermissionCRUD(t *testing.T) {
	env := newAdminEnv(t)

	w := env.do(http.MethodPost, "/api/admin/permissions",
		`{"username":"alice","path":"/docs","canList":true,"canRead":true}`, "root", "rootpw")
	require.Equal(t, http.StatusCreated, w.Code)
	var created PermissionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.CanList)
	assert.False(t, created.CanWrite)

	// Duplicate user+path is a conflict.
	w = env.do(http.MethodPost, "/api/admin/permissions",
		`{"username":"alice","path":"/docs","canWrite":true}`, "root", "rootpw")
	assert.Equal(t, http.StatusConflict, w.Code)

	// Update flips flags but keeps subject and path.
	w = env.do(http.MethodPut, "/api/admin/permissions/"+created.ID,
		`{"canWrite":true,"canList":false}`, "root", "rootpw")
	require.Equal(t, http.StatusOK, w.Code)
	var updated PermissionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.True(t, updated.CanWrite)
	assert.False(t, updated.CanList)
	assert.Equal(t, "alice", updated.Username)
	assert.Equal(t, "/docs", updated.Path)

	// Listing, filtered and unfiltered.
	w = env.do(http.MethodGet, "/api/admin/permissions", "", "root", "rootpw")
	require.Equal(t, http.StatusOK, w.Code)
	var listed PermissionListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, 1, listed.Total)

	w = env.do(http.MethodGet, "/api/admin/permissions/user/alice", "", "root", "rootpw")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/admin/permissions/user/ghost", "", "root", "rootpw")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Delete.
	w = env.do(http.MethodDelete, "/api/admin/permissions/"+created.ID, "", "root", "rootpw")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, "/api/admin/permissions/"+created.ID, "", "root", "rootpw")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPermissionCreateValidation(t *testing.T) {
	env := newAdminEnv(t)

	// Unknown subject.
	w := env.do(http.MethodPost, "/api/admin/permissions",
		`{"username":"ghost","path":"/docs"}`, "root", "rootpw")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Relative path.
	w = env.do(http.MethodPost, "/api/admin/permissions",
		`{"username":"alice","path":"docs"}`, "root", "rootpw")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Traversal in the path.
	w = env.do(http.MethodPost, "/api/admin/permissions",
		`{"username":"alice","path":"/docs/../secret"}`, "root", "rootpw")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
