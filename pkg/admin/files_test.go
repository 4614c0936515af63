package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davshare/davshare/pkg/auth"
	"github.com/davshare/davshare/pkg/pathres"
	"github.com/davshare/davshare/pkg/storage"
	"github.com/davshare/davshare/pkg/store"
	"github.com/davshare/davshare/pkg/store/memory"
)

type fileAdminEnv struct {
	*adminEnv
	root string
}

func newFileAdminEnv(t *testing.T) *fileAdminEnv {
	t.Helper()

	users := memory.NewUserStore()
	require.NoError(t, users.Create(context.Background(), store.User{
		Username: "root", Password: "rootpw", Enabled: true, IsAdmin: true,
	}))

	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "inner.txt"), []byte("inner"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Zebra.txt"), []byte("zebra file"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "apple.txt"), []byte("a"), 0o644))

	resolver, err := pathres.New(root)
	require.NoError(t, err)
	api := NewFileAPI(resolver, storage.NewFSStorage())

	router := gin.New()
	g := router.Group("/api/admin", auth.BasicAuth(users), RequireAdmin(users))
	g.GET("/files", api.List)
	g.GET("/files/info", api.Info)
	g.POST("/files/mkdir", api.Mkdir)
	g.DELETE("/files", api.Delete)

	return &fileAdminEnv{
		adminEnv: &adminEnv{router: router, users: users, rules: memory.NewRuleStore()},
		root:     root,
	}
}

func TestAdminFileList(t *testing.T) {
	env := newFileAdminEnv(t)

	w := env.do(http.MethodGet, "/api/admin/files", "", "root", "rootpw")
	require.Equal(t, http.StatusOK, w.Code)

	var resp DirectoryListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "/", resp.Path)
	assert.Nil(t, resp.ParentPath)
	assert.Equal(t, 3, resp.TotalCount)
	assert.Equal(t, 1, resp.FolderCount)
	assert.Equal(t, 2, resp.FileCount)

	// Folders come first; files sort case-insensitively after them.
	require.Len(t, resp.Entries, 3)
	assert.Equal(t, "docs", resp.Entries[0].Name)
	assert.Equal(t, "FOLDER", resp.Entries[0].Type)
	require.NotNil(t, resp.Entries[0].ChildCount)
	assert.Equal(t, 1, *resp.Entries[0].ChildCount)
	assert.Equal(t, "apple.txt", resp.Entries[1].Name)
	assert.Equal(t, "Zebra.txt", resp.Entries[2].Name)
	require.NotNil(t, resp.Entries[1].MimeType)
	assert.Equal(t, "text/plain", *resp.Entries[1].MimeType)
}

func TestAdminFileListSubdirectory(t *testing.T) {
	env := newFileAdminEnv(t)

	w := env.do(http.MethodGet, "/api/admin/files?path=/docs", "", "root", "rootpw")
	require.Equal(t, http.StatusOK, w.Code)

	var resp DirectoryListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.ParentPath)
	assert.Equal(t, "/", *resp.ParentPath)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "/docs/inner.txt", resp.Entries[0].Path)
}

func TestAdminFileListSortBySize(t *testing.T) {
	env := newFileAdminEnv(t)

	w := env.do(http.MethodGet, "/api/admin/files?sort=size&order=desc", "", "root", "rootpw")
	require.Equal(t, http.StatusOK, w.Code)

	var resp DirectoryListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 3)
	assert.Equal(t, "Zebra.txt", resp.Entries[0].Name)
}

func TestAdminFileListErrors(t *testing.T) {
	env := newFileAdminEnv(t)

	w := env.do(http.MethodGet, "/api/admin/files?path=/missing", "", "root", "rootpw")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/admin/files?path=/apple.txt", "", "root", "rootpw")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/admin/files?path=/../outside", "", "root", "rootpw")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminFileInfo(t *testing.T) {
	env := newFileAdminEnv(t)

	w := env.do(http.MethodGet, "/api/admin/files/info?path=/apple.txt", "", "root", "rootpw")
	require.Equal(t, http.StatusOK, w.Code)

	var entry FileEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, "apple.txt", entry.Name)
	assert.Equal(t, "/apple.txt", entry.Path)
	assert.Equal(t, "FILE", entry.Type)
	assert.Equal(t, int64(1), entry.Size)
	assert.Equal(t, "1 B", entry.SizeFormatted)
	assert.NotEmpty(t, entry.LastModified)

	w = env.do(http.MethodGet, "/api/admin/files/info", "", "root", "rootpw")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/admin/files/info?path=/missing", "", "root", "rootpw")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminFileMkdir(t *testing.T) {
	env := newFileAdminEnv(t)

	w := env.do(http.MethodPost, "/api/admin/files/mkdir", `{"path":"/docs/sub"}`, "root", "rootpw")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.DirExists(t, filepath.Join(env.root, "docs", "sub"))

	// Already exists.
	w = env.do(http.MethodPost, "/api/admin/files/mkdir", `{"path":"/docs/sub"}`, "root", "rootpw")
	assert.Equal(t, http.StatusConflict, w.Code)

	// Parent missing.
	w = env.do(http.MethodPost, "/api/admin/files/mkdir", `{"path":"/nope/sub"}`, "root", "rootpw")
	assert.Equal(t, http.StatusConflict, w.Code)

	// Relative path.
	w = env.do(http.MethodPost, "/api/admin/files/mkdir", `{"path":"sub"}`, "root", "rootpw")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Traversal.
	w = env.do(http.MethodPost, "/api/admin/files/mkdir", `{"path":"/docs/../evil"}`, "root", "rootpw")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminFileDelete(t *testing.T) {
	env := newFileAdminEnv(t)

	w := env.do(http.MethodDelete, "/api/admin/files?path=/apple.txt", "", "root", "rootpw")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.NoFileExists(t, filepath.Join(env.root, "apple.txt"))

	// Non-empty directory without recursive.
	w = env.do(http.MethodDelete, "/api/admin/files?path=/docs", "", "root", "rootpw")
	assert.Equal(t, http.StatusConflict, w.Code)

	// With recursive the whole subtree goes.
	w = env.do(http.MethodDelete, "/api/admin/files?path=/docs&recursive=true", "", "root", "rootpw")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.NoDirExists(t, filepath.Join(env.root, "docs"))

	w = env.do(http.MethodDelete, "/api/admin/files?path=/docs", "", "root", "rootpw")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodDelete, "/api/admin/files?path=/", "", "root", "rootpw")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodDelete, "/api/admin/files", "", "root", "rootpw")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
