package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davshare/davshare/pkg/store"
)

func TestUserStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()

	require.NoError(t, s.Create(ctx, store.User{Username: "alice", Password: "pw", DisplayName: "Alice", Enabled: true}))
	assert.ErrorIs(t, s.Create(ctx, store.User{Username: "alice"}), store.ErrExists)

	user, err := s.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.DisplayName)
	assert.False(t, user.CreatedAt.IsZero())

	_, err = s.FindByUsername(ctx, "bob")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Update(ctx, store.User{Username: "alice", DisplayName: "Alice A.", IsAdmin: true, Enabled: true}))
	user, err = s.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", user.DisplayName)
	assert.True(t, user.IsAdmin)
	assert.Equal(t, "pw", user.Password, "Update does not touch the password")

	require.NoError(t, s.UpdatePassword(ctx, "alice", "newpw"))
	admin, err := s.IsAdmin(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, admin)

	require.NoError(t, s.Delete(ctx, "alice"))
	assert.ErrorIs(t, s.Delete(ctx, "alice"), store.ErrNotFound)
}

func TestUserStoreAuthenticate(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()

	require.NoError(t, s.Create(ctx, store.User{Username: "alice", Password: "secret", Enabled: true}))
	require.NoError(t, s.Create(ctx, store.User{Username: "mallory", Password: "pw", Enabled: false}))

	user, err := s.Authenticate(ctx, "alice", "secret")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotNil(t, user.LastLoginAt, "successful login records the time")

	user, err = s.Authenticate(ctx, "alice", "wrong")
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = s.Authenticate(ctx, "mallory", "pw")
	require.NoError(t, err)
	assert.Nil(t, user, "disabled users never authenticate")

	user, err = s.Authenticate(ctx, "nobody", "pw")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestRuleStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewRuleStore()

	created, err := s.Create(ctx, store.PermissionRule{Username: "alice", Path: "/docs", CanRead: true})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	_, err = s.Create(ctx, store.PermissionRule{Username: "alice", Path: "/", CanList: true})
	require.NoError(t, err)
	_, err = s.Create(ctx, store.PermissionRule{Username: "bob", Path: "/", CanRead: true})
	require.NoError(t, err)

	rules, err := s.RulesFor(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	updated := *created
	updated.CanWrite = true
	require.NoError(t, s.Update(ctx, updated))
	rules, err = s.RulesFor(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, rules[0].CanWrite)

	assert.ErrorIs(t, s.Update(ctx, store.PermissionRule{ID: "missing"}), store.ErrNotFound)

	removed, err := s.DeleteByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	rules, err = s.RulesFor(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestShareStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewShareStore()

	link := store.ShareLink{
		ID:           "id-1",
		Token:        "tok-1",
		ResourcePath: "/docs/file.txt",
		ResourceType: store.ResourceTypeFile,
		CreatedBy:    "alice",
		CreatedAt:    time.Now(),
		CanRead:      true,
	}
	require.NoError(t, s.Create(ctx, link))

	found, err := s.FindByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "id-1", found.ID)

	_, err = s.FindByToken(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.IncrementAccessCount(ctx, "tok-1"))
	require.NoError(t, s.IncrementAccessCount(ctx, "tok-1"))
	found, err = s.FindByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, 2, found.AccessCount)

	mine, err := s.FindByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	require.NoError(t, s.Delete(ctx, "id-1"))
	assert.ErrorIs(t, s.Delete(ctx, "id-1"), store.ErrNotFound)
}

func TestShareStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewShareStore()

	require.NoError(t, s.Create(ctx, store.ShareLink{ID: "a", Token: "t1", CreatedBy: "alice"}))
	require.NoError(t, s.Create(ctx, store.ShareLink{ID: "b", Token: "t2", CreatedBy: "bob"}))
	require.NoError(t, s.Create(ctx, store.ShareLink{ID: "c", Token: "t3", CreatedBy: "alice"}))

	links, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, links, 3)

	// Newest first, all owners included.
	assert.Equal(t, "c", links[0].ID)
	assert.Equal(t, "b", links[1].ID)
	assert.Equal(t, "a", links[2].ID)
}

func TestShareStoreDeleteExpired(t *testing.T) {
	ctx := context.Background()
	s := NewShareStore()

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	require.NoError(t, s.Create(ctx, store.ShareLink{ID: "expired", Token: "t1", ExpiresAt: &past}))
	require.NoError(t, s.Create(ctx, store.ShareLink{ID: "live", Token: "t2", ExpiresAt: &future}))
	require.NoError(t, s.Create(ctx, store.ShareLink{ID: "forever", Token: "t3"}))

	removed, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.FindByID(ctx, "expired")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Idempotent: a second sweep removes nothing.
	removed, err = s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, err = s.FindByID(ctx, "live")
	assert.NoError(t, err)
	_, err = s.FindByID(ctx, "forever")
	assert.NoError(t, err)
}
