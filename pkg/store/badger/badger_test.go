package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davshare/davshare/pkg/store"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func TestUserStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	users := openTestDB(t).Users()

	require.NoError(t, users.Create(ctx, store.User{
		Username:    "alice",
		Password:    "pw",
		DisplayName: "Alice",
		Enabled:     true,
		IsAdmin:     true,
	}))
	assert.ErrorIs(t, users.Create(ctx, store.User{Username: "alice"}), store.ErrExists)

	user, err := users.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.DisplayName)

	admin, err := users.IsAdmin(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, admin)

	admin, err = users.IsAdmin(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, admin)

	authed, err := users.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)
	require.NotNil(t, authed)
	assert.NotNil(t, authed.LastLoginAt)

	authed, err = users.Authenticate(ctx, "alice", "wrong")
	require.NoError(t, err)
	assert.Nil(t, authed)

	require.NoError(t, users.Delete(ctx, "alice"))
	_, err = users.FindByUsername(ctx, "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserStoreList(t *testing.T) {
	ctx := context.Background()
	users := openTestDB(t).Users()

	for _, name := range []string{"carol", "alice", "bob"} {
		require.NoError(t, users.Create(ctx, store.User{Username: name, Enabled: true}))
	}

	list, err := users.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "alice", list[0].Username, "prefix iteration yields username order")
	assert.Equal(t, "bob", list[1].Username)
	assert.Equal(t, "carol", list[2].Username)
}

func TestRuleStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	rules := openTestDB(t).Rules()

	created, err := rules.Create(ctx, store.PermissionRule{Username: "alice", Path: "/docs", CanRead: true, CanWrite: true})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	_, err = rules.Create(ctx, store.PermissionRule{Username: "bob", Path: "/", CanRead: true})
	require.NoError(t, err)

	mine, err := rules.RulesFor(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].CanWrite)

	updated := *created
	updated.Deny = true
	updated.Username = "eve" // must be ignored: owner is immutable
	require.NoError(t, rules.Update(ctx, updated))

	mine, err = rules.RulesFor(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].Deny)

	removed, err := rules.DeleteByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.ErrorIs(t, rules.Delete(ctx, created.ID), store.ErrNotFound)
}

func TestShareStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	shares := openTestDB(t).Shares()

	expiry := time.Now().Add(time.Hour)
	require.NoError(t, shares.Create(ctx, store.ShareLink{
		ID:           "id-1",
		Token:        "token-1",
		ResourcePath: "/docs",
		ResourceType: store.ResourceTypeFolder,
		CreatedBy:    "alice",
		CreatedAt:    time.Now(),
		ExpiresAt:    &expiry,
		CanRead:      true,
	}))

	byToken, err := shares.FindByToken(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, "id-1", byToken.ID)
	require.NotNil(t, byToken.ExpiresAt)

	require.NoError(t, shares.IncrementAccessCount(ctx, "token-1"))
	byID, err := shares.FindByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, 1, byID.AccessCount)

	require.NoError(t, shares.Create(ctx, store.ShareLink{
		ID:        "id-2",
		Token:     "token-2",
		CreatedBy: "bob",
		CreatedAt: time.Now().Add(time.Minute),
	}))
	all, err := shares.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "id-2", all[0].ID, "newest first across owners")

	require.NoError(t, shares.Delete(ctx, "id-2"))
	require.NoError(t, shares.Delete(ctx, "id-1"))

	// Both the record and the token index are gone.
	_, err = shares.FindByID(ctx, "id-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = shares.FindByToken(ctx, "token-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestShareStoreDeleteExpired(t *testing.T) {
	ctx := context.Background()
	shares := openTestDB(t).Shares()

	past := time.Now().Add(-time.Minute)
	require.NoError(t, shares.Create(ctx, store.ShareLink{ID: "a", Token: "ta", ExpiresAt: &past}))
	require.NoError(t, shares.Create(ctx, store.ShareLink{ID: "b", Token: "tb"}))

	removed, err := shares.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = shares.FindByToken(ctx, "ta")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = shares.FindByToken(ctx, "tb")
	assert.NoError(t, err)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := Open(Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, db.Users().Create(ctx, store.User{Username: "alice", Enabled: true}))
	require.NoError(t, db.Close())

	db, err = Open(Config{Path: dir})
	require.NoError(t, err)
	defer db.Close()

	user, err := db.Users().FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, user.Enabled)
}
