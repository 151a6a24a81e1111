package acl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dietplan/dietplan/internal/core"
	"github.com/dietplan/dietplan/internal/identity"
	"github.com/dietplan/dietplan/internal/profiles"
	"github.com/dietplan/dietplan/internal/store"
)

func setup(t *testing.T, users identity.Static) (*store.DB, *profiles.Directory, *Checker) {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	dir := profiles.NewDirectory(db, users, nil)
	if len(users) > 0 {
		_, err = dir.SyncFromIdentityProvider(ctx, profiles.SyncOptions{})
		require.NoError(t, err)
	}
	return db, dir, NewChecker(db)
}

func ids(t *testing.T, dir *profiles.Directory, ext ...string) []int64 {
	t.Helper()
	var out []int64
	for _, e := range ext {
		id, ok, err := dir.Resolve(context.Background(), e)
		require.NoError(t, err)
		require.True(t, ok, e)
		out = append(out, id)
	}
	return out
}

func TestSelfAccessBypassesTable(t *testing.T) {
	ctx := context.Background()
	_, dir, c := setup(t, nil)
	pid, err := dir.EnsureProfile(ctx, "user-1", "Diego")
	require.NoError(t, err)

	ok, err := c.CanRead(ctx, pid, pid)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.CanWrite(ctx, pid, pid)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAfterSyncEveryPairIsReadOnly(t *testing.T) {
	ctx := context.Background()
	_, dir, c := setup(t, identity.Static{
		{ID: "a", DisplayName: "A", IsActive: true},
		{ID: "b", DisplayName: "B", IsActive: true},
		{ID: "c", DisplayName: "C", IsActive: true},
	})
	all := ids(t, dir, "a", "b", "c")

	for _, owner := range all {
		for _, subject := range all {
			r, err := c.CanRead(ctx, owner, subject)
			require.NoError(t, err)
			w, err := c.CanWrite(ctx, owner, subject)
			require.NoError(t, err)
			assert.True(t, r)
			assert.Equal(t, owner == subject, w)
		}
	}
}

func TestMissingRowDenies(t *testing.T) {
	ctx := context.Background()
	_, dir, c := setup(t, nil)
	a, _ := dir.EnsureProfile(ctx, "a", "")
	b, _ := dir.EnsureProfile(ctx, "b", "")

	r, err := c.CanRead(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, r)
	w, err := c.CanWrite(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, w)
}

func TestGrantIsDirectional(t *testing.T) {
	ctx := context.Background()
	_, dir, c := setup(t, nil)
	a, _ := dir.EnsureProfile(ctx, "a", "")
	b, _ := dir.EnsureProfile(ctx, "b", "")

	require.NoError(t, c.Grant(ctx, a, b, true, true))
	w, err := c.CanWrite(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, w)
	w, err = c.CanWrite(ctx, b, a)
	require.NoError(t, err)
	assert.False(t, w)

	require.NoError(t, c.Grant(ctx, a, b, true, false))
	w, err = c.CanWrite(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, w)

	require.ErrorIs(t, c.Grant(ctx, a, a, true, true), core.ErrInvalidInput)

	entries, err := c.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCapabilities(t *testing.T) {
	ctx := context.Background()
	_, dir, c := setup(t, nil)
	me, _ := dir.EnsureProfile(ctx, "me", "Me")
	other, _ := dir.EnsureProfile(ctx, "other", "Other")
	stranger, _ := dir.EnsureProfile(ctx, "stranger", "Stranger")
	require.NoError(t, c.Grant(ctx, other, me, true, false))

	caps, err := c.Capabilities(ctx, me)
	require.NoError(t, err)
	require.Len(t, caps, 3)

	byID := map[int64]core.Capability{}
	for _, cp := range caps {
		byID[cp.ProfileID] = cp
	}
	assert.Equal(t, core.Capability{ProfileID: me, DisplayName: "Me", CanRead: true, CanWrite: true}, byID[me])
	assert.True(t, byID[other].CanRead)
	assert.False(t, byID[other].CanWrite)
	assert.False(t, byID[stranger].CanRead)
}
