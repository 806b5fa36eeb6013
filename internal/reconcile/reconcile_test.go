package reconcile_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idgate/scim-bridge/internal/directory"
	"github.com/idgate/scim-bridge/internal/fault"
	"github.com/idgate/scim-bridge/internal/reconcile"
	"github.com/idgate/scim-bridge/internal/testutil"
)

func setup(t *testing.T, usernames ...string) (*testutil.FakeDirectory, *reconcile.Reconciler, []string, string) {
	t.Helper()
	ctx := context.Background()
	dir := testutil.NewFakeDirectory()
	var ids []string
	for _, name := range usernames {
		id, err := dir.CreateUser(ctx, &directory.User{Username: name})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	gid, err := dir.CreateGroup(ctx, &directory.Group{Name: "team"})
	require.NoError(t, err)
	rec := reconcile.New(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return dir, rec, ids, gid
}

func TestReplaceGroupMembers_Converges(t *testing.T) {
	ctx := context.Background()
	dir, rec, ids, gid := setup(t, "a", "b", "c", "d")
	for _, id := range ids[:3] {
		require.NoError(t, dir.AddGroupMember(ctx, id, gid))
	}

	// {a,b,c} -> {b,c,d}
	dir.Calls = nil
	err := rec.ReplaceGroupMembers(ctx, gid, ids[:3], []string{ids[1], ids[2], ids[3]})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{ids[1], ids[2], ids[3]}, dir.MemberIDs(gid))
	assert.Len(t, dir.CallsMatching("RemoveGroupMember"), 1, "only the departing member is removed")
	assert.Len(t, dir.CallsMatching("AddGroupMember"), 1, "only the joining member is added")
}

func TestReplaceGroupMembers_EmptyDesiredClears(t *testing.T) {
	ctx := context.Background()
	dir, rec, ids, gid := setup(t, "a", "b")
	for _, id := range ids {
		require.NoError(t, dir.AddGroupMember(ctx, id, gid))
	}

	require.NoError(t, rec.ReplaceGroupMembers(ctx, gid, ids, nil))
	assert.Empty(t, dir.MemberIDs(gid))
}

func TestReplaceGroupMembers_MissingReferentAborts(t *testing.T) {
	ctx := context.Background()
	dir, rec, ids, gid := setup(t, "a")
	require.NoError(t, dir.AddGroupMember(ctx, ids[0], gid))

	// Desired set drops "a" and references a user that does not exist.
	// Removals have already been applied when the add fails; they stay
	// applied.
	dir.Calls = nil
	err := rec.ReplaceGroupMembers(ctx, gid, ids, []string{"ghost"})
	require.Error(t, err)
	assert.Equal(t, fault.KindInvalidValue, fault.KindOf(err))
	assert.Empty(t, dir.MemberIDs(gid), "removal before the failed add is not rolled back")
	assert.Empty(t, dir.CallsMatching("AddGroupMember"))
}

func TestReplaceGroupMembers_NoChangesNoCalls(t *testing.T) {
	ctx := context.Background()
	dir, rec, ids, gid := setup(t, "a", "b")
	for _, id := range ids {
		require.NoError(t, dir.AddGroupMember(ctx, id, gid))
	}

	dir.Calls = nil
	require.NoError(t, rec.ReplaceGroupMembers(ctx, gid, ids, ids))
	assert.Empty(t, dir.CallsMatching("RemoveGroupMember"))
	assert.Empty(t, dir.CallsMatching("AddGroupMember"))
}
