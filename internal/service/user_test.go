package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idgate/scim-bridge/internal/directory"
	"github.com/idgate/scim-bridge/internal/fault"
	"github.com/idgate/scim-bridge/internal/mapper"
	"github.com/idgate/scim-bridge/internal/patch"
	"github.com/idgate/scim-bridge/internal/reconcile"
	"github.com/idgate/scim-bridge/internal/scim"
	"github.com/idgate/scim-bridge/internal/service"
	"github.com/idgate/scim-bridge/internal/testutil"
)

func newUserService(dir *testutil.FakeDirectory, mode patch.Mode) *service.UserService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := reconcile.New(dir, logger)
	engine := patch.NewEngine(dir, rec, logger)
	m := mapper.NewUserMapper(dir, "https://bridge.example.com", logger)
	return service.NewUserService(dir, m, engine, mode, logger)
}

func boolPtr(b bool) *bool { return &b }

func TestUserCreate(t *testing.T) {
	ctx := context.Background()
	dir := testutil.NewFakeDirectory()
	svc := newUserService(dir, patch.ModeLenient)

	out, err := svc.Create(ctx, &scim.User{
		Schemas:  []string{scim.UserSchema},
		UserName: "jdoe",
		Emails:   []scim.MultiValued{{Value: "jane@example.com", Primary: true}},
		Password: "s3cret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "jdoe", out.UserName)
	require.NotNil(t, out.Active)
	assert.True(t, *out.Active, "active defaults to true when absent")
	assert.Empty(t, out.Password, "password is never returned")
	assert.Equal(t, "https://bridge.example.com/scim/v2/Users/"+out.ID, out.Meta.Location)

	stored, err := dir.GetUserByID(ctx, out.ID)
	require.NoError(t, err)
	require.Len(t, stored.Credentials, 1)
	assert.Equal(t, "password", stored.Credentials[0].Type)
	assert.Equal(t, "s3cret", stored.Credentials[0].Value)
}

func TestUserCreate_MissingUserName(t *testing.T) {
	svc := newUserService(testutil.NewFakeDirectory(), patch.ModeLenient)
	_, err := svc.Create(context.Background(), &scim.User{})
	require.Error(t, err)
	assert.Equal(t, fault.KindInvalidValue, fault.KindOf(err))
}

func TestUserCreate_UserNameConflictIssuesNoCreate(t *testing.T) {
	ctx := context.Background()
	dir := testutil.NewFakeDirectory()
	_, err := dir.CreateUser(ctx, &directory.User{Username: "jdoe"})
	require.NoError(t, err)
	svc := newUserService(dir, patch.ModeLenient)

	dir.Calls = nil
	_, err = svc.Create(ctx, &scim.User{UserName: "jdoe"})
	require.Error(t, err)
	assert.Equal(t, fault.KindUniqueness, fault.KindOf(err))
	assert.Empty(t, dir.CallsMatching("CreateUser"), "conflict is detected before any write")
}

func TestUserCreate_EmailConflict(t *testing.T) {
	ctx := context.Background()
	dir := testutil.NewFakeDirectory()
	_, err := dir.CreateUser(ctx, &directory.User{Username: "other", Email: "jane@example.com"})
	require.NoError(t, err)
	svc := newUserService(dir, patch.ModeLenient)

	_, err = svc.Create(ctx, &scim.User{
		UserName: "jdoe",
		Emails:   []scim.MultiValued{{Value: "jane@example.com"}},
	})
	require.Error(t, err)
	assert.Equal(t, fault.KindUniqueness, fault.KindOf(err))
}

func TestUserGet_NotFound(t *testing.T) {
	svc := newUserService(testutil.NewFakeDirectory(), patch.ModeLenient)
	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, fault.KindNoTarget, fault.KindOf(err))
}

func TestUserReplace_ClearsOmittedAttributes(t *testing.T) {
	ctx := context.Background()
	dir := testutil.NewFakeDirectory()
	svc := newUserService(dir, patch.ModeLenient)

	created, err := svc.Create(ctx, &scim.User{UserName: "jdoe", Title: "Engineer"})
	require.NoError(t, err)
	assert.Equal(t, "Engineer", created.Title)

	replaced, err := svc.Replace(ctx, created.ID, &scim.User{UserName: "jdoe"})
	require.NoError(t, err)
	assert.Empty(t, replaced.Title, "PUT clears attributes the body omits")
}

func TestUserReplace_NotFound(t *testing.T) {
	svc := newUserService(testutil.NewFakeDirectory(), patch.ModeLenient)
	_, err := svc.Replace(context.Background(), "missing", &scim.User{UserName: "jdoe"})
	require.Error(t, err)
	assert.Equal(t, fault.KindNoTarget, fault.KindOf(err))
}

func TestUserReplace_UserNameConflict(t *testing.T) {
	ctx := context.Background()
	dir := testutil.NewFakeDirectory()
	svc := newUserService(dir, patch.ModeLenient)

	_, err := svc.Create(ctx, &scim.User{UserName: "taken"})
	require.NoError(t, err)
	created, err := svc.Create(ctx, &scim.User{UserName: "jdoe"})
	require.NoError(t, err)

	_, err = svc.Replace(ctx, created.ID, &scim.User{UserName: "taken"})
	require.Error(t, err)
	assert.Equal(t, fault.KindUniqueness, fault.KindOf(err))
}

func TestUserPatch_DeactivatePersistsOnce(t *testing.T) {
	ctx := context.Background()
	dir := testutil.NewFakeDirectory()
	svc := newUserService(dir, patch.ModeLenient)

	created, err := svc.Create(ctx, &scim.User{UserName: "jdoe", Active: boolPtr(true)})
	require.NoError(t, err)

	req := scim.PatchRequest{Operations: []scim.PatchOp{{Op: "replace", Path: "active", Value: false}}}

	dir.Calls = nil
	patched, err := svc.Patch(ctx, created.ID, req)
	require.NoError(t, err)
	require.NotNil(t, patched.Active)
	assert.False(t, *patched.Active)
	assert.Len(t, dir.CallsMatching("UpdateUser"), 1)

	// Re-applying the same patch changes nothing and skips the write.
	dir.Calls = nil
	_, err = svc.Patch(ctx, created.ID, req)
	require.NoError(t, err)
	assert.Empty(t, dir.CallsMatching("UpdateUser"))
}

func TestUserPatch_GroupMembership(t *testing.T) {
	ctx := context.Background()
	dir := testutil.NewFakeDirectory()
	gid, err := dir.CreateGroup(ctx, &directory.Group{Name: "team"})
	require.NoError(t, err)
	svc := newUserService(dir, patch.ModeLenient)

	created, err := svc.Create(ctx, &scim.User{UserName: "jdoe"})
	require.NoError(t, err)

	// Adding via the user's groups attribute joins the group.
	out, err := svc.Patch(ctx, created.ID, scim.PatchRequest{Operations: []scim.PatchOp{
		{Op: "add", Path: "groups", Value: []any{map[string]any{"value": gid}}},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID}, dir.MemberIDs(gid))
	require.Len(t, out.Groups, 1)
	assert.Equal(t, gid, out.Groups[0].Value)

	out, err = svc.Patch(ctx, created.ID, scim.PatchRequest{Operations: []scim.PatchOp{
		{Op: "remove", Path: `groups[value eq "` + gid + `"]`},
	}})
	require.NoError(t, err)
	assert.Empty(t, dir.MemberIDs(gid))
	assert.Empty(t, out.Groups)
}

func TestUserPatch_AddMissingGroup(t *testing.T) {
	ctx := context.Background()
	dir := testutil.NewFakeDirectory()
	svc := newUserService(dir, patch.ModeLenient)

	created, err := svc.Create(ctx, &scim.User{UserName: "jdoe"})
	require.NoError(t, err)

	_, err = svc.Patch(ctx, created.ID, scim.PatchRequest{Operations: []scim.PatchOp{
		{Op: "add", Path: "groups", Value: []any{map[string]any{"value": "ghost"}}},
	}})
	require.Error(t, err)
	assert.Equal(t, fault.KindInvalidValue, fault.KindOf(err))
}

func TestUserPatch_UnknownPathLenientVsStrict(t *testing.T) {
	ctx := context.Background()
	dir := testutil.NewFakeDirectory()

	created, err := newUserService(dir, patch.ModeLenient).Create(ctx, &scim.User{UserName: "jdoe"})
	require.NoError(t, err)

	req := scim.PatchRequest{Operations: []scim.PatchOp{{Op: "replace", Path: "name.givenName", Value: "Jane"}}}

	_, err = newUserService(dir, patch.ModeLenient).Patch(ctx, created.ID, req)
	assert.NoError(t, err, "lenient mode skips unsupported operations")

	_, err = newUserService(dir, patch.ModeStrict).Patch(ctx, created.ID, req)
	require.Error(t, err)
	assert.Equal(t, "invalidPath", fault.As(err).ScimType())
}

func TestUserDelete_MissingIsNoTarget(t *testing.T) {
	svc := newUserService(testutil.NewFakeDirectory(), patch.ModeLenient)
	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, fault.KindNoTarget, fault.KindOf(err))
}

func TestUserList_Pagination(t *testing.T) {
	ctx := context.Background()
	dir := testutil.NewFakeDirectory()
	svc := newUserService(dir, patch.ModeLenient)

	for _, name := range []string{"alice", "bob", "carol"} {
		_, err := svc.Create(ctx, &scim.User{UserName: name})
		require.NoError(t, err)
	}

	resp, err := svc.List(ctx, 2, 1, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.TotalResults)
	assert.Equal(t, 2, resp.StartIndex)
	assert.Equal(t, 1, resp.ItemsPerPage)
	require.Len(t, resp.Resources, 1)
	assert.Equal(t, "bob", resp.Resources[0].(*scim.User).UserName)
}

func TestUserList_Filter(t *testing.T) {
	ctx := context.Background()
	dir := testutil.NewFakeDirectory()
	svc := newUserService(dir, patch.ModeLenient)

	_, err := svc.Create(ctx, &scim.User{UserName: "jdoe"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &scim.User{UserName: "asmith"})
	require.NoError(t, err)

	resp, err := svc.List(ctx, 1, 0, `userName eq "jdoe"`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.TotalResults)
	require.Len(t, resp.Resources, 1)
	assert.Equal(t, "jdoe", resp.Resources[0].(*scim.User).UserName)
}
