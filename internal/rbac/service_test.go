package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solution-studio/ai-studio/internal/platform/httpx"
	"github.com/solution-studio/ai-studio/internal/shared"
)

type fakeHooks struct {
	inUse   map[string]bool
	renames [][2]string
}

func (f *fakeHooks) RoleInUse(ctx context.Context, name string) (bool, error) {
	return f.inUse[name], nil
}

func (f *fakeHooks) RoleRenamed(ctx context.Context, oldName, newName string) error {
	f.renames = append(f.renames, [2]string{oldName, newName})
	return nil
}

func newSeeded(t *testing.T) (*Service, *fakeHooks) {
	t.Helper()
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, err := NewSeededService(context.Background(), func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})
	require.NoError(t, err)
	hooks := &fakeHooks{inUse: map[string]bool{}}
	svc.UseRoleHooks(hooks)
	return svc, hooks
}

func roleID(t *testing.T, svc *Service, name string) int64 {
	t.Helper()
	role, err := svc.GetRoleByName(context.Background(), name)
	require.NoError(t, err)
	return role.ID
}

func TestSeedGrantsEveryPermissionToSystemAdmin(t *testing.T) {
	svc, _ := newSeeded(t)
	ctx := context.Background()

	perms, err := svc.ListPermissions(ctx, shared.ListFilters{})
	require.NoError(t, err)
	row, err := svc.GetRolePermissions(ctx, roleID(t, svc, SystemAdminRole))
	require.NoError(t, err)
	assert.Len(t, row.Permissions, len(perms))
	assert.True(t, row.Has("proposals.create"))
}

func TestDeleteRoleRemovesExactlyOneRow(t *testing.T) {
	svc, _ := newSeeded(t)
	ctx := context.Background()

	before, err := svc.ListRoles(ctx, shared.ListFilters{})
	require.NoError(t, err)
	viewer := roleID(t, svc, "Viewer")

	require.NoError(t, svc.DeleteRole(ctx, viewer))

	after, err := svc.ListRoles(ctx, shared.ListFilters{})
	require.NoError(t, err)
	assert.Len(t, after, len(before)-1)
	for _, r := range after {
		assert.NotEqual(t, "Viewer", r.Name)
	}
	_, err = svc.GetRolePermissions(ctx, viewer)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRoleGuards(t *testing.T) {
	svc, hooks := newSeeded(t)
	ctx := context.Background()

	err := svc.DeleteRole(ctx, roleID(t, svc, SystemAdminRole))
	require.ErrorIs(t, err, ErrProtectedRole)
	assert.True(t, errors.Is(err, httpx.ErrForbidden))

	hooks.inUse["Account Manager"] = true
	err = svc.DeleteRole(ctx, roleID(t, svc, "Account Manager"))
	require.ErrorIs(t, err, ErrInUse)
	assert.Equal(t, 409, httpx.StatusOf(err))

	assert.ErrorIs(t, svc.DeleteRole(ctx, 999), ErrNotFound)
}

func TestCreateRoleValidation(t *testing.T) {
	svc, _ := newSeeded(t)
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, RoleRequest{Name: "   "})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateRole(ctx, RoleRequest{Name: "viewer"})
	assert.ErrorIs(t, err, ErrDuplicate)

	role, err := svc.CreateRole(ctx, RoleRequest{Name: "  Partner  ", Description: " External "})
	require.NoError(t, err)
	assert.Equal(t, "Partner", role.Name)
	assert.Equal(t, "External", role.Description)

	row, err := svc.GetRolePermissions(ctx, role.ID)
	require.NoError(t, err)
	assert.Empty(t, row.Permissions)
	assert.Equal(t, "Partner", row.RoleName)
}

func TestUpdateRolePropagatesRename(t *testing.T) {
	svc, hooks := newSeeded(t)
	ctx := context.Background()
	id := roleID(t, svc, "Viewer")

	role, err := svc.UpdateRole(ctx, id, RoleRequest{Name: "Read Only"})
	require.NoError(t, err)
	assert.Equal(t, "Read Only", role.Name)
	assert.Equal(t, [][2]string{{"Viewer", "Read Only"}}, hooks.renames)

	row, err := svc.GetRolePermissions(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Read Only", row.RoleName)

	_, err = svc.UpdateRole(ctx, roleID(t, svc, SystemAdminRole), RoleRequest{Name: "Root"})
	assert.ErrorIs(t, err, ErrProtectedRole)

	_, err = svc.UpdateRole(ctx, roleID(t, svc, SystemAdminRole), RoleRequest{Name: SystemAdminRole, Description: "everything"})
	assert.NoError(t, err)
}

func TestListRolesSearchAndSort(t *testing.T) {
	svc, _ := newSeeded(t)
	ctx := context.Background()

	roles, err := svc.ListRoles(ctx, shared.ListFilters{Search: "MANAGER"})
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "Account Manager", roles[0].Name)

	roles, err = svc.ListRoles(ctx, shared.ListFilters{SortBy: "name", SortDir: shared.SortDesc})
	require.NoError(t, err)
	assert.Equal(t, "Viewer", roles[0].Name)
	assert.Equal(t, "Account Manager", roles[len(roles)-1].Name)
}

func TestPermissionLifecycle(t *testing.T) {
	svc, _ := newSeeded(t)
	ctx := context.Background()
	admin := roleID(t, svc, SystemAdminRole)
	engineer := roleID(t, svc, "Sales Engineer")

	_, err := svc.CreatePermission(ctx, PermissionRequest{Name: "Not Dotted"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	perm, err := svc.CreatePermission(ctx, PermissionRequest{Name: "twin.export"})
	require.NoError(t, err)
	row, err := svc.GetRolePermissions(ctx, admin)
	require.NoError(t, err)
	assert.True(t, row.Has("twin.export"))

	_, err = svc.Grant(ctx, engineer, "twin.export")
	require.NoError(t, err)

	_, err = svc.UpdatePermission(ctx, perm.ID, PermissionRequest{Name: "twin.download"})
	require.NoError(t, err)
	row, err = svc.GetRolePermissions(ctx, engineer)
	require.NoError(t, err)
	assert.True(t, row.Has("twin.download"))
	assert.False(t, row.Has("twin.export"))

	require.NoError(t, svc.DeletePermission(ctx, perm.ID))
	for _, id := range []int64{admin, engineer} {
		row, err = svc.GetRolePermissions(ctx, id)
		require.NoError(t, err)
		assert.False(t, row.Has("twin.download"))
	}
}

func TestSetRolePermissionsDedupesAndSorts(t *testing.T) {
	svc, _ := newSeeded(t)
	ctx := context.Background()
	viewer := roleID(t, svc, "Viewer")
	before, err := svc.GetRolePermissions(ctx, viewer)
	require.NoError(t, err)

	row, err := svc.SetRolePermissions(ctx, viewer, []string{"proposals.create", "catalog.view", "proposals.create"})
	require.NoError(t, err)
	assert.Equal(t, []string{"catalog.view", "proposals.create"}, row.Permissions)
	assert.True(t, row.UpdatedAt.After(before.UpdatedAt))

	_, err = svc.SetRolePermissions(ctx, viewer, []string{"nope.missing"})
	assert.ErrorIs(t, err, ErrUnknownPermission)

	_, err = svc.SetRolePermissions(ctx, roleID(t, svc, SystemAdminRole), []string{"catalog.view"})
	assert.ErrorIs(t, err, ErrProtectedRole)
}

func TestGrantAndRevokeAreIdempotent(t *testing.T) {
	svc, _ := newSeeded(t)
	ctx := context.Background()
	viewer := roleID(t, svc, "Viewer")

	first, err := svc.Grant(ctx, viewer, "simulations.run")
	require.NoError(t, err)
	second, err := svc.Grant(ctx, viewer, "simulations.run")
	require.NoError(t, err)
	assert.Equal(t, first.Permissions, second.Permissions)

	row, err := svc.Revoke(ctx, viewer, "simulations.run")
	require.NoError(t, err)
	assert.False(t, row.Has("simulations.run"))
	row, err = svc.Revoke(ctx, viewer, "simulations.run")
	require.NoError(t, err)
	assert.False(t, row.Has("simulations.run"))

	_, err = svc.Revoke(ctx, roleID(t, svc, SystemAdminRole), "catalog.view")
	assert.ErrorIs(t, err, ErrProtectedRole)

	_, err = svc.Grant(ctx, viewer, "made.up")
	assert.ErrorIs(t, err, ErrUnknownPermission)
}
