package admin

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	"github.com/sarathmodify/admin-dashboard/pkg/backend/memory"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRefresher struct {
	mu    sync.Mutex
	users []uuid.UUID
	roles []uuid.UUID
}

func (m *mockRefresher) RefreshUser(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users, userID)
	return 1
}

func (m *mockRefresher) RefreshRole(roleID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles = append(m.roles, roleID)
	return 1
}

type mockRecorder struct {
	mu      sync.Mutex
	results map[string]int
}

func (m *mockRecorder) ObserveMutation(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.results == nil {
		m.results = make(map[string]int)
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.results[op+"/"+result]++
}

type fixture struct {
	repo    *memory.Repository
	svc     *Service
	refresh *mockRefresher
	rec     *mockRecorder
	roles   map[string]backend.Role
	perms   []backend.Permission
	userID  uuid.UUID
}

// newFixture creates roles admin, manager and staff, permissions p1..p4 and a user holding staff
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		repo:    memory.NewRepository(),
		refresh: &mockRefresher{},
		rec:     &mockRecorder{},
		roles:   map[string]backend.Role{},
		userID:  uuid.New(),
	}
	f.svc = NewService(f.repo, WithRefresher(f.refresh), WithRecorder(f.rec), WithConcurrency(2))

	for _, name := range []string{"admin", "manager", "staff"} {
		role, err := f.svc.CreateRole(ctx, backend.CreateRoleParams{Name: name})
		require.NoError(t, err)
		f.roles[name] = role
	}
	for _, name := range []string{"p1", "p2", "p3", "p4"} {
		perm, err := f.svc.CreatePermission(ctx, backend.CreatePermissionParams{Name: name, Category: "test"})
		require.NoError(t, err)
		f.perms = append(f.perms, perm)
	}

	_, err := f.repo.CreateProfile(ctx, backend.CreateProfileParams{ID: f.userID, FullName: "Jane Doe"})
	require.NoError(t, err)
	require.NoError(t, f.svc.AssignRole(ctx, f.userID, f.roles["staff"].ID))
	return f
}

func (f *fixture) permIDs(idx ...int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(idx))
	for _, i := range idx {
		ids = append(ids, f.perms[i].ID)
	}
	return ids
}

func TestAssignRole_Overwrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.svc.AssignRole(ctx, f.userID, f.roles["manager"].ID))

	role, err := f.repo.GetUserRole(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, "manager", role.Name)

	edges, err := f.repo.ListUserRoles(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.NotEqual(t, f.roles["staff"].ID, edges[0].RoleID)
	assert.Contains(t, f.refresh.users, f.userID)
}

func TestAssignRole_AtMostOneRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sequence := []string{"admin", "admin", "staff", "manager", "staff", "admin"}
	for _, name := range sequence {
		require.NoError(t, f.svc.AssignRole(ctx, f.userID, f.roles[name].ID))
		edges, err := f.repo.ListUserRoles(ctx, f.userID)
		require.NoError(t, err)
		assert.Len(t, edges, 1)
	}

	require.NoError(t, f.svc.RemoveUserRole(ctx, f.userID))
	edges, err := f.repo.ListUserRoles(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestAssignRole_FailureLeavesUserRoleless(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.repo.Faults.FailOnce(memory.OpInsertUserRole, apperrors.KindUnknown)

	err := f.svc.AssignRole(ctx, f.userID, f.roles["manager"].ID)
	assert.Equal(t, apperrors.KindMutationFailed, apperrors.KindOf(err))

	_, err = f.repo.GetUserRole(ctx, f.userID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.Equal(t, 1, f.rec.results[OpAssignRole+"/failure"])
}

func TestAssignRole_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name   string
		userID uuid.UUID
		roleID uuid.UUID
		kind   apperrors.Kind
	}{
		{name: "nil user", roleID: f.roles["admin"].ID, kind: apperrors.KindValidation},
		{name: "nil role", userID: f.userID, kind: apperrors.KindValidation},
		{name: "unknown role", userID: f.userID, roleID: uuid.New(), kind: apperrors.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.repo.Faults.Calls(memory.OpDeleteUserRoles)
			err := f.svc.AssignRole(ctx, tt.userID, tt.roleID)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
			assert.Equal(t, before, f.repo.Faults.Calls(memory.OpDeleteUserRoles), "no write on invalid input")
		})
	}
}

func TestUpdateRolePermissions_ReplacesSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	roleID := f.roles["staff"].ID

	require.NoError(t, f.svc.UpdateRolePermissions(ctx, roleID, f.permIDs(0, 2)))
	require.NoError(t, f.svc.UpdateRolePermissions(ctx, roleID, f.permIDs(1, 3, 3)))

	ids, err := f.svc.RolePermissions(ctx, roleID)
	require.NoError(t, err)
	assert.ElementsMatch(t, f.permIDs(1, 3), ids)
	assert.Contains(t, f.refresh.roles, roleID)

	require.NoError(t, f.svc.UpdateRolePermissions(ctx, roleID, []uuid.UUID{}))
	ids, err = f.svc.RolePermissions(ctx, roleID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestUpdateRolePermissions_Failure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.repo.Faults.FailOnce(memory.OpReplaceRolePermissions, apperrors.KindTimeout)

	err := f.svc.UpdateRolePermissions(ctx, f.roles["staff"].ID, f.permIDs(0))
	assert.Equal(t, apperrors.KindMutationFailed, apperrors.KindOf(err))
	assert.Empty(t, f.refresh.roles)
}

func TestCreateRole_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name   string
		params backend.CreateRoleParams
		field  string
	}{
		{name: "empty", params: backend.CreateRoleParams{Name: "  "}, field: "name"},
		{name: "spaces", params: backend.CreateRoleParams{Name: "super admin"}, field: "name"},
		{name: "uppercase", params: backend.CreateRoleParams{Name: "Admin"}, field: "name"},
		{name: "leading digit", params: backend.CreateRoleParams{Name: "1admin"}, field: "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateRole(ctx, tt.params)
			require.Error(t, err)
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
			var appErr *apperrors.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Details["field"])
		})
	}

	_, err := f.svc.CreatePermission(ctx, backend.CreatePermissionParams{Name: "can_view_orders"})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = f.svc.CreateRole(ctx, backend.CreateRoleParams{Name: "staff"})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err), "duplicate names are rejected by the backend")

	role, err := f.svc.CreateRole(ctx, backend.CreateRoleParams{Name: "auditor"})
	require.NoError(t, err)
	assert.Equal(t, "auditor", role.DisplayName)
}

func TestRolePermissionsMap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.svc.UpdateRolePermissions(ctx, f.roles["admin"].ID, f.permIDs(0, 1, 2, 3)))
	require.NoError(t, f.svc.UpdateRolePermissions(ctx, f.roles["staff"].ID, f.permIDs(0)))

	m, err := f.svc.RolePermissionsMap(ctx)
	require.NoError(t, err)
	assert.Len(t, m, 3)
	assert.Equal(t, f.permIDs(0, 1, 2, 3), m[f.roles["admin"].ID])
	assert.Equal(t, f.permIDs(0), m[f.roles["staff"].ID])
	assert.Empty(t, m[f.roles["manager"].ID])

	f.repo.Faults.FailOn(memory.OpListRolePermissions, apperrors.KindAccessDenied)
	_, err = f.svc.RolePermissionsMap(ctx)
	assert.Equal(t, apperrors.KindAccessDenied, apperrors.KindOf(err))
}

func TestListUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other := uuid.New()
	_, err := f.repo.CreateProfile(ctx, backend.CreateProfileParams{ID: other, FullName: "Bob"})
	require.NoError(t, err)

	users, total, err := f.svc.ListUsers(ctx, backend.ProfileFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, users, 2)
	assert.Equal(t, "Bob", users[0].FullName)
	assert.Nil(t, users[0].Role)
	require.NotNil(t, users[1].Role)
	assert.Equal(t, "staff", users[1].Role.Name)

	users, total, err = f.svc.ListUsers(ctx, backend.ProfileFilter{Query: "jane", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, f.userID, users[0].ID)
}

func TestMatrix_ToggleTwiceRestores(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	roleID := f.roles["manager"].ID
	require.NoError(t, f.svc.UpdateRolePermissions(ctx, roleID, f.permIDs(0, 2)))
	original, err := f.svc.RolePermissions(ctx, roleID)
	require.NoError(t, err)

	m, err := f.svc.LoadMatrix(ctx)
	require.NoError(t, err)

	for _, perm := range []int{1, 0} {
		permID := f.perms[perm].ID
		before := m.Has(roleID, permID)

		granted, err := m.Toggle(ctx, roleID, permID)
		require.NoError(t, err)
		assert.Equal(t, !before, granted)

		granted, err = m.Toggle(ctx, roleID, permID)
		require.NoError(t, err)
		assert.Equal(t, before, granted)

		persisted, err := f.svc.RolePermissions(ctx, roleID)
		require.NoError(t, err)
		assert.ElementsMatch(t, original, persisted)
	}
}

func TestMatrix_ToggleRevertsOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	roleID := f.roles["staff"].ID
	require.NoError(t, f.svc.UpdateRolePermissions(ctx, roleID, f.permIDs(0)))

	m, err := f.svc.LoadMatrix(ctx)
	require.NoError(t, err)
	f.repo.Faults.FailOnce(memory.OpReplaceRolePermissions, apperrors.KindUnknown)

	granted, err := m.Toggle(ctx, roleID, f.perms[1].ID)
	assert.Equal(t, apperrors.KindMutationFailed, apperrors.KindOf(err))
	assert.False(t, granted)
	assert.False(t, m.Has(roleID, f.perms[1].ID))
	assert.Equal(t, f.permIDs(0), m.Snapshot()[roleID])

	persisted, err := f.svc.RolePermissions(ctx, roleID)
	require.NoError(t, err)
	assert.Equal(t, f.permIDs(0), persisted)
	assert.Equal(t, 1, f.rec.results[OpTogglePermission+"/failure"])
}

func TestMatrix_ToggleUnknownRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m, err := f.svc.LoadMatrix(ctx)
	require.NoError(t, err)

	unknown := uuid.New()
	granted, err := m.Toggle(ctx, unknown, f.perms[0].ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.False(t, granted)
	assert.NotContains(t, m.Snapshot(), unknown)
	assert.Len(t, m.Snapshot(), len(f.roles))
	assert.Zero(t, f.rec.results[OpTogglePermission+"/failure"])
}

func TestMatrix_ToggleKeepsNotFoundFromBackend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	roleID := f.roles["staff"].ID
	m, err := f.svc.LoadMatrix(ctx)
	require.NoError(t, err)
	f.repo.Faults.FailOnce(memory.OpReplaceRolePermissions, apperrors.KindNotFound)

	_, err = m.Toggle(ctx, roleID, f.perms[1].ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.False(t, m.Has(roleID, f.perms[1].ID))
}

func TestMatrix_ConcurrentTogglesOnOneRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	roleID := f.roles["admin"].ID

	m, err := f.svc.LoadMatrix(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, p := range f.perms {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Toggle(ctx, roleID, p.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	persisted, err := f.svc.RolePermissions(ctx, roleID)
	require.NoError(t, err)
	assert.ElementsMatch(t, f.permIDs(0, 1, 2, 3), persisted)
}
