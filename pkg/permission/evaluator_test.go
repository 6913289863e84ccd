package permission

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sarathmodify/admin-dashboard/pkg/authstate"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	"github.com/stretchr/testify/assert"
)

func stateWith(role string, perms ...string) authstate.State {
	st := authstate.State{Phase: authstate.PhaseReady, Permissions: perms}
	if role != "" {
		st.Role = &backend.Role{ID: uuid.New(), Name: role}
	}
	if st.Permissions == nil {
		st.Permissions = []string{}
	}
	return st
}

func TestEvaluator_StaffScenario(t *testing.T) {
	e := For(stateWith(RoleStaff, "can_view_products"))

	assert.True(t, e.HasPermission("can_view_products"))
	assert.False(t, e.HasPermission("can_edit_products"))
	assert.True(t, e.HasAnyPermission("can_edit_products", "can_view_products"))
	assert.False(t, e.HasAllPermissions("can_edit_products", "can_view_products"))
	assert.True(t, e.HasRole(RoleStaff))
	assert.False(t, e.IsAdmin())
	assert.False(t, e.IsManagerOrAdmin())
}

func TestEvaluator_Roles(t *testing.T) {
	tests := []struct {
		name             string
		role             string
		isAdmin          bool
		isManagerOrAdmin bool
	}{
		{name: "admin", role: RoleAdmin, isAdmin: true, isManagerOrAdmin: true},
		{name: "manager", role: RoleManager, isManagerOrAdmin: true},
		{name: "staff", role: RoleStaff},
		{name: "no role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := For(stateWith(tt.role))
			assert.Equal(t, tt.isAdmin, e.IsAdmin())
			assert.Equal(t, tt.isManagerOrAdmin, e.IsManagerOrAdmin())
			assert.Equal(t, tt.role != "", e.HasAnyRole(RoleAdmin, RoleManager, RoleStaff))
		})
	}
}

func TestEvaluator_EmptyRequirementAllows(t *testing.T) {
	for _, e := range []Evaluator{For(stateWith("")), For(stateWith(RoleStaff, "can_view_products"))} {
		assert.True(t, e.HasAllPermissions())
		assert.True(t, e.HasAnyPermission())
		assert.True(t, e.HasAnyRole())
		assert.True(t, e.HasAllRoles())
	}
}

func TestEvaluator_NoRole(t *testing.T) {
	e := For(authstate.State{})
	assert.False(t, e.HasRole(""))
	assert.False(t, e.HasPermission("can_view_products"))
	assert.False(t, e.HasAnyPermission("can_view_products"))
}

func TestEvaluator_DuplicatesTolerated(t *testing.T) {
	e := For(stateWith(RoleStaff, "a", "a", "b"))
	assert.True(t, e.HasAllPermissions("a", "b"))
	assert.False(t, e.HasAllRoles(RoleStaff, RoleAdmin))
	assert.True(t, e.HasAllRoles(RoleStaff, RoleStaff))
}
