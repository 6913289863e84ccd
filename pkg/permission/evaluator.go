// Package permission answers role and permission membership questions over
// an auth state snapshot. Evaluation is pure: no I/O and no caching.
//
// An empty requirement list is always satisfied, for both the all and the
// any form, so an unrestricted guard never denies.
package permission

import (
	"slices"

	"github.com/sarathmodify/admin-dashboard/pkg/authstate"
)

// Well-known role names
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// Evaluator evaluates membership against one snapshot
type Evaluator struct {
	State authstate.State
}

// For returns an Evaluator over st
func For(st authstate.State) Evaluator {
	return Evaluator{State: st}
}

// HasRole reports whether the user's role is name
func (e Evaluator) HasRole(name string) bool {
	return e.State.Role != nil && e.State.Role.Name == name
}

// HasAnyRole reports whether the user's role is one of names
func (e Evaluator) HasAnyRole(names ...string) bool {
	if len(names) == 0 {
		return true
	}
	return slices.ContainsFunc(names, e.HasRole)
}

// HasAllRoles reports whether the user's single role matches every name.
// With one role per user this only holds when all names are that role.
func (e Evaluator) HasAllRoles(names ...string) bool {
	for _, name := range names {
		if !e.HasRole(name) {
			return false
		}
	}
	return true
}

func (e Evaluator) HasPermission(name string) bool {
	return slices.Contains(e.State.Permissions, name)
}

// HasAllPermissions reports whether every required permission is held
func (e Evaluator) HasAllPermissions(required ...string) bool {
	for _, name := range required {
		if !e.HasPermission(name) {
			return false
		}
	}
	return true
}

// HasAnyPermission reports whether at least one required permission is held
func (e Evaluator) HasAnyPermission(required ...string) bool {
	if len(required) == 0 {
		return true
	}
	return slices.ContainsFunc(required, e.HasPermission)
}

func (e Evaluator) IsAdmin() bool {
	return e.HasRole(RoleAdmin)
}

func (e Evaluator) IsManagerOrAdmin() bool {
	return e.HasAnyRole(RoleManager, RoleAdmin)
}
