// Package guard turns auth state into access decisions: route guards that
// redirect, block or deny requests, and visibility guards that decide
// whether a piece of UI is rendered.
//
// Every guard treats a loading state as blocked. Role and permission values
// cached in a loading state are never consulted.
package guard

import (
	"github.com/sarathmodify/admin-dashboard/pkg/authstate"
	"github.com/sarathmodify/admin-dashboard/pkg/permission"
)

// Decision is the outcome of a route guard
type Decision int

const (
	DecisionLoading Decision = iota
	DecisionUnauthenticated
	DecisionDenied
	DecisionAllowed
)

func (d Decision) String() string {
	switch d {
	case DecisionLoading:
		return "loading"
	case DecisionUnauthenticated:
		return "unauthenticated"
	case DecisionDenied:
		return "denied"
	case DecisionAllowed:
		return "allowed"
	}
	return "unknown"
}

// Mode selects how a list of requirements combines
type Mode int

const (
	ModeAll Mode = iota
	ModeAny
)

// Requirement is what a route demands beyond an active session.
// Roles is an allow-list; Permissions combine per Mode.
type Requirement struct {
	Roles       []string
	Permissions []string
	Mode        Mode
}

// Evaluate decides whether st satisfies req
func Evaluate(st authstate.State, req Requirement) Decision {
	if st.Loading {
		return DecisionLoading
	}
	if st.Session == nil {
		return DecisionUnauthenticated
	}

	e := permission.For(st)
	if !e.HasAnyRole(req.Roles...) {
		return DecisionDenied
	}
	if !permissionsSatisfied(e, req.Permissions, req.Mode) {
		return DecisionDenied
	}
	return DecisionAllowed
}

func permissionsSatisfied(e permission.Evaluator, perms []string, mode Mode) bool {
	switch mode {
	case ModeAny:
		return e.HasAnyPermission(perms...)
	default:
		return e.HasAllPermissions(perms...)
	}
}

// Visibility is the outcome of a visibility guard
type Visibility int

const (
	VisibilityBlocked Visibility = iota
	VisibilityRender
	VisibilityHidden
	VisibilityFallback
)

func (v Visibility) String() string {
	switch v {
	case VisibilityBlocked:
		return "blocked"
	case VisibilityRender:
		return "render"
	case VisibilityHidden:
		return "hidden"
	case VisibilityFallback:
		return "fallback"
	}
	return "unknown"
}

// Visibler decides whether guarded content is shown
type Visibler interface {
	Visible(st authstate.State) Visibility
}

// RoleGuard shows content to an allow-list of roles.
// RequireAll demands the single role match every listed name.
type RoleGuard struct {
	Roles       []string
	RequireAll  bool
	HasFallback bool
}

func (g RoleGuard) Visible(st authstate.State) Visibility {
	if st.Loading {
		return VisibilityBlocked
	}
	e := permission.For(st)
	ok := e.HasAnyRole(g.Roles...)
	if g.RequireAll {
		ok = e.HasAllRoles(g.Roles...)
	}
	return visibility(ok, g.HasFallback)
}

// PermissionGuard shows content to holders of the listed permissions
type PermissionGuard struct {
	Permissions []string
	RequireAll  bool
	HasFallback bool
}

func (g PermissionGuard) Visible(st authstate.State) Visibility {
	if st.Loading {
		return VisibilityBlocked
	}
	mode := ModeAny
	if g.RequireAll {
		mode = ModeAll
	}
	return visibility(permissionsSatisfied(permission.For(st), g.Permissions, mode), g.HasFallback)
}

func visibility(ok, hasFallback bool) Visibility {
	switch {
	case ok:
		return VisibilityRender
	case hasFallback:
		return VisibilityFallback
	default:
		return VisibilityHidden
	}
}

// Capabilities evaluates a named set of visibility guards
func Capabilities(st authstate.State, guards map[string]Visibler) map[string]string {
	caps := make(map[string]string, len(guards))
	for name, g := range guards {
		caps[name] = g.Visible(st).String()
	}
	return caps
}
