package admin

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// AssignRoleRequest is the body of PUT /users/{userID}/role
type AssignRoleRequest struct {
	RoleID uuid.UUID `json:"role_id"`
}

func (req *AssignRoleRequest) Bind(r *http.Request) error {
	if req.RoleID == uuid.Nil {
		return apperrors.Validation("role_id", "is required")
	}
	return nil
}

// RolePermissionsRequest is the body of PUT /roles/{roleID}/permissions
type RolePermissionsRequest struct {
	PermissionIDs []uuid.UUID `json:"permission_ids"`
}

func (req *RolePermissionsRequest) Bind(r *http.Request) error {
	if req.PermissionIDs == nil {
		return apperrors.Validation("permission_ids", "is required")
	}
	return nil
}

// ToggleRequest is the body of POST /matrix/toggle
type ToggleRequest struct {
	RoleID       uuid.UUID `json:"role_id"`
	PermissionID uuid.UUID `json:"permission_id"`
}

func (req *ToggleRequest) Bind(r *http.Request) error {
	if req.RoleID == uuid.Nil {
		return apperrors.Validation("role_id", "is required")
	}
	if req.PermissionID == uuid.Nil {
		return apperrors.Validation("permission_id", "is required")
	}
	return nil
}

type roleRequest struct {
	backend.CreateRoleParams
}

func (req *roleRequest) Bind(r *http.Request) error { return nil }

type permissionRequest struct {
	backend.CreatePermissionParams
}

func (req *permissionRequest) Bind(r *http.Request) error { return nil }

// UserListResponse is a page of the admin user list
type UserListResponse struct {
	Users []UserWithRole `json:"users"`
	Total int            `json:"total"`
}

// MatrixResponse is the role x permission grid
type MatrixResponse struct {
	Roles       []backend.Role            `json:"roles"`
	Permissions []backend.Permission      `json:"permissions"`
	Grants      map[uuid.UUID][]uuid.UUID `json:"grants"`
}

// Handle serves the admin API
type Handle struct {
	svc *Service

	mu     sync.Mutex
	matrix *Matrix
}

func NewHandle(svc *Service) *Handle {
	return &Handle{svc: svc}
}

// Routes mounts the admin endpoints on r. The caller guards r.
func (h *Handle) Routes(r chi.Router) {
	r.Get("/roles", h.ListRoles)
	r.Post("/roles", h.CreateRole)
	r.Put("/roles/{roleID}", h.UpdateRole)
	r.Delete("/roles/{roleID}", h.DeleteRole)
	r.Get("/roles/{roleID}/permissions", h.GetRolePermissions)
	r.Put("/roles/{roleID}/permissions", h.UpdateRolePermissions)

	r.Get("/permissions", h.ListPermissions)
	r.Post("/permissions", h.CreatePermission)
	r.Delete("/permissions/{permissionID}", h.DeletePermission)

	r.Get("/users", h.ListUsers)
	r.Put("/users/{userID}/role", h.AssignRole)
	r.Delete("/users/{userID}/role", h.RemoveUserRole)

	r.Get("/matrix", h.GetMatrix)
	r.Post("/matrix/toggle", h.Toggle)
}

func (h *Handle) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.svc.ListRoles(r.Context())
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, roles)
}

func (h *Handle) CreateRole(w http.ResponseWriter, r *http.Request) {
	req := &roleRequest{}
	if !bind(w, r, req) {
		return
	}
	role, err := h.svc.CreateRole(r.Context(), req.CreateRoleParams)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	h.invalidateMatrix()
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, role)
}

func (h *Handle) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "roleID")
	if !ok {
		return
	}
	req := &roleRequest{}
	if !bind(w, r, req) {
		return
	}
	role, err := h.svc.UpdateRole(r.Context(), backend.Role{
		ID:          id,
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
	})
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, role)
}

func (h *Handle) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.svc.DeleteRole(r.Context(), id); err != nil {
		apperrors.Render(w, r, err)
		return
	}
	h.invalidateMatrix()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handle) GetRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "roleID")
	if !ok {
		return
	}
	ids, err := h.svc.RolePermissions(r.Context(), id)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, RolePermissionsRequest{PermissionIDs: ids})
}

func (h *Handle) UpdateRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "roleID")
	if !ok {
		return
	}
	req := &RolePermissionsRequest{}
	if !bind(w, r, req) {
		return
	}
	if err := h.svc.UpdateRolePermissions(r.Context(), id, req.PermissionIDs); err != nil {
		apperrors.Render(w, r, err)
		return
	}
	h.invalidateMatrix()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handle) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.svc.ListPermissions(r.Context())
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, perms)
}

func (h *Handle) CreatePermission(w http.ResponseWriter, r *http.Request) {
	req := &permissionRequest{}
	if !bind(w, r, req) {
		return
	}
	perm, err := h.svc.CreatePermission(r.Context(), req.CreatePermissionParams)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	h.invalidateMatrix()
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, perm)
}

func (h *Handle) DeletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "permissionID")
	if !ok {
		return
	}
	if err := h.svc.DeletePermission(r.Context(), id); err != nil {
		apperrors.Render(w, r, err)
		return
	}
	h.invalidateMatrix()
	w.WriteHeader(http.StatusNoContent)
}

// ListUsers handles GET /users?q=&limit=&offset=
func (h *Handle) ListUsers(w http.ResponseWriter, r *http.Request) {
	filter := backend.ProfileFilter{
		Query:  r.URL.Query().Get("q"),
		Limit:  queryInt(r, "limit", defaultPageSize),
		Offset: queryInt(r, "offset", 0),
	}
	if filter.Limit <= 0 || filter.Limit > maxPageSize {
		filter.Limit = defaultPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	users, total, err := h.svc.ListUsers(r.Context(), filter)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, UserListResponse{Users: users, Total: total})
}

func (h *Handle) AssignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlID(w, r, "userID")
	if !ok {
		return
	}
	req := &AssignRoleRequest{}
	if !bind(w, r, req) {
		return
	}
	if err := h.svc.AssignRole(r.Context(), userID, req.RoleID); err != nil {
		apperrors.Render(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handle) RemoveUserRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.svc.RemoveUserRole(r.Context(), userID); err != nil {
		apperrors.Render(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMatrix reloads and returns the role x permission grid
func (h *Handle) GetMatrix(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roles, err := h.svc.ListRoles(ctx)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	perms, err := h.svc.ListPermissions(ctx)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	h.invalidateMatrix()
	m, err := h.currentMatrix(ctx)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, MatrixResponse{Roles: roles, Permissions: perms, Grants: m.Snapshot()})
}

// Toggle handles POST /matrix/toggle
func (h *Handle) Toggle(w http.ResponseWriter, r *http.Request) {
	req := &ToggleRequest{}
	if !bind(w, r, req) {
		return
	}
	m, err := h.currentMatrix(r.Context())
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	granted, err := m.Toggle(r.Context(), req.RoleID, req.PermissionID)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"granted": granted})
}

func (h *Handle) currentMatrix(ctx context.Context) (*Matrix, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.matrix != nil {
		return h.matrix, nil
	}
	m, err := h.svc.LoadMatrix(ctx)
	if err != nil {
		return nil, err
	}
	h.matrix = m
	return m, nil
}

func (h *Handle) invalidateMatrix() {
	h.mu.Lock()
	h.matrix = nil
	h.mu.Unlock()
}

func bind(w http.ResponseWriter, r *http.Request, v render.Binder) bool {
	if err := render.Bind(r, v); err != nil {
		if apperrors.KindOf(err) == apperrors.KindUnknown {
			err = apperrors.BadRequest(err)
		}
		apperrors.Render(w, r, err)
		return false
	}
	return true
}

func urlID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		apperrors.Render(w, r, apperrors.Validation(param, "must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
