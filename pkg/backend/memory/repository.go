package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
)

var _ backend.Relational = (*Repository)(nil)

// Repository implements backend.Relational using in-memory storage
type Repository struct {
	mu              sync.RWMutex
	profiles        map[uuid.UUID]backend.Profile
	roles           map[uuid.UUID]backend.Role
	permissions     map[uuid.UUID]backend.Permission
	userRoles       []backend.UserRole
	rolePermissions map[uuid.UUID][]uuid.UUID // roleID -> permission IDs, insertion order
	joinsDisabled   bool

	// Faults injects failures and latency per operation
	Faults Faults
}

// NewRepository creates a new in-memory repository
func NewRepository() *Repository {
	return &Repository{
		profiles:        make(map[uuid.UUID]backend.Profile),
		roles:           make(map[uuid.UUID]backend.Role),
		permissions:     make(map[uuid.UUID]backend.Permission),
		rolePermissions: make(map[uuid.UUID][]uuid.UUID),
	}
}

// DisableJoins makes FetchUserAccess behave like a schema without the
// foreign-key relationships the joined query depends on
func (r *Repository) DisableJoins() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joinsDisabled = true
}

// GetProfile retrieves a profile by user ID
func (r *Repository) GetProfile(ctx context.Context, id uuid.UUID) (backend.Profile, error) {
	if err := r.Faults.apply(ctx, OpGetProfile); err != nil {
		return backend.Profile{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return backend.Profile{}, apperrors.NotFound("profile", id.String())
	}
	return p, nil
}

// CreateProfile provisions a profile row
func (r *Repository) CreateProfile(ctx context.Context, params backend.CreateProfileParams) (backend.Profile, error) {
	if err := r.Faults.apply(ctx, OpCreateProfile); err != nil {
		return backend.Profile{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[params.ID]; exists {
		return backend.Profile{}, apperrors.Newf(apperrors.KindValidation, "profile already exists: %s", params.ID)
	}
	now := time.Now().UTC()
	p := backend.Profile{
		ID:        params.ID,
		FullName:  params.FullName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.profiles[p.ID] = p
	return p, nil
}

// UpdateProfile applies the non-nil fields of params
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, params backend.UpdateProfileParams) (backend.Profile, error) {
	if err := r.Faults.apply(ctx, OpUpdateProfile); err != nil {
		return backend.Profile{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[id]
	if !ok {
		return backend.Profile{}, apperrors.NotFound("profile", id.String())
	}
	if params.FullName != nil {
		p.FullName = *params.FullName
	}
	if params.Phone != nil {
		p.Phone = params.Phone
	}
	if params.AvatarURL != nil {
		p.AvatarURL = params.AvatarURL
	}
	p.UpdatedAt = time.Now().UTC()
	r.profiles[id] = p
	return p, nil
}

// SearchProfiles returns a page of profiles whose name or phone contains the
// query (case-insensitive), ordered by full name, and the total match count
func (r *Repository) SearchProfiles(ctx context.Context, filter backend.ProfileFilter) ([]backend.Profile, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(filter.Query)
	var matched []backend.Profile
	for _, p := range r.profiles {
		phone := ""
		if p.Phone != nil {
			phone = *p.Phone
		}
		if q == "" || strings.Contains(strings.ToLower(p.FullName), q) || strings.Contains(strings.ToLower(phone), q) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].FullName == matched[j].FullName {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].FullName < matched[j].FullName
	})

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return matched[start:end], total, nil
}

// ListRoles returns all roles ordered by name
func (r *Repository) ListRoles(ctx context.Context) ([]backend.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := make([]backend.Role, 0, len(r.roles))
	for _, role := range r.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

// GetRole retrieves a role by ID
func (r *Repository) GetRole(ctx context.Context, id uuid.UUID) (backend.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.roles[id]
	if !ok {
		return backend.Role{}, apperrors.NotFound("role", id.String())
	}
	return role, nil
}

// GetRoleByName retrieves a role by its machine name
func (r *Repository) GetRoleByName(ctx context.Context, name string) (backend.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, role := range r.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return backend.Role{}, apperrors.NotFound("role", name)
}

// CreateRole creates a new role with a unique name
func (r *Repository) CreateRole(ctx context.Context, params backend.CreateRoleParams) (backend.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.roles {
		if existing.Name == params.Name {
			return backend.Role{}, apperrors.Newf(apperrors.KindValidation, "role already exists: %s", params.Name)
		}
	}
	role := backend.Role{
		ID:          uuid.New(),
		Name:        params.Name,
		DisplayName: params.DisplayName,
		Description: params.Description,
	}
	r.roles[role.ID] = role
	return role, nil
}

// UpdateRole replaces the mutable fields of an existing role
func (r *Repository) UpdateRole(ctx context.Context, role backend.Role) (backend.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roles[role.ID]; !ok {
		return backend.Role{}, apperrors.NotFound("role", role.ID.String())
	}
	for id, existing := range r.roles {
		if id != role.ID && existing.Name == role.Name {
			return backend.Role{}, apperrors.Newf(apperrors.KindValidation, "role already exists: %s", role.Name)
		}
	}
	r.roles[role.ID] = role
	return role, nil
}

// DeleteRole deletes a role together with its assignment edges
func (r *Repository) DeleteRole(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.roles, id)
	delete(r.rolePermissions, id)
	kept := r.userRoles[:0]
	for _, edge := range r.userRoles {
		if edge.RoleID != id {
			kept = append(kept, edge)
		}
	}
	r.userRoles = kept
	return nil
}

// GetUserRole returns the single role assigned to userID
func (r *Repository) GetUserRole(ctx context.Context, userID uuid.UUID) (backend.Role, error) {
	if err := r.Faults.apply(ctx, OpGetUserRole); err != nil {
		return backend.Role{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []backend.Role
	for _, edge := range r.userRoles {
		if edge.UserID != userID {
			continue
		}
		if role, ok := r.roles[edge.RoleID]; ok {
			found = append(found, role)
		}
	}
	switch len(found) {
	case 0:
		return backend.Role{}, apperrors.NotFound("user role", userID.String())
	case 1:
		return found[0], nil
	default:
		return backend.Role{}, apperrors.Newf(apperrors.KindMultipleRows, "user %s has %d roles", userID, len(found))
	}
}

// ListUserRoles returns every assignment edge of userID
func (r *Repository) ListUserRoles(ctx context.Context, userID uuid.UUID) ([]backend.UserRole, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var edges []backend.UserRole
	for _, edge := range r.userRoles {
		if edge.UserID == userID {
			edges = append(edges, edge)
		}
	}
	return edges, nil
}

// DeleteUserRoles removes every assignment edge of userID
func (r *Repository) DeleteUserRoles(ctx context.Context, userID uuid.UUID) error {
	if err := r.Faults.apply(ctx, OpDeleteUserRoles); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.userRoles[:0]
	for _, edge := range r.userRoles {
		if edge.UserID != userID {
			kept = append(kept, edge)
		}
	}
	r.userRoles = kept
	return nil
}

// InsertUserRole adds an assignment edge. An identical edge is rejected.
func (r *Repository) InsertUserRole(ctx context.Context, edge backend.UserRole) error {
	if err := r.Faults.apply(ctx, OpInsertUserRole); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roles[edge.RoleID]; !ok {
		return apperrors.Newf(apperrors.KindValidation, "role does not exist: %s", edge.RoleID)
	}
	for _, existing := range r.userRoles {
		if existing == edge {
			return apperrors.Newf(apperrors.KindValidation, "user %s already has role %s", edge.UserID, edge.RoleID)
		}
	}
	r.userRoles = append(r.userRoles, edge)
	return nil
}

// ListPermissions returns all permissions ordered by category then name
func (r *Repository) ListPermissions(ctx context.Context) ([]backend.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	perms := make([]backend.Permission, 0, len(r.permissions))
	for _, p := range r.permissions {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].Category == perms[j].Category {
			return perms[i].Name < perms[j].Name
		}
		return perms[i].Category < perms[j].Category
	})
	return perms, nil
}

// CreatePermission creates a new permission with a unique name
func (r *Repository) CreatePermission(ctx context.Context, params backend.CreatePermissionParams) (backend.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.permissions {
		if existing.Name == params.Name {
			return backend.Permission{}, apperrors.Newf(apperrors.KindValidation, "permission already exists: %s", params.Name)
		}
	}
	p := backend.Permission{
		ID:          uuid.New(),
		Name:        params.Name,
		Category:    params.Category,
		Description: params.Description,
	}
	r.permissions[p.ID] = p
	return p, nil
}

// DeletePermission deletes a permission. Grants referencing it are left in
// place and surface as grants without a name.
func (r *Repository) DeletePermission(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.permissions, id)
	return nil
}

// ListRolePermissions returns the grants of roleID in insertion order
func (r *Repository) ListRolePermissions(ctx context.Context, roleID uuid.UUID) ([]backend.Grant, error) {
	if err := r.Faults.apply(ctx, OpListRolePermissions); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.grantsLocked(roleID), nil
}

// ReplaceRolePermissions makes permissionIDs the exact grant set of roleID
func (r *Repository) ReplaceRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	if err := r.Faults.apply(ctx, OpReplaceRolePermissions); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roles[roleID]; !ok {
		return apperrors.NotFound("role", roleID.String())
	}
	ids := make([]uuid.UUID, len(permissionIDs))
	copy(ids, permissionIDs)
	r.rolePermissions[roleID] = ids
	return nil
}

// FetchUserAccess loads profile, role and grants under a single read lock
func (r *Repository) FetchUserAccess(ctx context.Context, userID uuid.UUID) (backend.UserAccess, error) {
	if err := r.Faults.apply(ctx, OpFetchUserAccess); err != nil {
		return backend.UserAccess{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.joinsDisabled {
		return backend.UserAccess{}, apperrors.New(apperrors.KindMissingRelationship,
			"could not find a relationship between profiles and user_roles")
	}

	p, ok := r.profiles[userID]
	if !ok {
		return backend.UserAccess{}, apperrors.NotFound("profile", userID.String())
	}
	access := backend.UserAccess{Profile: p}
	for _, edge := range r.userRoles {
		if edge.UserID != userID {
			continue
		}
		role, ok := r.roles[edge.RoleID]
		if !ok {
			continue
		}
		if access.Role != nil {
			return backend.UserAccess{}, apperrors.Newf(apperrors.KindMultipleRows, "user %s has more than one role", userID)
		}
		access.Role = &role
	}
	if access.Role != nil {
		access.Grants = r.grantsLocked(access.Role.ID)
	}
	return access, nil
}

func (r *Repository) grantsLocked(roleID uuid.UUID) []backend.Grant {
	ids := r.rolePermissions[roleID]
	grants := make([]backend.Grant, 0, len(ids))
	for _, id := range ids {
		g := backend.Grant{PermissionID: id}
		if p, ok := r.permissions[id]; ok && p.Name != "" {
			name := p.Name
			g.Name = &name
		}
		grants = append(grants, g)
	}
	return grants
}
