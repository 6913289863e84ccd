package admin

import (
	"context"

	"github.com/google/uuid"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
	"github.com/sarathmodify/admin-dashboard/pkg/permission"
)

// CatalogRole is a role and the names of the permissions it is granted
type CatalogRole struct {
	backend.CreateRoleParams
	Permissions []string
}

// Catalog is the set of roles and permissions a fresh backend starts with
type Catalog struct {
	Permissions []backend.CreatePermissionParams
	Roles       []CatalogRole
}

// DefaultCatalog returns the standard admin, manager and staff roles
func DefaultCatalog() Catalog {
	return Catalog{
		Permissions: []backend.CreatePermissionParams{
			{Name: "can_view_products", Category: "products"},
			{Name: "can_edit_products", Category: "products"},
			{Name: "can_view_orders", Category: "orders"},
			{Name: "can_edit_orders", Category: "orders"},
			{Name: "can_view_customers", Category: "customers"},
			{Name: "can_manage_users", Category: "admin"},
			{Name: "can_manage_roles", Category: "admin"},
		},
		Roles: []CatalogRole{
			{
				CreateRoleParams: backend.CreateRoleParams{Name: permission.RoleAdmin, DisplayName: "Administrator"},
				Permissions: []string{
					"can_view_products", "can_edit_products", "can_view_orders", "can_edit_orders",
					"can_view_customers", "can_manage_users", "can_manage_roles",
				},
			},
			{
				CreateRoleParams: backend.CreateRoleParams{Name: permission.RoleManager, DisplayName: "Manager"},
				Permissions: []string{
					"can_view_products", "can_edit_products", "can_view_orders", "can_edit_orders", "can_view_customers",
				},
			},
			{
				CreateRoleParams: backend.CreateRoleParams{Name: permission.RoleStaff, DisplayName: "Staff"},
				Permissions:      []string{"can_view_products", "can_view_orders"},
			},
		},
	}
}

// EnsureCatalog creates the missing roles and permissions of c and makes each
// catalog role's grants exactly its listed permissions. Existing rows are reused,
// so running it twice is a no-op.
func (s *Service) EnsureCatalog(ctx context.Context, c Catalog) (map[string]backend.Role, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	permIDs := make(map[string]uuid.UUID, len(perms))
	for _, p := range perms {
		permIDs[p.Name] = p.ID
	}
	for _, params := range c.Permissions {
		if _, ok := permIDs[params.Name]; ok {
			continue
		}
		p, err := s.CreatePermission(ctx, params)
		if err != nil {
			return nil, err
		}
		permIDs[p.Name] = p.ID
	}

	roles := make(map[string]backend.Role, len(c.Roles))
	for _, cr := range c.Roles {
		role, err := s.repo.GetRoleByName(ctx, cr.Name)
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			role, err = s.CreateRole(ctx, cr.CreateRoleParams)
		}
		if err != nil {
			return nil, err
		}

		ids := make([]uuid.UUID, 0, len(cr.Permissions))
		for _, name := range cr.Permissions {
			id, ok := permIDs[name]
			if !ok {
				return nil, apperrors.Validation("permissions", "unknown permission "+name)
			}
			ids = append(ids, id)
		}
		if err := s.UpdateRolePermissions(ctx, role.ID, ids); err != nil {
			return nil, err
		}
		roles[role.Name] = role
	}
	return roles, nil
}
