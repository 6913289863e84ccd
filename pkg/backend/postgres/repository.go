package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
)

//go:embed migrations/schema.sql
var schemaSQL string

var (
	_ backend.Relational      = (*Repository)(nil)
	_ backend.CredentialStore = (*Repository)(nil)
)

// Repository implements backend.Relational and backend.CredentialStore using PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

// Migrate applies the embedded schema. It is idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const profileColumns = `id, full_name, phone, avatar_url, created_at, updated_at`

func scanProfile(row pgx.Row) (backend.Profile, error) {
	var p backend.Profile
	err := row.Scan(&p.ID, &p.FullName, &p.Phone, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetProfile retrieves a profile by user ID
func (r *Repository) GetProfile(ctx context.Context, id uuid.UUID) (backend.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	p, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return backend.Profile{}, classify(err, "get profile")
	}
	return p, nil
}

// CreateProfile provisions a profile row
func (r *Repository) CreateProfile(ctx context.Context, params backend.CreateProfileParams) (backend.Profile, error) {
	query := `
		INSERT INTO profiles (id, full_name)
		VALUES ($1, $2)
		RETURNING ` + profileColumns
	p, err := scanProfile(r.pool.QueryRow(ctx, query, params.ID, params.FullName))
	if err != nil {
		return backend.Profile{}, classifyWrite(err, "create profile")
	}
	return p, nil
}

// UpdateProfile applies the non-nil fields of params
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, params backend.UpdateProfileParams) (backend.Profile, error) {
	query := `
		UPDATE profiles SET
			full_name  = COALESCE($2, full_name),
			phone      = COALESCE($3, phone),
			avatar_url = COALESCE($4, avatar_url),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns
	p, err := scanProfile(r.pool.QueryRow(ctx, query, id, params.FullName, params.Phone, params.AvatarURL))
	if err != nil {
		return backend.Profile{}, classifyWrite(err, "update profile")
	}
	return p, nil
}

// SearchProfiles pages through profiles matching filter.Query with ILIKE
func (r *Repository) SearchProfiles(ctx context.Context, filter backend.ProfileFilter) ([]backend.Profile, int, error) {
	pattern := "%" + escapeLike(filter.Query) + "%"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM profiles WHERE full_name ILIKE $1 OR phone ILIKE $1`
	if err := r.pool.QueryRow(ctx, countQuery, pattern).Scan(&total); err != nil {
		return nil, 0, classify(err, "count profiles")
	}

	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE full_name ILIKE $1 OR phone ILIKE $1
		ORDER BY full_name, id
		LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, pattern, limit, filter.Offset)
	if err != nil {
		return nil, 0, classify(err, "search profiles")
	}
	defer rows.Close()

	var profiles []backend.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, classify(err, "scan profile")
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify(err, "search profiles")
	}
	return profiles, total, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

const roleColumns = `id, name, display_name, description`

func scanRole(row pgx.Row) (backend.Role, error) {
	var role backend.Role
	err := row.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description)
	return role, err
}

// ListRoles returns all roles ordered by name
func (r *Repository) ListRoles(ctx context.Context) ([]backend.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, classify(err, "list roles")
	}
	defer rows.Close()

	var roles []backend.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, classify(err, "scan role")
		}
		roles = append(roles, role)
	}
	return roles, classify(rows.Err(), "list roles")
}

// GetRole retrieves a role by ID
func (r *Repository) GetRole(ctx context.Context, id uuid.UUID) (backend.Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		return backend.Role{}, classify(err, "get role")
	}
	return role, nil
}

// GetRoleByName retrieves a role by machine name
func (r *Repository) GetRoleByName(ctx context.Context, name string) (backend.Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
	if err != nil {
		return backend.Role{}, classify(err, "get role by name")
	}
	return role, nil
}

// CreateRole creates a new role
func (r *Repository) CreateRole(ctx context.Context, params backend.CreateRoleParams) (backend.Role, error) {
	query := `
		INSERT INTO roles (id, name, display_name, description)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + roleColumns
	role, err := scanRole(r.pool.QueryRow(ctx, query, uuid.New(), params.Name, params.DisplayName, params.Description))
	if err != nil {
		return backend.Role{}, classifyWrite(err, "create role")
	}
	return role, nil
}

// UpdateRole replaces the mutable fields of a role
func (r *Repository) UpdateRole(ctx context.Context, role backend.Role) (backend.Role, error) {
	query := `
		UPDATE roles SET name = $2, display_name = $3, description = $4
		WHERE id = $1
		RETURNING ` + roleColumns
	updated, err := scanRole(r.pool.QueryRow(ctx, query, role.ID, role.Name, role.DisplayName, role.Description))
	if err != nil {
		return backend.Role{}, classifyWrite(err, "update role")
	}
	return updated, nil
}

// DeleteRole deletes a role; assignment edges cascade
func (r *Repository) DeleteRole(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	return classifyWrite(err, "delete role")
}

// GetUserRole returns the single role of userID, distinguishing none from many
func (r *Repository) GetUserRole(ctx context.Context, userID uuid.UUID) (backend.Role, error) {
	query := `
		SELECT r.id, r.name, r.display_name, r.description
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
		LIMIT 2`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return backend.Role{}, classify(err, "get user role")
	}
	defer rows.Close()

	var found []backend.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return backend.Role{}, classify(err, "scan user role")
		}
		found = append(found, role)
	}
	if err := rows.Err(); err != nil {
		return backend.Role{}, classify(err, "get user role")
	}

	switch len(found) {
	case 0:
		return backend.Role{}, apperrors.NotFound("user role", userID.String())
	case 1:
		return found[0], nil
	default:
		return backend.Role{}, apperrors.Newf(apperrors.KindMultipleRows, "user %s has more than one role", userID)
	}
}

// ListUserRoles returns every assignment edge of userID
func (r *Repository) ListUserRoles(ctx context.Context, userID uuid.UUID) ([]backend.UserRole, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, role_id FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, classify(err, "list user roles")
	}
	defer rows.Close()

	var edges []backend.UserRole
	for rows.Next() {
		var edge backend.UserRole
		if err := rows.Scan(&edge.UserID, &edge.RoleID); err != nil {
			return nil, classify(err, "scan user role")
		}
		edges = append(edges, edge)
	}
	return edges, classify(rows.Err(), "list user roles")
}

// DeleteUserRoles removes every assignment edge of userID
func (r *Repository) DeleteUserRoles(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID)
	return classifyWrite(err, "delete user roles")
}

// InsertUserRole adds one assignment edge
func (r *Repository) InsertUserRole(ctx context.Context, edge backend.UserRole) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, edge.UserID, edge.RoleID)
	return classifyWrite(err, "insert user role")
}

const permissionColumns = `id, name, category, description`

// ListPermissions returns all permissions ordered by category then name
func (r *Repository) ListPermissions(ctx context.Context) ([]backend.Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY category, name`)
	if err != nil {
		return nil, classify(err, "list permissions")
	}
	defer rows.Close()

	var perms []backend.Permission
	for rows.Next() {
		var p backend.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Description); err != nil {
			return nil, classify(err, "scan permission")
		}
		perms = append(perms, p)
	}
	return perms, classify(rows.Err(), "list permissions")
}

// CreatePermission creates a new permission
func (r *Repository) CreatePermission(ctx context.Context, params backend.CreatePermissionParams) (backend.Permission, error) {
	query := `
		INSERT INTO permissions (id, name, category, description)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + permissionColumns
	var p backend.Permission
	err := r.pool.QueryRow(ctx, query, uuid.New(), params.Name, params.Category, params.Description).
		Scan(&p.ID, &p.Name, &p.Category, &p.Description)
	if err != nil {
		return backend.Permission{}, classifyWrite(err, "create permission")
	}
	return p, nil
}

// DeletePermission deletes a permission. Grants that referenced it remain and read back without a name.
func (r *Repository) DeletePermission(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	return classifyWrite(err, "delete permission")
}

// ListRolePermissions returns the grants of roleID in the order they were written
func (r *Repository) ListRolePermissions(ctx context.Context, roleID uuid.UUID) ([]backend.Grant, error) {
	query := `
		SELECT rp.permission_id, p.name
		FROM role_permissions rp
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY rp.position`
	rows, err := r.pool.Query(ctx, query, roleID)
	if err != nil {
		return nil, classify(err, "list role permissions")
	}
	defer rows.Close()

	var grants []backend.Grant
	for rows.Next() {
		var g backend.Grant
		if err := rows.Scan(&g.PermissionID, &g.Name); err != nil {
			return nil, classify(err, "scan role permission")
		}
		grants = append(grants, g)
	}
	return grants, classify(rows.Err(), "list role permissions")
}

// ReplaceRolePermissions deletes every grant of roleID and inserts
// permissionIDs in a single transaction
func (r *Repository) ReplaceRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return apperrors.NotFound("role", roleID.String())
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for i, id := range permissionIDs {
			batch.Queue(`INSERT INTO role_permissions (role_id, permission_id, position) VALUES ($1, $2, $3)`, roleID, id, i)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if apperrors.KindOf(err) == apperrors.KindNotFound {
		return err
	}
	return classifyWrite(err, "replace role permissions")
}

// FetchUserAccess loads profile, role and grants in one query
func (r *Repository) FetchUserAccess(ctx context.Context, userID uuid.UUID) (backend.UserAccess, error) {
	query := `
		SELECT p.id, p.full_name, p.phone, p.avatar_url, p.created_at, p.updated_at,
		       r.id, r.name, r.display_name, r.description,
		       rp.permission_id, perm.name
		FROM profiles p
		LEFT JOIN user_roles ur ON ur.user_id = p.id
		LEFT JOIN roles r ON r.id = ur.role_id
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions perm ON perm.id = rp.permission_id
		WHERE p.id = $1
		ORDER BY r.id, rp.position`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return backend.UserAccess{}, classify(err, "fetch user access")
	}
	defer rows.Close()

	var (
		access backend.UserAccess
		seen   bool
	)
	for rows.Next() {
		var (
			p                               backend.Profile
			roleID                          *uuid.UUID
			roleName, roleDisplay, roleDesc *string
			permID                          *uuid.UUID
			permName                        *string
		)
		if err := rows.Scan(&p.ID, &p.FullName, &p.Phone, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt,
			&roleID, &roleName, &roleDisplay, &roleDesc, &permID, &permName); err != nil {
			return backend.UserAccess{}, classify(err, "scan user access")
		}
		if !seen {
			access.Profile = p
			seen = true
		}
		if roleID != nil {
			if access.Role != nil && access.Role.ID != *roleID {
				return backend.UserAccess{}, apperrors.Newf(apperrors.KindMultipleRows, "user %s has more than one role", userID)
			}
			if access.Role == nil {
				access.Role = &backend.Role{ID: *roleID, Name: deref(roleName), DisplayName: deref(roleDisplay), Description: deref(roleDesc)}
			}
		}
		if permID != nil {
			access.Grants = append(access.Grants, backend.Grant{PermissionID: *permID, Name: permName})
		}
	}
	if err := rows.Err(); err != nil {
		return backend.UserAccess{}, classify(err, "fetch user access")
	}
	if !seen {
		return backend.UserAccess{}, apperrors.NotFound("profile", userID.String())
	}
	return access, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GetCredentialByEmail retrieves a credential by email (case-insensitive)
func (r *Repository) GetCredentialByEmail(ctx context.Context, email string) (backend.Credential, error) {
	var c backend.Credential
	err := r.pool.QueryRow(ctx, `SELECT id, email, password_hash, created_at FROM auth_users WHERE lower(email) = lower($1)`, email).
		Scan(&c.UserID, &c.Email, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		return backend.Credential{}, classify(err, "get credential")
	}
	return c, nil
}

// GetCredential retrieves a credential by user ID
func (r *Repository) GetCredential(ctx context.Context, userID uuid.UUID) (backend.Credential, error) {
	var c backend.Credential
	err := r.pool.QueryRow(ctx, `SELECT id, email, password_hash, created_at FROM auth_users WHERE id = $1`, userID).
		Scan(&c.UserID, &c.Email, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		return backend.Credential{}, classify(err, "get credential")
	}
	return c, nil
}

// CreateCredential inserts a credential
func (r *Repository) CreateCredential(ctx context.Context, cred backend.Credential) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO auth_users (id, email, password_hash) VALUES ($1, $2, $3)`,
		cred.UserID, cred.Email, cred.PasswordHash)
	return classifyWrite(err, "create credential")
}

// UpdatePasswordHash replaces the stored password hash
func (r *Repository) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash []byte) error {
	tag, err := r.pool.Exec(ctx, `UPDATE auth_users SET password_hash = $2 WHERE id = $1`, userID, hash)
	if err != nil {
		return classifyWrite(err, "update password")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("user", userID.String())
	}
	return nil
}
