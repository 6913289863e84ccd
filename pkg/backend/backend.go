package backend

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Auth is the authentication capability of the backend
type Auth interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	// GetSession returns the live session for accessToken
	GetSession(ctx context.Context, accessToken string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	GetUser(ctx context.Context, accessToken string) (*User, error)
	UpdateUser(ctx context.Context, accessToken string, attrs UserAttributes) error
	// OnAuthStateChange registers fn and returns its unsubscribe function
	OnAuthStateChange(fn AuthListener) (unsubscribe func())
}

// ProfileRepository defines profile table access
type ProfileRepository interface {
	// GetProfile returns KindNotFound when no row exists
	GetProfile(ctx context.Context, id uuid.UUID) (Profile, error)
	CreateProfile(ctx context.Context, params CreateProfileParams) (Profile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, params UpdateProfileParams) (Profile, error)
	SearchProfiles(ctx context.Context, filter ProfileFilter) ([]Profile, int, error)
}

// RoleRepository defines role and user_roles table access
type RoleRepository interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id uuid.UUID) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	CreateRole(ctx context.Context, params CreateRoleParams) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID) error

	// GetUserRole distinguishes KindNotFound from KindMultipleRows
	GetUserRole(ctx context.Context, userID uuid.UUID) (Role, error)
	ListUserRoles(ctx context.Context, userID uuid.UUID) ([]UserRole, error)
	DeleteUserRoles(ctx context.Context, userID uuid.UUID) error
	InsertUserRole(ctx context.Context, edge UserRole) error
}

// PermissionRepository defines permission and role_permissions table access
type PermissionRepository interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	CreatePermission(ctx context.Context, params CreatePermissionParams) (Permission, error)
	DeletePermission(ctx context.Context, id uuid.UUID) error

	ListRolePermissions(ctx context.Context, roleID uuid.UUID) ([]Grant, error)
	// ReplaceRolePermissions makes permissionIDs the exact grant set of roleID
	ReplaceRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error
}

// Relational is the relational query capability of the backend
type Relational interface {
	ProfileRepository
	RoleRepository
	PermissionRepository

	// FetchUserAccess loads profile, role and grants in one round trip.
	// Returns KindMissingRelationship when the schema lacks the joins.
	FetchUserAccess(ctx context.Context, userID uuid.UUID) (UserAccess, error)
}

// Storage is the object storage capability of the backend
type Storage interface {
	Upload(ctx context.Context, path string, body io.Reader, contentType string) (string, error)
	PublicURL(path string) string
	Remove(ctx context.Context, paths []string) error
}

// CredentialStore persists password credentials for the auth capability
type CredentialStore interface {
	// GetCredentialByEmail returns KindNotFound for an unknown email
	GetCredentialByEmail(ctx context.Context, email string) (Credential, error)
	GetCredential(ctx context.Context, userID uuid.UUID) (Credential, error)
	CreateCredential(ctx context.Context, cred Credential) error
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash []byte) error
}
