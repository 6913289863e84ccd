package backend

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity owned by the auth capability. Read-only to the dashboard.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// Session is an authenticated session issued by the auth capability
type Session struct {
	// ID identifies the session and is stable across token refreshes
	ID           string    `json:"id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// AuthEvent is the kind of auth state change delivered to listeners
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// AuthListener receives auth state changes. For EventSignedOut, session
// carries only the ID and user of the session that ended.
type AuthListener func(event AuthEvent, session *Session)

// UserAttributes carries mutable auth-side attributes
type UserAttributes struct {
	Password string
}

// Profile holds the mutable attributes attached 1:1 to a user
type Profile struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Phone     *string   `json:"phone"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateProfileParams contains parameters for provisioning a profile
type CreateProfileParams struct {
	ID       uuid.UUID
	FullName string
}

// UpdateProfileParams contains a partial profile update. Nil fields are left untouched.
type UpdateProfileParams struct {
	FullName  *string `json:"full_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// ProfileFilter narrows a profile search. Query is matched case-insensitively
// against full name and phone.
type ProfileFilter struct {
	Query  string
	Limit  int
	Offset int
}

// Role is a named authorization bucket
type Role struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
}

// CreateRoleParams contains parameters for creating a role
type CreateRoleParams struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
}

// Permission is a named capability
type Permission struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
}

// CreatePermissionParams contains parameters for creating a permission
type CreatePermissionParams struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
}

// UserRole is the user -> role assignment edge
type UserRole struct {
	UserID uuid.UUID `json:"user_id"`
	RoleID uuid.UUID `json:"role_id"`
}

// Grant is one role_permissions row joined to its permission.
// Name is nil when the permission row is missing or has no name.
type Grant struct {
	PermissionID uuid.UUID `json:"permission_id"`
	Name         *string   `json:"name"`
}

// UserAccess is the single round-trip result of profile + role + grants
type UserAccess struct {
	Profile Profile
	Role    *Role
	Grants  []Grant
}

// Credential is the password record behind a User
type Credential struct {
	UserID       uuid.UUID
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}
