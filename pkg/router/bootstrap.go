package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sarathmodify/admin-dashboard/pkg/admin"
	"github.com/sarathmodify/admin-dashboard/pkg/auth"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	"github.com/sarathmodify/admin-dashboard/pkg/config"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
	"github.com/sarathmodify/admin-dashboard/pkg/resolver"
)

// SeedUser describes an account created with a role at startup or by the seed command
type SeedUser struct {
	Email    string
	Password string
	FullName string
	Role     string
}

// Bootstrap ensures the default role catalog and the configured admin account exist.
// It is idempotent so it can run on every start.
func (s *Services) Bootstrap(ctx context.Context, cfg config.Config, b *Backends) error {
	if !cfg.Bootstrap.Catalog(cfg.Persistence) && !cfg.Bootstrap.HasAdmin() {
		return nil
	}
	roles, err := s.Admin.EnsureCatalog(ctx, admin.DefaultCatalog())
	if err != nil {
		return fmt.Errorf("failed to seed roles and permissions: %w", err)
	}
	slog.Info("Roles and permissions seeded", "roles", len(roles))

	if !cfg.Bootstrap.HasAdmin() {
		return nil
	}
	user, err := EnsureUser(ctx, s.Auth, s.Admin, b, roles, SeedUser{
		Email:    cfg.Bootstrap.AdminEmail,
		Password: cfg.Bootstrap.AdminPassword,
		FullName: cfg.Bootstrap.AdminName,
		Role:     cfg.Bootstrap.AdminRole,
	})
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	slog.Info("Bootstrap admin ready", "userId", user.ID, "role", cfg.Bootstrap.AdminRole)
	return nil
}

// EnsureUser creates the credential and profile of u when missing and assigns its role.
// An existing credential for the email is reused and its password left untouched.
func EnsureUser(ctx context.Context, authService *auth.Service, svc *admin.Service, b *Backends, roles map[string]backend.Role, u SeedUser) (backend.User, error) {
	role, ok := roles[u.Role]
	if !ok {
		return backend.User{}, apperrors.NotFound("role", u.Role)
	}

	var user backend.User
	cred, err := b.Credentials.GetCredentialByEmail(ctx, u.Email)
	switch {
	case err == nil:
		user = backend.User{ID: cred.UserID, Email: cred.Email}
	case apperrors.KindOf(err) == apperrors.KindNotFound:
		user, err = authService.SignUp(ctx, u.Email, u.Password)
		if err != nil {
			return backend.User{}, err
		}
	default:
		return backend.User{}, err
	}

	name := u.FullName
	if name == "" {
		name = resolver.LocalPart(u.Email)
	}
	_, err = b.Relational.CreateProfile(ctx, backend.CreateProfileParams{ID: user.ID, FullName: name})
	if err != nil && apperrors.KindOf(err) != apperrors.KindValidation {
		return backend.User{}, err
	}

	if err := svc.AssignRole(ctx, user.ID, role.ID); err != nil {
		return backend.User{}, err
	}
	return user, nil
}
