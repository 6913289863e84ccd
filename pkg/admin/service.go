// Package admin manages roles, permissions and their assignments: the
// role assignment flow and the role-permission matrix editor.
//
// Role assignment overwrites: existing user_roles rows are deleted and one
// new row is inserted. The two writes are not atomic, so a failure between
// them leaves the user without a role, which is a valid state.
//
// Role permission updates replace the whole set. Writers to the same role
// are serialized in-process; across processes the last write wins.
package admin

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/im7mortal/kmutex"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Mutation names reported to the Recorder
const (
	OpCreateRole            = "create_role"
	OpUpdateRole            = "update_role"
	OpDeleteRole            = "delete_role"
	OpCreatePermission      = "create_permission"
	OpDeletePermission      = "delete_permission"
	OpAssignRole            = "assign_role"
	OpRemoveUserRole        = "remove_user_role"
	OpUpdateRolePermissions = "update_role_permissions"
	OpTogglePermission      = "toggle_permission"
)

const maxKeyLength = 64

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Recorder observes mutation results
type Recorder interface {
	ObserveMutation(op string, err error)
}

// Refresher re-resolves live sessions affected by a change
type Refresher interface {
	RefreshUser(userID uuid.UUID) int
	RefreshRole(roleID uuid.UUID) int
}

type nopRecorder struct{}

func (nopRecorder) ObserveMutation(string, error) {}

type nopRefresher struct{}

func (nopRefresher) RefreshUser(uuid.UUID) int { return 0 }
func (nopRefresher) RefreshRole(uuid.UUID) int { return 0 }

// UserWithRole is a user row of the admin user list
type UserWithRole struct {
	backend.Profile
	Role *backend.Role `json:"role"`
}

// Service provides role and permission management
type Service struct {
	repo        backend.Relational
	locks       *kmutex.Kmutex
	recorder    Recorder
	refresher   Refresher
	concurrency int
}

type Option func(*Service)

func WithRecorder(rec Recorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.recorder = rec
		}
	}
}

// WithRefresher re-resolves affected sessions after successful mutations
func WithRefresher(r Refresher) Option {
	return func(s *Service) {
		if r != nil {
			s.refresher = r
		}
	}
}

// WithConcurrency bounds the fan-out of per-role and per-user lookups
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func NewService(repo backend.Relational, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		locks:       kmutex.New(),
		recorder:    nopRecorder{},
		refresher:   nopRefresher{},
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ListRoles(ctx context.Context) ([]backend.Role, error) {
	return s.repo.ListRoles(ctx)
}

func (s *Service) ListPermissions(ctx context.Context) ([]backend.Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// CreateRole validates and creates a role
func (s *Service) CreateRole(ctx context.Context, params backend.CreateRoleParams) (backend.Role, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.DisplayName = strings.TrimSpace(params.DisplayName)
	if err := validateKey("name", params.Name); err != nil {
		return backend.Role{}, err
	}
	if params.DisplayName == "" {
		params.DisplayName = params.Name
	}

	role, err := s.repo.CreateRole(ctx, params)
	err = s.observe(OpCreateRole, err)
	if err != nil {
		return backend.Role{}, err
	}
	slog.Info("Role created", "roleId", role.ID, "name", role.Name)
	return role, nil
}

// UpdateRole validates and updates a role
func (s *Service) UpdateRole(ctx context.Context, role backend.Role) (backend.Role, error) {
	role.Name = strings.TrimSpace(role.Name)
	role.DisplayName = strings.TrimSpace(role.DisplayName)
	if err := validateKey("name", role.Name); err != nil {
		return backend.Role{}, err
	}
	if role.DisplayName == "" {
		return backend.Role{}, apperrors.Validation("display_name", "must not be empty")
	}

	updated, err := s.repo.UpdateRole(ctx, role)
	if err = s.observe(OpUpdateRole, err); err != nil {
		return backend.Role{}, err
	}
	s.refresher.RefreshRole(role.ID)
	return updated, nil
}

// DeleteRole deletes a role. Users holding it are left without a role.
func (s *Service) DeleteRole(ctx context.Context, id uuid.UUID) error {
	s.locks.Lock(id)
	defer s.locks.Unlock(id)

	if err := s.observe(OpDeleteRole, s.repo.DeleteRole(ctx, id)); err != nil {
		return err
	}
	s.refresher.RefreshRole(id)
	return nil
}

// CreatePermission validates and creates a permission
func (s *Service) CreatePermission(ctx context.Context, params backend.CreatePermissionParams) (backend.Permission, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Category = strings.TrimSpace(params.Category)
	if err := validateKey("name", params.Name); err != nil {
		return backend.Permission{}, err
	}
	if params.Category == "" {
		return backend.Permission{}, apperrors.Validation("category", "must not be empty")
	}

	perm, err := s.repo.CreatePermission(ctx, params)
	if err = s.observe(OpCreatePermission, err); err != nil {
		return backend.Permission{}, err
	}
	return perm, nil
}

func (s *Service) DeletePermission(ctx context.Context, id uuid.UUID) error {
	return s.observe(OpDeletePermission, s.repo.DeletePermission(ctx, id))
}

// ListUsers searches profiles and attaches each user's role
func (s *Service) ListUsers(ctx context.Context, filter backend.ProfileFilter) ([]UserWithRole, int, error) {
	profiles, total, err := s.repo.SearchProfiles(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	users := make([]UserWithRole, len(profiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, p := range profiles {
		users[i].Profile = p
		g.Go(func() error {
			role, err := s.repo.GetUserRole(gctx, p.ID)
			if err == nil {
				users[i].Role = &role
				return nil
			}
			switch apperrors.KindOf(err) {
			case apperrors.KindNotFound:
				return nil
			case apperrors.KindMultipleRows:
				slog.Warn("User has more than one role", "userId", p.ID)
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// AssignRole makes roleID the only role of userID
func (s *Service) AssignRole(ctx context.Context, userID, roleID uuid.UUID) error {
	if userID == uuid.Nil {
		return apperrors.Validation("user_id", "must not be empty")
	}
	if roleID == uuid.Nil {
		return apperrors.Validation("role_id", "must not be empty")
	}
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}

	err := s.assignRole(ctx, userID, roleID)
	s.recorder.ObserveMutation(OpAssignRole, err)
	if err != nil {
		return err
	}
	slog.Info("Role assigned", "userId", userID, "roleId", roleID)
	s.refresher.RefreshUser(userID)
	return nil
}

func (s *Service) assignRole(ctx context.Context, userID, roleID uuid.UUID) error {
	if err := s.repo.DeleteUserRoles(ctx, userID); err != nil {
		return mutationFailed(err, OpAssignRole)
	}
	if err := s.repo.InsertUserRole(ctx, backend.UserRole{UserID: userID, RoleID: roleID}); err != nil {
		slog.Error("Role assignment left user without a role", "userId", userID, "roleId", roleID, "err", err)
		s.refresher.RefreshUser(userID)
		return mutationFailed(err, OpAssignRole)
	}
	return nil
}

// RemoveUserRole leaves userID without a role
func (s *Service) RemoveUserRole(ctx context.Context, userID uuid.UUID) error {
	if err := s.observe(OpRemoveUserRole, s.repo.DeleteUserRoles(ctx, userID)); err != nil {
		return err
	}
	s.refresher.RefreshUser(userID)
	return nil
}

// RolePermissions returns the permission ids granted to roleID
func (s *Service) RolePermissions(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error) {
	grants, err := s.repo.ListRolePermissions(ctx, roleID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(grants))
	for _, g := range grants {
		ids = append(ids, g.PermissionID)
	}
	return ids, nil
}

// UpdateRolePermissions makes permissionIDs the exact permission set of roleID
func (s *Service) UpdateRolePermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	s.locks.Lock(roleID)
	defer s.locks.Unlock(roleID)

	err := s.replaceLocked(ctx, roleID, permissionIDs)
	s.recorder.ObserveMutation(OpUpdateRolePermissions, err)
	return err
}

// replaceLocked writes the grant set. The caller holds the role lock.
func (s *Service) replaceLocked(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	if roleID == uuid.Nil {
		return apperrors.Validation("role_id", "must not be empty")
	}
	if err := s.repo.ReplaceRolePermissions(ctx, roleID, dedupe(permissionIDs)); err != nil {
		return mutationFailed(err, OpUpdateRolePermissions)
	}
	s.refresher.RefreshRole(roleID)
	return nil
}

// RolePermissionsMap loads the permission set of every role concurrently
func (s *Service) RolePermissionsMap(ctx context.Context) (map[uuid.UUID][]uuid.UUID, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}

	results := make([][]uuid.UUID, len(roles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, role := range roles {
		g.Go(func() error {
			ids, err := s.RolePermissions(gctx, role.ID)
			if err != nil {
				return err
			}
			results[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := make(map[uuid.UUID][]uuid.UUID, len(roles))
	for i, role := range roles {
		m[role.ID] = results[i]
	}
	return m, nil
}

func (s *Service) observe(op string, err error) error {
	if err != nil {
		err = mutationFailed(err, op)
	}
	s.recorder.ObserveMutation(op, err)
	return err
}

// mutationFailed classifies a write failure. Input and lookup errors keep their kind.
func mutationFailed(err error, op string) error {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation, apperrors.KindNotFound, apperrors.KindMutationFailed:
		return err
	default:
		return apperrors.MutationFailed(err, op)
	}
}

func validateKey(field, value string) error {
	switch {
	case value == "":
		return apperrors.Validation(field, "must not be empty")
	case len(value) > maxKeyLength:
		return apperrors.Validation(field, "must be at most 64 characters")
	case !keyPattern.MatchString(value):
		return apperrors.Validation(field, "must be lowercase letters, digits and underscores, starting with a letter")
	}
	return nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
