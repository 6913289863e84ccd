package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	"github.com/sarathmodify/admin-dashboard/pkg/backend/memory"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRecorder struct {
	mu       sync.Mutex
	observed []string
}

func (m *mockRecorder) ObserveResolution(path, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed = append(m.observed, path+"/"+outcome)
}

func (m *mockRecorder) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.observed) == 0 {
		return ""
	}
	return m.observed[len(m.observed)-1]
}

type fixture struct {
	repo   *memory.Repository
	userID uuid.UUID
	email  string
	role   backend.Role
	perms  []backend.Permission
}

// newFixture creates a user "jane" with role staff granted p1, p2 and p3
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := memory.NewRepository()
	f := &fixture{repo: repo, userID: uuid.New(), email: "jane@example.com"}

	_, err := repo.CreateProfile(ctx, backend.CreateProfileParams{ID: f.userID, FullName: "Jane Doe"})
	require.NoError(t, err)
	f.role, err = repo.CreateRole(ctx, backend.CreateRoleParams{Name: "staff", DisplayName: "Staff"})
	require.NoError(t, err)

	var ids []uuid.UUID
	for _, name := range []string{"can_view_products", "can_view_orders", "can_edit_products"} {
		p, err := repo.CreatePermission(ctx, backend.CreatePermissionParams{Name: name, Category: "products"})
		require.NoError(t, err)
		f.perms = append(f.perms, p)
		ids = append(ids, p.ID)
	}
	require.NoError(t, repo.ReplaceRolePermissions(ctx, f.role.ID, ids))
	require.NoError(t, repo.InsertUserRole(ctx, backend.UserRole{UserID: f.userID, RoleID: f.role.ID}))
	return f
}

func fastConfig() Config {
	return Config{
		ProfileTimeout:    50 * time.Millisecond,
		RoleTimeout:       50 * time.Millisecond,
		PermissionTimeout: 50 * time.Millisecond,
	}
}

func TestResolve_PermissionFlattening(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := &mockRecorder{}
	r := New(f.repo, WithRecorder(rec))

	joined, err := r.Resolve(ctx, f.userID, f.email)
	require.NoError(t, err)
	assert.Equal(t, PathJoined+"/"+OutcomeResolved, rec.last())

	f.repo.DisableJoins()
	sequential, err := r.Resolve(ctx, f.userID, f.email)
	require.NoError(t, err)
	assert.Equal(t, PathSequential+"/"+OutcomeResolved, rec.last())

	assert.ElementsMatch(t, []string{"can_view_products", "can_view_orders", "can_edit_products"}, joined.Permissions)
	assert.Equal(t, joined, sequential, "both paths must produce the same result")
	require.NotNil(t, joined.Role)
	assert.Equal(t, "staff", joined.Role.Name)
	assert.Equal(t, "Jane Doe", joined.User.FullName)
	assert.Equal(t, f.email, joined.User.Email)
}

func TestResolve_DropsUnnamedGrants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.repo.DeletePermission(ctx, f.perms[1].ID))

	for _, joins := range []bool{true, false} {
		if !joins {
			f.repo.DisableJoins()
		}
		res, err := New(f.repo).Resolve(ctx, f.userID, f.email)
		require.NoError(t, err)
		assert.Equal(t, []string{"can_view_products", "can_edit_products"}, res.Permissions)
	}
}

func TestResolve_ProvisionsMissingProfile(t *testing.T) {
	for _, joins := range []bool{true, false} {
		name := "joined"
		if !joins {
			name = "sequential"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := memory.NewRepository()
			if !joins {
				repo.DisableJoins()
			}
			rec := &mockRecorder{}
			userID := uuid.New()

			res, err := New(repo, WithRecorder(rec)).Resolve(ctx, userID, "jane@x.com")
			require.NoError(t, err)
			assert.Equal(t, "jane", res.User.FullName)
			assert.Nil(t, res.Role)
			assert.NotNil(t, res.Permissions)
			assert.Empty(t, res.Permissions)
			assert.Equal(t, PathSequential+"/"+OutcomeProvisioned, rec.last())

			stored, err := repo.GetProfile(ctx, userID)
			require.NoError(t, err)
			assert.Equal(t, "jane", stored.FullName)
			assert.Equal(t, 1, repo.Faults.Calls(memory.OpCreateProfile))
		})
	}
}

func TestResolve_RetriesProvisioningOnce(t *testing.T) {
	repo := memory.NewRepository()
	repo.DisableJoins()
	repo.Faults.FailOn(memory.OpGetProfile, apperrors.KindNotFound)
	userID := uuid.New()

	res, err := New(repo).Resolve(context.Background(), userID, "jane@x.com")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	require.NotNil(t, res.User)
	assert.Equal(t, "jane", res.User.FullName)
	assert.Nil(t, res.Role)
	assert.Empty(t, res.Permissions)

	assert.Equal(t, 2, repo.Faults.Calls(memory.OpGetProfile))
	assert.Equal(t, 1, repo.Faults.Calls(memory.OpCreateProfile))
}

func TestResolve_DegradesOnProfileFailure(t *testing.T) {
	tests := []struct {
		name   string
		joins  bool
		inject func(repo *memory.Repository)
	}{
		{
			name:  "joined access denied",
			joins: true,
			inject: func(repo *memory.Repository) {
				repo.Faults.FailOn(memory.OpFetchUserAccess, apperrors.KindAccessDenied)
			},
		},
		{
			name:  "joined timeout",
			joins: true,
			inject: func(repo *memory.Repository) {
				repo.Faults.Delay(memory.OpFetchUserAccess, time.Second)
			},
		},
		{
			name: "profile access denied",
			inject: func(repo *memory.Repository) {
				repo.Faults.FailOn(memory.OpGetProfile, apperrors.KindAccessDenied)
			},
		},
		{
			name: "profile timeout",
			inject: func(repo *memory.Repository) {
				repo.Faults.Delay(memory.OpGetProfile, time.Second)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if !tt.joins {
				f.repo.DisableJoins()
			}
			tt.inject(f.repo)
			rec := &mockRecorder{}

			start := time.Now()
			res, err := New(f.repo, WithConfig(fastConfig()), WithRecorder(rec)).Resolve(context.Background(), f.userID, f.email)
			require.NoError(t, err)
			assert.Less(t, time.Since(start), 500*time.Millisecond)

			require.NotNil(t, res.User)
			assert.Equal(t, f.userID, res.User.ID)
			assert.Equal(t, "jane", res.User.FullName)
			assert.Nil(t, res.User.Phone)
			assert.Nil(t, res.User.AvatarURL)
			assert.Nil(t, res.Role)
			assert.NotNil(t, res.Permissions)
			assert.Empty(t, res.Permissions)
			assert.Contains(t, rec.last(), OutcomeDegraded)
			assert.Zero(t, f.repo.Faults.Calls(memory.OpGetUserRole), "role lookup must be short-circuited")
		})
	}
}

func TestResolve_PermissionTimeout(t *testing.T) {
	f := newFixture(t)
	f.repo.DisableJoins()
	f.repo.Faults.Delay(memory.OpListRolePermissions, time.Second)

	start := time.Now()
	res, err := New(f.repo, WithConfig(fastConfig())).Resolve(context.Background(), f.userID, f.email)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Nil(t, res.Role)
	assert.Empty(t, res.Permissions)
	assert.Equal(t, "Jane Doe", res.User.FullName)
}

func TestResolve_RoleFailures(t *testing.T) {
	tests := []struct {
		name   string
		inject func(f *fixture)
	}{
		{
			name: "no role",
			inject: func(f *fixture) {
				require.NoError(t, f.repo.DeleteUserRoles(context.Background(), f.userID))
			},
		},
		{
			name: "role query error",
			inject: func(f *fixture) {
				f.repo.Faults.FailOn(memory.OpGetUserRole, apperrors.KindUnknown)
			},
		},
		{
			name: "multiple roles",
			inject: func(f *fixture) {
				other, err := f.repo.CreateRole(context.Background(), backend.CreateRoleParams{Name: "manager"})
				require.NoError(t, err)
				require.NoError(t, f.repo.InsertUserRole(context.Background(), backend.UserRole{UserID: f.userID, RoleID: other.ID}))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.repo.DisableJoins()
			tt.inject(f)

			res, err := New(f.repo).Resolve(context.Background(), f.userID, f.email)
			require.NoError(t, err)
			assert.Equal(t, "Jane Doe", res.User.FullName)
			assert.Nil(t, res.Role)
			assert.Empty(t, res.Permissions)
		})
	}
}

func TestResolve_JoinedMultipleRolesFallsBack(t *testing.T) {
	f := newFixture(t)
	other, err := f.repo.CreateRole(context.Background(), backend.CreateRoleParams{Name: "manager"})
	require.NoError(t, err)
	require.NoError(t, f.repo.InsertUserRole(context.Background(), backend.UserRole{UserID: f.userID, RoleID: other.ID}))

	res, err := New(f.repo).Resolve(context.Background(), f.userID, f.email)
	require.NoError(t, err)
	assert.Nil(t, res.Role)
	assert.Equal(t, 1, f.repo.Faults.Calls(memory.OpGetUserRole))
}

func TestResolve_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.repo.Faults.Delay(memory.OpFetchUserAccess, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	res, err := New(f.repo).Resolve(ctx, f.userID, f.email)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res.User)
}

func TestLocalPart(t *testing.T) {
	assert.Equal(t, "jane", LocalPart("jane@x.com"))
	assert.Equal(t, "a@b", LocalPart("a@b@c.com"))
	assert.Equal(t, "nomail", LocalPart("nomail"))
}
