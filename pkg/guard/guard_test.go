package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sarathmodify/admin-dashboard/pkg/authstate"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	"github.com/sarathmodify/admin-dashboard/pkg/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyState(role string, perms ...string) authstate.State {
	st := authstate.State{
		Phase:       authstate.PhaseReady,
		Session:     &backend.Session{ID: "s1", User: backend.User{ID: uuid.New()}},
		Permissions: append([]string{}, perms...),
	}
	if role != "" {
		st.Role = &backend.Role{ID: uuid.New(), Name: role}
	}
	return st
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name  string
		state authstate.State
		req   Requirement
		want  Decision
	}{
		{name: "no session", state: authstate.State{Phase: authstate.PhaseLoggedOut}, want: DecisionUnauthenticated},
		{name: "session only", state: readyState(""), want: DecisionAllowed},
		{name: "role allowed", state: readyState("manager"), req: Requirement{Roles: []string{"admin", "manager"}}, want: DecisionAllowed},
		{name: "role denied", state: readyState("staff"), req: Requirement{Roles: []string{"admin", "manager"}}, want: DecisionDenied},
		{name: "no role denied", state: readyState(""), req: Requirement{Roles: []string{"admin"}}, want: DecisionDenied},
		{
			name:  "all permissions held",
			state: readyState("staff", "can_view_products", "can_edit_products"),
			req:   Requirement{Permissions: []string{"can_view_products", "can_edit_products"}},
			want:  DecisionAllowed,
		},
		{
			name:  "all permissions missing one",
			state: readyState("staff", "can_view_products"),
			req:   Requirement{Permissions: []string{"can_view_products", "can_edit_products"}},
			want:  DecisionDenied,
		},
		{
			name:  "any permission held",
			state: readyState("staff", "can_view_products"),
			req:   Requirement{Permissions: []string{"can_view_products", "can_edit_products"}, Mode: ModeAny},
			want:  DecisionAllowed,
		},
		{name: "empty permission list all", state: readyState(""), req: Requirement{Permissions: []string{}}, want: DecisionAllowed},
		{name: "empty permission list any", state: readyState(""), req: Requirement{Mode: ModeAny}, want: DecisionAllowed},
		{
			name:  "role and permission both required",
			state: readyState("admin"),
			req:   Requirement{Roles: []string{"admin"}, Permissions: []string{"can_manage_roles"}},
			want:  DecisionDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.state, tt.req))
		})
	}
}

func TestLoadingBlocksEveryGuard(t *testing.T) {
	// privileged values cached in a loading state must not leak through
	st := readyState("admin", "can_edit_products")
	st.Loading = true

	assert.Equal(t, DecisionLoading, Evaluate(st, Requirement{}))
	assert.Equal(t, DecisionLoading, Evaluate(st, Requirement{Roles: []string{"admin"}}))

	guards := []Visibler{
		RoleGuard{Roles: []string{"admin"}},
		RoleGuard{Roles: []string{"admin"}, RequireAll: true, HasFallback: true},
		RoleGuard{},
		PermissionGuard{Permissions: []string{"can_edit_products"}},
		PermissionGuard{Permissions: []string{"can_edit_products"}, RequireAll: true, HasFallback: true},
		PermissionGuard{},
	}
	for _, g := range guards {
		assert.Equal(t, VisibilityBlocked, g.Visible(st), "%#v", g)
	}
}

func TestVisibility(t *testing.T) {
	staff := readyState("staff", "can_view_products")

	tests := []struct {
		name  string
		guard Visibler
		want  Visibility
	}{
		{name: "role match", guard: RoleGuard{Roles: []string{"staff", "admin"}}, want: VisibilityRender},
		{name: "role require all degenerate", guard: RoleGuard{Roles: []string{"staff", "admin"}, RequireAll: true}, want: VisibilityHidden},
		{name: "role miss with fallback", guard: RoleGuard{Roles: []string{"admin"}, HasFallback: true}, want: VisibilityFallback},
		{name: "permission any", guard: PermissionGuard{Permissions: []string{"can_edit_products", "can_view_products"}}, want: VisibilityRender},
		{name: "permission all", guard: PermissionGuard{Permissions: []string{"can_edit_products", "can_view_products"}, RequireAll: true}, want: VisibilityHidden},
		{name: "empty permissions visible", guard: PermissionGuard{RequireAll: true}, want: VisibilityRender},
		{name: "empty roles visible", guard: RoleGuard{}, want: VisibilityRender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.guard.Visible(staff))
		})
	}

	caps := Capabilities(staff, map[string]Visibler{
		"products.view": PermissionGuard{Permissions: []string{"can_view_products"}},
		"admin.panel":   RoleGuard{Roles: []string{"admin"}},
	})
	assert.Equal(t, map[string]string{"products.view": "render", "admin.panel": "hidden"}, caps)
}

type mockSessions struct {
	session *backend.Session
}

func (m mockSessions) GetSession(r *http.Request) *backend.Session {
	return m.session
}

type mockResolver struct {
	result resolver.Result
	gate   chan struct{}
}

func (m mockResolver) Resolve(ctx context.Context, userID uuid.UUID, email string) (resolver.Result, error) {
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return resolver.Result{}, ctx.Err()
		}
	}
	return m.result, nil
}

type mockStores struct {
	resolver authstate.Resolver
	mu       sync.Mutex
	stores   map[string]*authstate.Store
}

func (m *mockStores) Get(s *backend.Session) *authstate.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	if store, ok := m.stores[s.ID]; ok {
		return store
	}
	store := authstate.New(m.resolver)
	store.Init(s)
	m.stores[s.ID] = store
	return store
}

type mockRecorder struct {
	mu        sync.Mutex
	decisions []string
}

func (m *mockRecorder) ObserveGuardDecision(guard, decision string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, guard+"/"+decision)
}

func setupRouter(sess *backend.Session, r authstate.Resolver, rec Recorder) *chi.Mux {
	g := NewRouteGuard(mockSessions{session: sess}, &mockStores{resolver: r, stores: map[string]*authstate.Store{}},
		Config{WaitBudget: 50 * time.Millisecond}, WithRecorder(rec))

	protected := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, ok := StateFromContext(r.Context())
		if !ok {
			http.Error(w, "missing state", http.StatusInternalServerError)
			return
		}
		_, hasStore := StoreFromContext(r.Context())
		if !hasStore {
			http.Error(w, "missing store", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("protected:" + st.Role.Name))
	})

	router := chi.NewRouter()
	router.With(g.Require("admin", Requirement{Roles: []string{"admin"}})).Get("/admin/users", protected)
	router.With(g.Require("admin", Requirement{Roles: []string{"admin"}})).Get("/api/admin/users", protected)
	return router
}

func TestRouteGuard(t *testing.T) {
	userID := uuid.New()
	sess := &backend.Session{ID: "s1", User: backend.User{ID: userID, Email: "jane@example.com"}}
	adminResult := resolver.Result{
		User:        &resolver.UserProfile{ID: userID, FullName: "Jane"},
		Role:        &backend.Role{Name: "admin"},
		Permissions: []string{},
	}
	staffResult := adminResult
	staffResult.Role = &backend.Role{Name: "staff"}

	tests := []struct {
		name       string
		session    *backend.Session
		resolver   authstate.Resolver
		path       string
		wantStatus int
		wantBody   string
		wantHeader map[string]string
		decision   string
	}{
		{
			name:       "unauthenticated page redirects to login",
			path:       "/admin/users?page=2",
			wantStatus: http.StatusFound,
			wantHeader: map[string]string{"Location": "/login?next=%2Fadmin%2Fusers%3Fpage%3D2"},
			decision:   "admin/unauthenticated",
		},
		{
			name:       "unauthenticated api gets 401",
			path:       "/api/admin/users",
			wantStatus: http.StatusUnauthorized,
			wantBody:   "UNAUTHENTICATED",
			decision:   "admin/unauthenticated",
		},
		{
			name:       "denied page renders in place",
			session:    sess,
			resolver:   mockResolver{result: staffResult},
			path:       "/admin/users",
			wantStatus: http.StatusForbidden,
			wantBody:   "Access Denied",
			decision:   "admin/denied",
		},
		{
			name:       "denied api",
			session:    sess,
			resolver:   mockResolver{result: staffResult},
			path:       "/api/admin/users",
			wantStatus: http.StatusForbidden,
			wantBody:   "ACCESS_DENIED",
			decision:   "admin/denied",
		},
		{
			name:       "still loading blocks",
			session:    sess,
			resolver:   mockResolver{result: adminResult, gate: make(chan struct{})},
			path:       "/admin/users",
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "Loading",
			wantHeader: map[string]string{"Retry-After": "1"},
			decision:   "admin/loading",
		},
		{
			name:       "allowed",
			session:    sess,
			resolver:   mockResolver{result: adminResult},
			path:       "/admin/users",
			wantStatus: http.StatusOK,
			wantBody:   "protected:admin",
			decision:   "admin/allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &mockRecorder{}
			router := setupRouter(tt.session, tt.resolver, rec)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			if tt.wantStatus != http.StatusOK {
				assert.NotContains(t, w.Body.String(), "protected:", "protected content must not render")
			}
			for k, v := range tt.wantHeader {
				assert.Equal(t, v, w.Header().Get(k))
			}
			require.Len(t, rec.decisions, 1)
			assert.Equal(t, tt.decision, rec.decisions[0])
		})
	}
}
