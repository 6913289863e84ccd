package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/sarathmodify/admin-dashboard/pkg/auth"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	"github.com/sarathmodify/admin-dashboard/pkg/tokengenerator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func setupProvider(t *testing.T) (*Provider, *auth.Service) {
	t.Helper()
	tokens := tokengenerator.NewJwtTokenGenerator(testSecret, "admin-dashboard", "dashboard")
	svc := auth.NewService(auth.NewMemoryCredentialStore(), tokens)
	_, err := svc.SignUp(context.Background(), "jane@example.com", "secret123")
	require.NoError(t, err)

	provider := NewProvider(svc, NewCookieStorage(CookieConfig{}),
		WithTokenAuth(jwtauth.New("HS256", []byte(testSecret), nil)),
	)
	return provider, svc
}

// withCookies copies the Set-Cookie headers of rec onto a new request
func withCookies(rec *httptest.ResponseRecorder, method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			req.AddCookie(c)
		}
	}
	return req
}

func TestProvider_GetSession(t *testing.T) {
	provider, _ := setupProvider(t)

	t.Run("NoToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.Nil(t, provider.GetSession(req))
	})

	t.Run("GarbageTokenIsNil", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		assert.Nil(t, provider.GetSession(req))
	})

	t.Run("CookieSession", func(t *testing.T) {
		rec := httptest.NewRecorder()
		signIn := httptest.NewRequest(http.MethodPost, "/", nil)
		s, err := provider.SignIn(rec, signIn, "jane@example.com", "secret123")
		require.NoError(t, err)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 2)
		for _, c := range cookies {
			assert.True(t, c.HttpOnly)
			assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
		}

		got := provider.GetSession(withCookies(rec, http.MethodGet, "/"))
		require.NotNil(t, got)
		assert.Equal(t, s.ID, got.ID)
		assert.Equal(t, "jane@example.com", got.User.Email)
	})

	t.Run("BearerSession", func(t *testing.T) {
		s, err := provider.auth.SignInWithPassword(context.Background(), "jane@example.com", "secret123")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+s.AccessToken)
		got := provider.GetSession(req)
		require.NotNil(t, got)
		assert.Equal(t, s.ID, got.ID)
	})
}

func TestProvider_SignOutAndRefresh(t *testing.T) {
	provider, _ := setupProvider(t)

	rec := httptest.NewRecorder()
	s, err := provider.SignIn(rec, httptest.NewRequest(http.MethodPost, "/", nil), "jane@example.com", "secret123")
	require.NoError(t, err)

	refreshRec := httptest.NewRecorder()
	refreshed, err := provider.Refresh(refreshRec, withCookies(rec, http.MethodPost, "/"))
	require.NoError(t, err)
	assert.Equal(t, s.ID, refreshed.ID)

	outRec := httptest.NewRecorder()
	signedIn := withCookies(refreshRec, http.MethodPost, "/")
	require.NoError(t, provider.SignOut(outRec, signedIn))
	for _, c := range outRec.Result().Cookies() {
		assert.Equal(t, -1, c.MaxAge, "cookie %s should be cleared", c.Name)
	}
	assert.Nil(t, provider.GetSession(signedIn))

	t.Run("RefreshWithoutCookie", func(t *testing.T) {
		_, err := provider.Refresh(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Error(t, err)
	})
}

func TestProvider_OnAuthStateChange(t *testing.T) {
	provider, svc := setupProvider(t)

	var events []backend.AuthEvent
	sub := provider.OnAuthStateChange(func(event backend.AuthEvent, s *backend.Session) {
		events = append(events, event)
	})

	_, err := svc.SignInWithPassword(context.Background(), "jane@example.com", "secret123")
	require.NoError(t, err)

	sub.Unsubscribe()
	sub.Unsubscribe()

	_, err = svc.SignInWithPassword(context.Background(), "jane@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, []backend.AuthEvent{backend.EventSignedIn}, events)
}

func TestHandle(t *testing.T) {
	provider, _ := setupProvider(t)
	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		NewHandle(provider).Routes(r)
	})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{name: "valid", body: `{"email":"jane@example.com","password":"secret123"}`, wantStatus: http.StatusOK, wantBody: "jane@example.com"},
		{name: "wrong password", body: `{"email":"jane@example.com","password":"wrongpass"}`, wantStatus: http.StatusUnauthorized, wantBody: "UNAUTHENTICATED"},
		{name: "missing email", body: `{"password":"secret123"}`, wantStatus: http.StatusBadRequest, wantBody: `"field":"email"`},
		{name: "malformed json", body: `{`, wantStatus: http.StatusBadRequest, wantBody: "VALIDATION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/signin", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.NotContains(t, rec.Body.String(), "access_token")
		})
	}

	t.Run("SignOutWithoutSession", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/signout", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
