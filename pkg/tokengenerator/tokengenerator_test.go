package tokengenerator

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJwtTokenGenerator(t *testing.T) {
	gen := NewJwtTokenGenerator("test-secret", "admin-dashboard", "dashboard")

	t.Run("RoundTrip", func(t *testing.T) {
		token, expiresAt, err := gen.GenerateToken(AccessToken, "user-1", "jane@example.com", "sess-1", time.Hour)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

		claims, err := gen.ParseToken(token, AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.Subject)
		assert.Equal(t, "jane@example.com", claims.Email)
		assert.Equal(t, "sess-1", claims.SessionID)
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("IssueReturnsTokenID", func(t *testing.T) {
		issued, err := gen.Issue(RefreshToken, "user-1", "", "sess-1", time.Hour)
		require.NoError(t, err)
		claims, err := gen.ParseToken(issued.Token, RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, claims.ID, issued.ID)
		assert.True(t, claims.ExpiresAt.Time.Equal(issued.ExpiresAt))
	})

	t.Run("WrongType", func(t *testing.T) {
		token, _, err := gen.GenerateToken(RefreshToken, "user-1", "", "sess-1", time.Hour)
		require.NoError(t, err)
		_, err = gen.ParseToken(token, AccessToken)
		assert.Error(t, err)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewJwtTokenGenerator("other", "admin-dashboard", "dashboard")
		token, _, err := other.GenerateToken(AccessToken, "user-1", "", "sess-1", time.Hour)
		require.NoError(t, err)
		_, err = gen.ParseToken(token, AccessToken)
		assert.Error(t, err)
	})

	t.Run("Expired", func(t *testing.T) {
		past := NewJwtTokenGenerator("test-secret", "admin-dashboard", "dashboard")
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _, err := past.GenerateToken(AccessToken, "user-1", "", "sess-1", time.Hour)
		require.NoError(t, err)
		_, err = gen.ParseToken(token, AccessToken)
		assert.Error(t, err)
	})
}

func TestCookieSetter(t *testing.T) {
	setter := NewCookieSetter(true)
	rec := httptest.NewRecorder()
	setter.SetCookie(rec, "dash_session", "abc", time.Now().Add(time.Hour))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "abc", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)

	rec = httptest.NewRecorder()
	setter.ClearCookie(rec, "dash_session")
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
