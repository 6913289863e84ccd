// Package session tracks the browser's authenticated session on top of the
// backend auth capability and the cookie storage adapter.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/jwtauth/v5"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
)

// Subscription is a registered auth listener
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe releases the listener. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Provider obtains and tracks sessions for incoming requests
type Provider struct {
	auth      backend.Auth
	cookies   *CookieStorage
	tokenAuth *jwtauth.JWTAuth
}

// Option configures the Provider
type Option func(*Provider)

// WithTokenAuth enables local signature and expiry checks before asking the backend
func WithTokenAuth(ja *jwtauth.JWTAuth) Option {
	return func(p *Provider) {
		p.tokenAuth = ja
	}
}

// NewProvider creates a session provider
func NewProvider(auth backend.Auth, cookies *CookieStorage, opts ...Option) *Provider {
	p := &Provider{
		auth:    auth,
		cookies: cookies,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Token returns the access token carried by r: the session cookie first, then
// the Authorization bearer header
func (p *Provider) Token(r *http.Request) string {
	if token := p.cookies.AccessToken(r); token != "" {
		return token
	}
	return jwtauth.TokenFromHeader(r)
}

// TokenFinders returns the lookups for jwtauth.Verify in the order Token uses
func (p *Provider) TokenFinders() []func(r *http.Request) string {
	return []func(r *http.Request) string{p.cookies.AccessToken, jwtauth.TokenFromHeader}
}

// GetSession returns the current session of r, or nil. Backend failures are
// logged and reported as no session.
func (p *Provider) GetSession(r *http.Request) *backend.Session {
	token := p.Token(r)
	if token == "" {
		return nil
	}
	return p.SessionForToken(r.Context(), token)
}

// SessionForToken is GetSession for a bare token
func (p *Provider) SessionForToken(ctx context.Context, token string) *backend.Session {
	if p.tokenAuth != nil {
		if _, err := jwtauth.VerifyToken(p.tokenAuth, token); err != nil {
			slog.Debug("Session token rejected locally", "err", err)
			return nil
		}
	}
	s, err := p.auth.GetSession(ctx, token)
	if err != nil {
		slog.Debug("No session", "kind", apperrors.KindOf(err), "err", err)
		return nil
	}
	return s
}

// OnAuthStateChange subscribes fn to sign-in, sign-out, refresh and user update events
func (p *Provider) OnAuthStateChange(fn backend.AuthListener) *Subscription {
	return &Subscription{cancel: p.auth.OnAuthStateChange(fn)}
}

// SignIn verifies the credentials and stores the new session in cookies
func (p *Provider) SignIn(w http.ResponseWriter, r *http.Request, email, password string) (*backend.Session, error) {
	s, err := p.auth.SignInWithPassword(r.Context(), email, password)
	if err != nil {
		return nil, err
	}
	p.cookies.Set(w, s)
	return s, nil
}

// SignOut ends the session of r. Cookies are cleared even when the backend call fails.
func (p *Provider) SignOut(w http.ResponseWriter, r *http.Request) error {
	defer p.cookies.Clear(w)

	token := p.Token(r)
	if token == "" {
		return nil
	}
	if err := p.auth.SignOut(r.Context(), token); err != nil {
		if apperrors.Is(err, apperrors.KindUnauthenticated) {
			return nil
		}
		slog.Error("Failed to sign out", "err", err)
		return err
	}
	return nil
}

// Refresh rotates the session tokens using the refresh cookie
func (p *Provider) Refresh(w http.ResponseWriter, r *http.Request) (*backend.Session, error) {
	refresh := p.cookies.RefreshToken(r)
	if refresh == "" {
		return nil, apperrors.Unauthenticated("no refresh token")
	}
	s, err := p.auth.Refresh(r.Context(), refresh)
	if err != nil {
		if apperrors.Is(err, apperrors.KindUnauthenticated) {
			p.cookies.Clear(w)
		}
		return nil, err
	}
	p.cookies.Set(w, s)
	return s, nil
}

// UpdatePassword changes the password of the session user
func (p *Provider) UpdatePassword(ctx context.Context, token, password string) error {
	return p.auth.UpdateUser(ctx, token, backend.UserAttributes{Password: password})
}
