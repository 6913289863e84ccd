package session

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
)

// SignInRequest is the body of POST /auth/signin
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Bind implements render.Binder
func (req *SignInRequest) Bind(r *http.Request) error {
	if req.Email == "" {
		return apperrors.Validation("email", "is required")
	}
	if req.Password == "" {
		return apperrors.Validation("password", "is required")
	}
	return nil
}

// SessionResponse describes a session without its tokens
type SessionResponse struct {
	ID        string       `json:"id"`
	User      backend.User `json:"user"`
	ExpiresAt string       `json:"expires_at"`
}

func newSessionResponse(s *backend.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		User:      s.User,
		ExpiresAt: s.ExpiresAt.UTC().Format(http.TimeFormat),
	}
}

// Handle serves the sign-in, sign-out and refresh endpoints
type Handle struct {
	provider     *Provider
	signInLimit  func(http.Handler) http.Handler
	refreshLimit func(http.Handler) http.Handler
}

// NewHandle creates a session handle
func NewHandle(provider *Provider) Handle {
	return Handle{provider: provider}
}

// WithLimits returns a copy of h whose sign-in and refresh routes are wrapped by
// the given middlewares. A nil middleware leaves its route unwrapped.
func (h Handle) WithLimits(signIn, refresh func(http.Handler) http.Handler) Handle {
	h.signInLimit = signIn
	h.refreshLimit = refresh
	return h
}

// Routes mounts the endpoints
func (h Handle) Routes(r chi.Router) {
	r.With(optional(h.signInLimit)...).Post("/signin", h.SignIn)
	r.Post("/signout", h.SignOut)
	r.With(optional(h.refreshLimit)...).Post("/refresh", h.Refresh)
}

func optional(mw func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	if mw == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{mw}
}

// SignIn handles POST /auth/signin
func (h Handle) SignIn(w http.ResponseWriter, r *http.Request) {
	req := &SignInRequest{}
	if err := render.Bind(r, req); err != nil {
		if apperrors.KindOf(err) == apperrors.KindUnknown {
			err = apperrors.BadRequest(err)
		}
		apperrors.Render(w, r, err)
		return
	}

	s, err := h.provider.SignIn(w, r, req.Email, req.Password)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, newSessionResponse(s))
}

// SignOut handles POST /auth/signout
func (h Handle) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.provider.SignOut(w, r); err != nil {
		apperrors.Render(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Refresh handles POST /auth/refresh
func (h Handle) Refresh(w http.ResponseWriter, r *http.Request) {
	s, err := h.provider.Refresh(w, r)
	if err != nil {
		apperrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, newSessionResponse(s))
}
