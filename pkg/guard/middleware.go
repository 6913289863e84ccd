package guard

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/sarathmodify/admin-dashboard/pkg/authstate"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
)

// SessionSource looks up the session of a request
type SessionSource interface {
	GetSession(r *http.Request) *backend.Session
}

// StoreSource returns the auth state store of a session
type StoreSource interface {
	Get(s *backend.Session) *authstate.Store
}

// Recorder observes guard decisions
type Recorder interface {
	ObserveGuardDecision(guard, decision string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveGuardDecision(string, string) {}

// Config configures the route guard
type Config struct {
	LoginPath  string
	WaitBudget time.Duration
	RetryAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		LoginPath:  "/login",
		WaitBudget: 2 * time.Second,
		RetryAfter: time.Second,
	}
}

// RouteGuard protects routes behind a session and a Requirement
type RouteGuard struct {
	sessions SessionSource
	stores   StoreSource
	cfg      Config
	recorder Recorder
}

type Option func(*RouteGuard)

func WithRecorder(rec Recorder) Option {
	return func(g *RouteGuard) {
		if rec != nil {
			g.recorder = rec
		}
	}
}

func NewRouteGuard(sessions SessionSource, stores StoreSource, cfg Config, opts ...Option) *RouteGuard {
	def := DefaultConfig()
	if cfg.LoginPath == "" {
		cfg.LoginPath = def.LoginPath
	}
	if cfg.WaitBudget <= 0 {
		cfg.WaitBudget = def.WaitBudget
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = def.RetryAfter
	}
	g := &RouteGuard{sessions: sessions, stores: stores, cfg: cfg, recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticated requires only an active session
func (g *RouteGuard) Authenticated() func(http.Handler) http.Handler {
	return g.Require("authenticated", Requirement{})
}

// Require returns middleware enforcing req. name labels the guard in metrics and logs.
//
// Unauthenticated requests are redirected to the login page, or get 401 for
// API requests. Authenticated but unauthorized requests get an access-denied
// response in place. A store still loading after the wait budget yields 503.
func (g *RouteGuard) Require(name string, req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var st authstate.State
			var store *authstate.Store

			sess := g.sessions.GetSession(r)
			if sess == nil {
				st = authstate.State{Phase: authstate.PhaseLoggedOut}
			} else {
				store = g.stores.Get(sess)
				ctx, cancel := context.WithTimeout(r.Context(), g.cfg.WaitBudget)
				st = store.Wait(ctx)
				cancel()
			}

			decision := Evaluate(st, req)
			g.recorder.ObserveGuardDecision(name, decision.String())

			switch decision {
			case DecisionAllowed:
				ctx := WithState(r.Context(), st)
				ctx = WithStore(ctx, store)
				next.ServeHTTP(w, r.WithContext(ctx))
			case DecisionUnauthenticated:
				g.unauthenticated(w, r)
			case DecisionLoading:
				g.loading(w, r)
			case DecisionDenied:
				slog.Warn("Access denied", "guard", name, "userId", sess.User.ID, "role", roleName(st))
				g.denied(w, r)
			}
		})
	}
}

func (g *RouteGuard) unauthenticated(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		apperrors.Render(w, r, apperrors.Unauthenticated("sign in required"))
		return
	}
	target := g.cfg.LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusFound)
}

func (g *RouteGuard) loading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", strconv.Itoa(int(g.cfg.RetryAfter.Round(time.Second)/time.Second)))
	render.Status(r, http.StatusServiceUnavailable)
	if wantsJSON(r) {
		render.JSON(w, r, map[string]any{"loading": true})
		return
	}
	render.HTML(w, r, loadingView)
}

func (g *RouteGuard) denied(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		apperrors.Render(w, r, apperrors.New(apperrors.KindAccessDenied, "you do not have access to this page"))
		return
	}
	render.Status(r, http.StatusForbidden)
	render.HTML(w, r, fmt.Sprintf(deniedView, html.EscapeString(r.URL.Path)))
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") || strings.Contains(r.Header.Get("Accept"), "application/json")
}

func roleName(st authstate.State) string {
	if st.Role == nil {
		return ""
	}
	return st.Role.Name
}

const loadingView = `<!doctype html><html><head><meta http-equiv="refresh" content="1"></head><body><p>Loading...</p></body></html>`

const deniedView = `<!doctype html><html><body><h1>Access Denied</h1><p>You do not have permission to view %s.</p></body></html>`
