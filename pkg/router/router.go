package router

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/sarathmodify/admin-dashboard/pkg/admin"
	"github.com/sarathmodify/admin-dashboard/pkg/audit"
	"github.com/sarathmodify/admin-dashboard/pkg/authstate"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	"github.com/sarathmodify/admin-dashboard/pkg/backend/memory"
	"github.com/sarathmodify/admin-dashboard/pkg/config"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
	"github.com/sarathmodify/admin-dashboard/pkg/guard"
	"github.com/sarathmodify/admin-dashboard/pkg/metrics"
	"github.com/sarathmodify/admin-dashboard/pkg/permission"
	"github.com/sarathmodify/admin-dashboard/pkg/profile"
	"github.com/sarathmodify/admin-dashboard/pkg/ratelimit"
	"github.com/sarathmodify/admin-dashboard/pkg/resolver"
	"github.com/sarathmodify/admin-dashboard/pkg/session"
)

// Prefixes are the mount points of the route groups
type Prefixes struct {
	Auth    string
	API     string
	Admin   string
	Profile string
	Storage string
}

// DefaultPrefixes returns the standard mount points
func DefaultPrefixes() Prefixes {
	return Prefixes{
		Auth:    "/auth",
		API:     "/api",
		Admin:   "/api/admin",
		Profile: "/api/profile",
		Storage: "/storage",
	}
}

// Config holds all the dependencies and handlers needed to setup routes
type Config struct {
	Prefixes Prefixes

	SessionHandle session.Handle
	AdminHandle   *admin.Handle
	ProfileHandle profile.Handle

	// AuditSink receives admin mutations. Nil logs them with slog.
	AuditSink audit.Sink

	Sessions *session.Provider
	Stores   *authstate.Registry
	Guard    guard.Config

	// AdminRoles is the role allow-list of the admin area
	AdminRoles []string
	// Capabilities are the named visibility guards reported by /api/me/capabilities
	Capabilities map[string]guard.Visibler

	TokenAuth *jwtauth.JWTAuth
	// APIKey, when set, must be presented in the apikey header on every API request
	APIKey string

	SignInLimit  *ratelimit.Config
	RefreshLimit *ratelimit.Config
	// TrustProxy takes client IPs from forwarding headers
	TrustProxy bool
	// APILimit is nil when API rate limiting is disabled
	APILimit *ratelimit.Config

	Metrics     *metrics.Metrics
	Diagnostics func() config.Report

	// Files serves stored objects when the memory storage backend is used
	Files *memory.Storage
}

// DefaultCapabilities are the named UI guards of the dashboard navigation
func DefaultCapabilities() map[string]guard.Visibler {
	return map[string]guard.Visibler{
		"admin_nav":     guard.RoleGuard{Roles: []string{permission.RoleAdmin}},
		"manager_tools": guard.RoleGuard{Roles: []string{permission.RoleAdmin, permission.RoleManager}},
		"view_products": guard.PermissionGuard{Permissions: []string{"can_view_products"}},
		"edit_products": guard.PermissionGuard{Permissions: []string{"can_edit_products"}},
		"view_orders":   guard.PermissionGuard{Permissions: []string{"can_view_orders"}},
		"manage_users":  guard.PermissionGuard{Permissions: []string{"can_manage_users", "can_manage_roles"}, HasFallback: true},
	}
}

// SetupRoutes mounts all dashboard routes on the provided router
func SetupRoutes(router chi.Router, cfg Config) {
	if cfg.Prefixes == (Prefixes{}) {
		cfg.Prefixes = DefaultPrefixes()
	}
	if len(cfg.AdminRoles) == 0 {
		cfg.AdminRoles = config.DefaultAdminRoles
	}
	if cfg.Capabilities == nil {
		cfg.Capabilities = DefaultCapabilities()
	}

	router.Group(func(router chi.Router) {
		if cfg.TrustProxy {
			router.Use(middleware.RealIP)
		}
		var guardOpts []guard.Option
		if cfg.Metrics != nil {
			router.Use(cfg.Metrics.Middleware)
			router.Handle("/metrics", cfg.Metrics.Handler())
			guardOpts = append(guardOpts, guard.WithRecorder(cfg.Metrics))
		}
		mountRoutes(router, cfg, guard.NewRouteGuard(cfg.Sessions, cfg.Stores, cfg.Guard, guardOpts...))
	})
}

func mountRoutes(router chi.Router, cfg Config, rg *guard.RouteGuard) {
	adminOnly := rg.Require("admin", guard.Requirement{Roles: cfg.AdminRoles})

	if cfg.Diagnostics != nil {
		router.Get(cfg.Prefixes.API+"/diagnostics", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, cfg.Diagnostics())
		})
	}

	if cfg.Files != nil {
		router.Get(cfg.Prefixes.Storage+"/*", serveFile(cfg.Files))
	}

	// Mount public routes (no session required)
	router.Route(cfg.Prefixes.Auth, func(r chi.Router) {
		r.Use(RequireAPIKey(cfg.APIKey))
		cfg.SessionHandle.WithLimits(limiter(cfg.SignInLimit), limiter(cfg.RefreshLimit)).Routes(r)
	})

	// Mount session routes
	router.Group(func(r chi.Router) {
		if cfg.TokenAuth != nil {
			r.Use(jwtauth.Verify(cfg.TokenAuth, cfg.Sessions.TokenFinders()...))
		}
		r.Use(RequireAPIKey(cfg.APIKey))
		if cfg.APILimit != nil {
			r.Use(limiter(cfg.APILimit))
		}

		r.Group(func(r chi.Router) {
			r.Use(rg.Authenticated())
			r.Get(cfg.Prefixes.API+"/me", handleMe)
			r.Get(cfg.Prefixes.API+"/me/capabilities", handleCapabilities(cfg.Capabilities))
			r.Route(cfg.Prefixes.Profile, cfg.ProfileHandle.Routes)
		})

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Use(audit.NewMiddleware(audit.Config{Sink: cfg.AuditSink}).Handler)
			r.Route(cfg.Prefixes.Admin, cfg.AdminHandle.Routes)
		})
	})

	// Mount pages
	pages := newPages(cfg.Capabilities)
	router.Get(loginPath(cfg.Guard), pages.Login)
	router.Group(func(r chi.Router) {
		r.Use(rg.Authenticated())
		r.Get("/", pages.Dashboard)
		r.Get("/settings", pages.Settings)
	})
	router.Group(func(r chi.Router) {
		r.Use(rg.Require("manager", guard.Requirement{Roles: []string{permission.RoleAdmin, permission.RoleManager}}))
		r.Get("/reports", pages.Reports)
	})
	router.Group(func(r chi.Router) {
		r.Use(adminOnly)
		r.Get("/admin", pages.Admin)
	})
}

func limiter(cfg *ratelimit.Config) func(http.Handler) http.Handler {
	if cfg == nil {
		return nil
	}
	return ratelimit.NewMiddleware(cfg).Handler
}

// RequireAPIKey rejects requests whose apikey header does not match key.
// An empty key disables the check.
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("apikey")
			if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				apperrors.Render(w, r, apperrors.Unauthenticated("invalid API key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MeResponse is the resolved auth state of the caller
type MeResponse struct {
	User        *resolver.UserProfile `json:"user"`
	Role        *backend.Role         `json:"role"`
	Permissions []string              `json:"permissions"`
	Phase       string                `json:"phase"`
	Loading     bool                  `json:"loading"`
	IsAdmin     bool                  `json:"is_admin"`
}

func handleMe(w http.ResponseWriter, r *http.Request) {
	st, ok := guard.StateFromContext(r.Context())
	if !ok {
		apperrors.Render(w, r, apperrors.Unauthenticated("sign in required"))
		return
	}
	render.JSON(w, r, MeResponse{
		User:        st.User,
		Role:        st.Role,
		Permissions: st.Permissions,
		Phase:       st.Phase.String(),
		Loading:     st.Loading,
		IsAdmin:     permission.For(st).IsAdmin(),
	})
}

func handleCapabilities(guards map[string]guard.Visibler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := guard.StateFromContext(r.Context())
		if !ok {
			apperrors.Render(w, r, apperrors.Unauthenticated("sign in required"))
			return
		}
		render.JSON(w, r, guard.Capabilities(st, guards))
	}
}

func serveFile(files *memory.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimLeft(chi.URLParam(r, "*"), "/")
		body, contentType, ok := files.Open(path)
		if !ok {
			http.NotFound(w, r)
			return
		}
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		if _, err := io.Copy(w, body); err != nil {
			slog.Warn("Failed writing stored object", "path", path, "err", err)
		}
	}
}
