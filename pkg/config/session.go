package config

import (
	"time"

	"github.com/sarathmodify/admin-dashboard/pkg/authstate"
	"github.com/sarathmodify/admin-dashboard/pkg/session"
)

// SessionConfig controls the session cookies and the per-session auth state registry
type SessionConfig struct {
	AccessCookie  string        `env:"SESSION_ACCESS_COOKIE" env-default:"dash_access"`
	RefreshCookie string        `env:"SESSION_REFRESH_COOKIE" env-default:"dash_refresh"`
	MaxAge        time.Duration `env:"SESSION_MAX_AGE" env-default:"168h"`
	CookieSecure  bool          `env:"COOKIE_SECURE" env-default:"false"`

	// MaxSessions bounds the number of live auth state stores
	MaxSessions int           `env:"SESSION_MAX_LIVE" env-default:"1000"`
	IdleTTL     time.Duration `env:"SESSION_IDLE_TTL" env-default:"30m"`
}

// ToCookieConfig converts the config for the session cookie storage.
// Cookies are always Secure in production.
func (s SessionConfig) ToCookieConfig(env Environment) session.CookieConfig {
	return session.CookieConfig{
		AccessCookie:  s.AccessCookie,
		RefreshCookie: s.RefreshCookie,
		MaxAge:        s.MaxAge,
		Secure:        s.CookieSecure || env == Production,
	}
}

// ToRegistryConfig converts the config for the auth state registry
func (s SessionConfig) ToRegistryConfig() authstate.RegistryConfig {
	return authstate.RegistryConfig{
		MaxSessions: s.MaxSessions,
		IdleTTL:     s.IdleTTL,
	}
}

func (s SessionConfig) validate() ValidationErrors {
	return CollectErrors(
		RequireNonEmpty("SESSION_ACCESS_COOKIE", s.AccessCookie),
		RequireNonEmpty("SESSION_REFRESH_COOKIE", s.RefreshCookie),
		RequirePositiveDuration("SESSION_MAX_AGE", s.MaxAge),
		RequirePositive("SESSION_MAX_LIVE", s.MaxSessions),
		RequirePositiveDuration("SESSION_IDLE_TTL", s.IdleTTL),
	)
}
