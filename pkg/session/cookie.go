package session

import (
	"net/http"
	"time"

	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	"github.com/sarathmodify/admin-dashboard/pkg/tokengenerator"
)

const (
	DefaultAccessCookie  = "dash_access"
	DefaultRefreshCookie = "dash_refresh"
	DefaultMaxAge        = 7 * 24 * time.Hour
)

// CookieStorage persists session tokens in HTTP-only, strict same-site cookies
type CookieStorage struct {
	setter        tokengenerator.CookieSetter
	accessCookie  string
	refreshCookie string
	maxAge        time.Duration
	now           func() time.Time
}

// CookieConfig configures CookieStorage
type CookieConfig struct {
	AccessCookie  string
	RefreshCookie string
	MaxAge        time.Duration
	Secure        bool
}

// NewCookieStorage creates the cookie adapter. Zero values fall back to the defaults.
func NewCookieStorage(cfg CookieConfig) *CookieStorage {
	if cfg.AccessCookie == "" {
		cfg.AccessCookie = DefaultAccessCookie
	}
	if cfg.RefreshCookie == "" {
		cfg.RefreshCookie = DefaultRefreshCookie
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	return &CookieStorage{
		setter:        tokengenerator.NewCookieSetter(cfg.Secure),
		accessCookie:  cfg.AccessCookie,
		refreshCookie: cfg.RefreshCookie,
		maxAge:        cfg.MaxAge,
		now:           time.Now,
	}
}

// Set writes both tokens of s
func (c *CookieStorage) Set(w http.ResponseWriter, s *backend.Session) {
	expire := c.now().Add(c.maxAge)
	c.setter.SetCookie(w, c.accessCookie, s.AccessToken, expire)
	if s.RefreshToken != "" {
		c.setter.SetCookie(w, c.refreshCookie, s.RefreshToken, expire)
	}
}

// AccessToken returns the access token cookie value, or ""
func (c *CookieStorage) AccessToken(r *http.Request) string {
	return cookieValue(r, c.accessCookie)
}

// RefreshToken returns the refresh token cookie value, or ""
func (c *CookieStorage) RefreshToken(r *http.Request) string {
	return cookieValue(r, c.refreshCookie)
}

// Clear expires both cookies
func (c *CookieStorage) Clear(w http.ResponseWriter) {
	c.setter.ClearCookie(w, c.accessCookie)
	c.setter.ClearCookie(w, c.refreshCookie)
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
