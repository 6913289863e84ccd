package config

import "github.com/sarathmodify/admin-dashboard/pkg/ratelimit"

// RateLimitConfig contains rate limiting settings
type RateLimitConfig struct {
	// SignInPerMinute is the per-IP budget of password sign-in attempts
	SignInPerMinute int `env:"RATE_LIMIT_SIGNIN_PER_MINUTE" env-default:"10"`
	// RefreshPerMinute is the per-IP budget of token refreshes
	RefreshPerMinute int `env:"RATE_LIMIT_REFRESH_PER_MINUTE" env-default:"30"`

	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxy bool `env:"TRUST_PROXY_HEADERS" env-default:"false"`

	// API limits apply to every /api request
	APIEnabled         bool    `env:"RATE_LIMIT_API_ENABLED" env-default:"true"`
	APIPerIPCapacity   int     `env:"RATE_LIMIT_API_PER_IP_CAPACITY" env-default:"100"`
	APIPerIPRefill     float64 `env:"RATE_LIMIT_API_PER_IP_REFILL" env-default:"1.67"`
	APIPerUserCapacity int     `env:"RATE_LIMIT_API_PER_USER_CAPACITY" env-default:"200"`
	APIPerUserRefill   float64 `env:"RATE_LIMIT_API_PER_USER_REFILL" env-default:"3.33"`
}

// SignIn returns the middleware config for the sign-in endpoint
func (c RateLimitConfig) SignIn() *ratelimit.Config {
	return ratelimit.SignInConfig(c.SignInPerMinute)
}

// Refresh returns the middleware config for the token refresh endpoint
func (c RateLimitConfig) Refresh() *ratelimit.Config {
	return ratelimit.PerIPConfig(c.RefreshPerMinute)
}

// API returns the middleware config for the JSON API, nil when disabled
func (c RateLimitConfig) API() *ratelimit.Config {
	if !c.APIEnabled {
		return nil
	}
	cfg := ratelimit.DefaultConfig()
	cfg.PerIPCapacity = c.APIPerIPCapacity
	cfg.PerIPRefillRate = c.APIPerIPRefill
	cfg.PerUserCapacity = c.APIPerUserCapacity
	cfg.PerUserRefillRate = c.APIPerUserRefill
	return cfg
}

func (c RateLimitConfig) validate() ValidationErrors {
	errs := CollectErrors(
		RequirePositive("RATE_LIMIT_SIGNIN_PER_MINUTE", c.SignInPerMinute),
		RequirePositive("RATE_LIMIT_REFRESH_PER_MINUTE", c.RefreshPerMinute),
	)
	if c.APIEnabled {
		errs = append(errs, CollectErrors(
			RequirePositive("RATE_LIMIT_API_PER_IP_CAPACITY", c.APIPerIPCapacity),
			RequirePositive("RATE_LIMIT_API_PER_USER_CAPACITY", c.APIPerUserCapacity),
		)...)
	}
	return errs
}
