package config

import "time"

// JWTConfig holds token signing settings for the dashboard's auth service
type JWTConfig struct {
	Secret             string        `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	AccessTokenExpiry  time.Duration `env:"ACCESS_TOKEN_EXPIRY" env-default:"15m"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" env-default:"168h"`
	Issuer             string        `env:"JWT_ISSUER" env-default:"admin-dashboard"`
	Audience           string        `env:"JWT_AUDIENCE" env-default:"admin-dashboard"`
}

const defaultJWTSecret = "very-secure-jwt-secret"

// UsesDefaultSecret reports whether the built-in development secret is in use
func (j JWTConfig) UsesDefaultSecret() bool {
	return j.Secret == defaultJWTSecret
}

func (j JWTConfig) validate(env Environment) ValidationErrors {
	errs := CollectErrors(
		RequireNonEmpty("JWT_SECRET", j.Secret),
		RequirePositiveDuration("ACCESS_TOKEN_EXPIRY", j.AccessTokenExpiry),
		RequirePositiveDuration("REFRESH_TOKEN_EXPIRY", j.RefreshTokenExpiry),
		RequireNonEmpty("JWT_ISSUER", j.Issuer),
	)
	if j.RefreshTokenExpiry > 0 && j.RefreshTokenExpiry < j.AccessTokenExpiry {
		errs = append(errs, ValidationError{Field: "REFRESH_TOKEN_EXPIRY", Message: "must not be shorter than ACCESS_TOKEN_EXPIRY"})
	}
	if env == Production && j.UsesDefaultSecret() {
		errs = append(errs, ValidationError{Field: "JWT_SECRET", Message: "must be changed in production"})
	}
	return errs
}
