// Package config loads the dashboard server configuration from the environment.
//
// Every setting is a tagged struct field read by cleanenv:
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	if err := cfg.Validate(); err != nil {
//		slog.Warn("Invalid configuration", "err", err)
//	}
//
// Sections convert themselves into the option types of the packages they
// configure (ToCookieConfig, ToRegistryConfig, ToResolverConfig, ToS3Config,
// SignIn, API), so cmd wiring stays declarative.
//
// # Diagnostics
//
// A missing backend URL or key must not crash the server. Diagnose reports
// which settings are present, missing or invalid without revealing their
// values, and the router serves that report at /api/diagnostics.
//
// # Environments
//
// APP_ENV selects development, staging, production or test. Production
// forces Secure cookies and rejects the built-in JWT secret.
package config
