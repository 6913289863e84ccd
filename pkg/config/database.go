package config

import (
	"fmt"
	"net/url"
)

// DatabaseConfig holds PostgreSQL settings, used when PERSISTENCE=postgres
type DatabaseConfig struct {
	Host     string `env:"DASH_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"DASH_PG_PORT" env-default:"5432"`
	Database string `env:"DASH_PG_DATABASE" env-default:"dashboard_db"`
	User     string `env:"DASH_PG_USER" env-default:"dashboard"`
	Password string `env:"DASH_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"DASH_PG_SCHEMA" env-default:"public"`
	SSLMode  string `env:"DASH_PG_SSLMODE" env-default:"disable"`
}

// ToDatabaseURL converts the config to a PostgreSQL connection URL
func (d DatabaseConfig) ToDatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Database,
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	q.Set("search_path", d.Schema+",public")
	u.RawQuery = q.Encode()
	return u.String()
}

func (d DatabaseConfig) validate() ValidationErrors {
	return CollectErrors(
		RequireNonEmpty("DASH_PG_HOST", d.Host),
		RequireValidPort("DASH_PG_PORT", d.Port),
		RequireNonEmpty("DASH_PG_DATABASE", d.Database),
		RequireNonEmpty("DASH_PG_USER", d.User),
		RequireOneOf("DASH_PG_SSLMODE", d.SSLMode, []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}),
	)
}
