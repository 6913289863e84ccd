package config

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/sarathmodify/admin-dashboard/pkg/backend/s3store"
	"github.com/sarathmodify/admin-dashboard/pkg/resolver"
)

const (
	PersistenceMemory   = "memory"
	PersistencePostgres = "postgres"

	StorageMemory = "memory"
	StorageS3     = "s3"
)

// BackendConfig identifies the backend the dashboard talks to.
// URL is the public base URL of the backend, used for stored object URLs.
// APIKey is the public key clients present on every API request; empty disables the check.
type BackendConfig struct {
	URL    string `env:"BACKEND_URL"`
	APIKey string `env:"BACKEND_ANON_KEY"`
}

// BaseURL returns URL without a trailing slash, falling back to fallback
func (b BackendConfig) BaseURL(fallback string) string {
	if b.URL == "" {
		return fallback
	}
	u, err := url.Parse(b.URL)
	if err != nil {
		return fallback
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// StorageConfig holds object storage settings, used when STORAGE_DRIVER=s3
type StorageConfig struct {
	Driver        string `env:"STORAGE_DRIVER" env-default:"memory"`
	Bucket        string `env:"S3_BUCKET" env-default:"avatars"`
	Region        string `env:"S3_REGION" env-default:"us-east-1"`
	Endpoint      string `env:"S3_ENDPOINT"`
	AccessKey     string `env:"S3_ACCESS_KEY_ID"`
	SecretKey     string `env:"S3_SECRET_ACCESS_KEY"`
	UsePathStyle  bool   `env:"S3_USE_PATH_STYLE" env-default:"false"`
	PublicBaseURL string `env:"S3_PUBLIC_BASE_URL"`
}

// ToS3Config converts the config for the S3 object store
func (s StorageConfig) ToS3Config() s3store.Config {
	return s3store.Config{
		Region:        s.Region,
		Endpoint:      s.Endpoint,
		Bucket:        s.Bucket,
		AccessKey:     s.AccessKey,
		SecretKey:     s.SecretKey,
		UsePathStyle:  s.UsePathStyle,
		PublicBaseURL: s.PublicBaseURL,
	}
}

func (s StorageConfig) validate() ValidationErrors {
	errs := CollectErrors(RequireOneOf("STORAGE_DRIVER", s.Driver, []string{StorageMemory, StorageS3}))
	if s.Driver != StorageS3 {
		return errs
	}
	return append(errs, CollectErrors(
		RequireNonEmpty("S3_BUCKET", s.Bucket),
		RequireNonEmpty("S3_REGION", s.Region),
		WhenSet(s.Endpoint, func() *ValidationError { return RequireValidURL("S3_ENDPOINT", s.Endpoint) }),
		WhenSet(s.PublicBaseURL, func() *ValidationError { return RequireValidURL("S3_PUBLIC_BASE_URL", s.PublicBaseURL) }),
	)...)
}

// ResolverConfig bounds each query of the access resolution
type ResolverConfig struct {
	ProfileTimeout    time.Duration `env:"RESOLVER_PROFILE_TIMEOUT" env-default:"1s"`
	RoleTimeout       time.Duration `env:"RESOLVER_ROLE_TIMEOUT" env-default:"1s"`
	PermissionTimeout time.Duration `env:"RESOLVER_PERMISSION_TIMEOUT" env-default:"1s"`
}

// ToResolverConfig converts the config for the access resolver
func (r ResolverConfig) ToResolverConfig() resolver.Config {
	return resolver.Config{
		ProfileTimeout:    r.ProfileTimeout,
		RoleTimeout:       r.RoleTimeout,
		PermissionTimeout: r.PermissionTimeout,
	}
}

func (r ResolverConfig) validate() ValidationErrors {
	return CollectErrors(
		RequirePositiveDuration("RESOLVER_PROFILE_TIMEOUT", r.ProfileTimeout),
		RequirePositiveDuration("RESOLVER_ROLE_TIMEOUT", r.RoleTimeout),
		RequirePositiveDuration("RESOLVER_PERMISSION_TIMEOUT", r.PermissionTimeout),
	)
}

// Setting is the presence of one environment setting in the diagnostics report
type Setting struct {
	Env      string `json:"env"`
	Present  bool   `json:"present"`
	Required bool   `json:"required"`
	Purpose  string `json:"purpose"`
}

// Report describes which settings are configured without revealing their values
type Report struct {
	Environment string    `json:"environment"`
	Persistence string    `json:"persistence"`
	Storage     string    `json:"storage"`
	Settings    []Setting `json:"settings"`
	Missing     []string  `json:"missing"`
	Invalid     []string  `json:"invalid"`
	OK          bool      `json:"ok"`
}

// Diagnose reports the presence of every setting the selected backends need.
// lookup reports whether an env key is set; nil uses the process environment.
func (c Config) Diagnose(lookup func(key string) bool) Report {
	if lookup == nil {
		lookup = IsEnvSet
	}
	postgres := c.Persistence == PersistencePostgres
	s3 := c.Storage.Driver == StorageS3

	settings := []Setting{
		{Env: "BACKEND_URL", Required: true, Purpose: "public base URL of the backend"},
		{Env: "BACKEND_ANON_KEY", Required: true, Purpose: "public API key presented by clients"},
		{Env: "JWT_SECRET", Required: c.Env() == Production, Purpose: "session token signing secret"},
		{Env: "DASH_PG_HOST", Required: postgres, Purpose: "postgres host"},
		{Env: "DASH_PG_DATABASE", Required: postgres, Purpose: "postgres database"},
		{Env: "DASH_PG_USER", Required: postgres, Purpose: "postgres user"},
		{Env: "DASH_PG_PASSWORD", Required: postgres, Purpose: "postgres password"},
		{Env: "S3_BUCKET", Required: s3, Purpose: "avatar bucket"},
		{Env: "S3_ACCESS_KEY_ID", Required: false, Purpose: "static S3 credentials"},
		{Env: "S3_SECRET_ACCESS_KEY", Required: false, Purpose: "static S3 credentials"},
		{Env: "DASH_DATA_DIR", Required: false, Purpose: "credential file directory for memory persistence"},
	}

	report := Report{
		Environment: string(c.Env()),
		Persistence: c.Persistence,
		Storage:     c.Storage.Driver,
		Missing:     []string{},
		Invalid:     []string{},
	}
	for _, s := range settings {
		s.Present = lookup(s.Env)
		if s.Required && !s.Present {
			report.Missing = append(report.Missing, s.Env)
		}
		report.Settings = append(report.Settings, s)
	}
	if err := c.Validate(); err != nil {
		if verrs, ok := err.(ValidationErrors); ok {
			report.Invalid = verrs.Fields()
		}
	}
	slices.Sort(report.Invalid)
	report.Invalid = slices.Compact(report.Invalid)
	report.OK = len(report.Missing) == 0 && len(report.Invalid) == 0
	return report
}
