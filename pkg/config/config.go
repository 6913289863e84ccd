package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the complete dashboard server configuration
type Config struct {
	Environment string `env:"APP_ENV" env-default:"development"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
	Persistence string `env:"PERSISTENCE" env-default:"memory"`
	DataDir     string `env:"DASH_DATA_DIR"`

	Backend   BackendConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	JWT       JWTConfig
	Session   SessionConfig
	Resolver  ResolverConfig
	Access    AccessConfig
	RateLimit RateLimitConfig
	Bootstrap BootstrapConfig
}

// Load reads the configuration from the process environment
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to read configuration: %w", err)
	}
	cfg.Persistence = strings.ToLower(strings.TrimSpace(cfg.Persistence))
	if cfg.Persistence == "postgresql" {
		cfg.Persistence = PersistencePostgres
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	return cfg, nil
}

// Env returns the normalized deployment environment
func (c Config) Env() Environment {
	return ParseEnvironment(c.Environment)
}

// Level returns the slog level of LOG_LEVEL, info when unparsable
func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Validate checks every section relevant to the selected backends
func (c Config) Validate() error {
	validators := []Validator{
		func() ValidationErrors {
			return CollectErrors(RequireOneOf("PERSISTENCE", c.Persistence, []string{PersistenceMemory, PersistencePostgres}))
		},
		func() ValidationErrors {
			return CollectErrors(WhenSet(c.Backend.URL, func() *ValidationError { return RequireValidURL("BACKEND_URL", c.Backend.URL) }))
		},
		func() ValidationErrors { return c.JWT.validate(c.Env()) },
		c.Session.validate,
		c.Resolver.validate,
		c.Access.validate,
		c.RateLimit.validate,
		c.Bootstrap.validate,
		c.Storage.validate,
	}
	if c.Persistence == PersistencePostgres {
		validators = append(validators, c.Database.validate)
	}
	return Validate(validators...)
}
