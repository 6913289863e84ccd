package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-chi/jwtauth/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sarathmodify/admin-dashboard/pkg/admin"
	"github.com/sarathmodify/admin-dashboard/pkg/auth"
	"github.com/sarathmodify/admin-dashboard/pkg/authstate"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	"github.com/sarathmodify/admin-dashboard/pkg/backend/memory"
	"github.com/sarathmodify/admin-dashboard/pkg/backend/postgres"
	"github.com/sarathmodify/admin-dashboard/pkg/backend/s3store"
	"github.com/sarathmodify/admin-dashboard/pkg/config"
	"github.com/sarathmodify/admin-dashboard/pkg/guard"
	"github.com/sarathmodify/admin-dashboard/pkg/metrics"
	"github.com/sarathmodify/admin-dashboard/pkg/profile"
	"github.com/sarathmodify/admin-dashboard/pkg/resolver"
	"github.com/sarathmodify/admin-dashboard/pkg/session"
	"github.com/sarathmodify/admin-dashboard/pkg/tokengenerator"
)

// Backends are the data capabilities selected by PERSISTENCE and STORAGE_DRIVER
type Backends struct {
	Relational  backend.Relational
	Credentials backend.CredentialStore
	Storage     backend.Storage
	// Files is set when objects are kept in memory and served by the dashboard itself
	Files *memory.Storage

	closers []func()
}

// Close releases the database pool, if any
func (b *Backends) Close() {
	for _, c := range b.closers {
		c()
	}
}

// NewBackends opens the relational, credential and object storage backends
func NewBackends(ctx context.Context, cfg config.Config) (*Backends, error) {
	b := &Backends{}

	switch cfg.Persistence {
	case config.PersistencePostgres:
		dbConfig := cfg.Database
		pool, err := pgxpool.New(ctx, dbConfig.ToDatabaseURL())
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
			return nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		b.closers = append(b.closers, pool.Close)

		repo := postgres.NewRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		b.Relational = repo
		b.Credentials, err = auth.NewCredentialStore(cfg.Persistence, auth.RepositoryConfig{Postgres: repo})
		if err != nil {
			b.Close()
			return nil, err
		}
	case config.PersistenceMemory:
		b.Relational = memory.NewRepository()
		creds, err := auth.NewCredentialStore(cfg.Persistence, auth.RepositoryConfig{DataDir: cfg.DataDir})
		if err != nil {
			return nil, err
		}
		b.Credentials = creds
		slog.Warn("Using in-memory relational backend; data is lost on restart")
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, memory)", cfg.Persistence)
	}

	switch cfg.Storage.Driver {
	case config.StorageS3:
		store, err := s3store.New(ctx, cfg.Storage.ToS3Config())
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to create object storage: %w", err)
		}
		b.Storage = store
	default:
		files := memory.NewStorage(cfg.Backend.BaseURL("") + DefaultPrefixes().Storage)
		b.Storage = files
		b.Files = files
	}
	return b, nil
}

// Services is the wired object graph of the dashboard
type Services struct {
	Auth     *auth.Service
	Admin    *admin.Service
	Sessions *session.Provider
	Registry *authstate.Registry
	Metrics  *metrics.Metrics
	Routes   Config
}

// Close unsubscribes the registry and closes every live store
func (s *Services) Close() {
	s.Registry.Close()
}

// NewServices wires the auth, session, resolution and management services on top of b
func NewServices(cfg config.Config, b *Backends, registry *prometheus.Registry) *Services {
	m := metrics.NewMetrics(registry)

	tokens := tokengenerator.NewJwtTokenGenerator(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience)
	authService := auth.NewService(
		b.Credentials,
		tokens,
		auth.WithAccessTokenExpiry(cfg.JWT.AccessTokenExpiry),
		auth.WithRefreshTokenExpiry(cfg.JWT.RefreshTokenExpiry),
	)

	tokenAuth := jwtauth.New("HS256", []byte(cfg.JWT.Secret), nil)
	provider := session.NewProvider(
		authService,
		session.NewCookieStorage(cfg.Session.ToCookieConfig(cfg.Env())),
		session.WithTokenAuth(tokenAuth),
	)

	res := resolver.New(b.Relational,
		resolver.WithConfig(cfg.Resolver.ToResolverConfig()),
		resolver.WithRecorder(m),
	)
	reg := authstate.NewRegistry(provider, res, cfg.Session.ToRegistryConfig())
	m.RegisterActiveSessions(reg.Len)

	adminService := admin.NewService(b.Relational,
		admin.WithRecorder(m),
		admin.WithRefresher(reg),
	)
	profileService := profile.NewService(b.Relational, b.Storage, provider)

	return &Services{
		Auth:     authService,
		Admin:    adminService,
		Sessions: provider,
		Registry: reg,
		Metrics:  m,
		Routes: Config{
			Prefixes:      DefaultPrefixes(),
			SessionHandle: session.NewHandle(provider),
			AdminHandle:   admin.NewHandle(adminService),
			ProfileHandle: profile.NewHandle(profileService),
			Sessions:      provider,
			Stores:        reg,
			Guard: guard.Config{
				LoginPath: cfg.Access.LoginPath,
			},
			AdminRoles:   cfg.Access.AdminRoles(),
			Capabilities: DefaultCapabilities(),
			TokenAuth:    tokenAuth,
			APIKey:       cfg.Backend.APIKey,
			SignInLimit:  cfg.RateLimit.SignIn(),
			RefreshLimit: cfg.RateLimit.Refresh(),
			TrustProxy:   cfg.RateLimit.TrustProxy,
			APILimit:     cfg.RateLimit.API(),
			Metrics:      m,
			Diagnostics: func() config.Report {
				return cfg.Diagnose(nil)
			},
			Files: b.Files,
		},
	}
}
