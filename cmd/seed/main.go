package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/sarathmodify/admin-dashboard/pkg/admin"
	"github.com/sarathmodify/admin-dashboard/pkg/auth"
	"github.com/sarathmodify/admin-dashboard/pkg/config"
	"github.com/sarathmodify/admin-dashboard/pkg/router"
	"github.com/sarathmodify/admin-dashboard/pkg/tokengenerator"
)

func main() {
	email := flag.String("email", "", "Email of a user to create (optional)")
	password := flag.String("password", "", "Password for the new user (required with -email)")
	fullName := flag.String("name", "", "Full name of the user (default: local part of the email)")
	roleName := flag.String("role", "staff", "Role to assign to the user")
	flag.Parse()

	if *email != "" && *password == "" {
		fmt.Println("Error: -password is required with -email")
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed reading configuration", "err", err)
		os.Exit(1)
	}
	if cfg.Persistence == config.PersistenceMemory && cfg.DataDir == "" {
		slog.Warn("Seeding the in-memory backend; nothing survives this process")
	}

	ctx := context.Background()
	backends, err := router.NewBackends(ctx, cfg)
	if err != nil {
		slog.Error("Failed creating backends", "persistence", cfg.Persistence, "err", err)
		os.Exit(1)
	}
	defer backends.Close()

	svc := admin.NewService(backends.Relational)
	roles, err := svc.EnsureCatalog(ctx, admin.DefaultCatalog())
	if err != nil {
		slog.Error("Failed seeding roles and permissions", "err", err)
		os.Exit(1)
	}
	slog.Info("Roles and permissions seeded", "roles", len(roles))

	if *email == "" {
		return
	}
	tokens := tokengenerator.NewJwtTokenGenerator(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience)
	authService := auth.NewService(backends.Credentials, tokens)
	user, err := router.EnsureUser(ctx, authService, svc, backends, roles, router.SeedUser{
		Email:    *email,
		Password: *password,
		FullName: *fullName,
		Role:     *roleName,
	})
	if err != nil {
		slog.Error("Failed seeding user", "email", *email, "role", *roleName, "err", err)
		os.Exit(1)
	}
	slog.Info("User seeded", "userId", user.ID, "email", user.Email, "role", *roleName)
}
