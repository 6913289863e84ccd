package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tendant/chi-demo/app"

	"github.com/sarathmodify/admin-dashboard/pkg/config"
	"github.com/sarathmodify/admin-dashboard/pkg/router"
)

func main() {
	loadEnvFile()

	dashboard, err := config.Load()
	if err != nil {
		slog.Error("Failed reading configuration", "err", err)
		os.Exit(-1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: dashboard.Level()})))

	if err := dashboard.Validate(); err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(-1)
	}
	report := dashboard.Diagnose(nil)
	if !report.OK {
		// the server still starts so the diagnostics view can explain what is missing
		slog.Warn("Backend configuration incomplete", "missing", report.Missing, "invalid", report.Invalid)
	}
	if dashboard.JWT.UsesDefaultSecret() {
		slog.Warn("Using the built-in JWT secret; set JWT_SECRET outside development")
	}

	ctx := context.Background()
	backends, err := router.NewBackends(ctx, dashboard)
	if err != nil {
		slog.Error("Failed creating backends", "persistence", dashboard.Persistence, "storage", dashboard.Storage.Driver, "err", err)
		os.Exit(-1)
	}
	defer backends.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	services := router.NewServices(dashboard, backends, registry)
	defer services.Close()
	if err := services.Bootstrap(ctx, dashboard, backends); err != nil {
		slog.Error("Failed bootstrapping dashboard data", "err", err)
		os.Exit(-1)
	}

	server := app.DefaultApp()
	app.RegisterHealthzRoutes(server.R)
	router.SetupRoutes(server.R, services.Routes)

	slog.Info("Admin dashboard configured",
		"env", dashboard.Env(),
		"persistence", dashboard.Persistence,
		"storage", dashboard.Storage.Driver,
		"adminRoles", dashboard.Access.AdminRoles(),
	)
	server.Run()
}

// loadEnvFile loads .env next to the binary or in the working directory, if present
func loadEnvFile() {
	candidates := []string{}
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), ".env"))
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".env"))
	}

	for _, envFile := range candidates {
		if _, err := os.Stat(envFile); err != nil {
			continue
		}
		slog.Info("Loading configuration from .env file", "path", envFile)
		if err := godotenv.Load(envFile); err != nil {
			slog.Warn("Failed to load .env file", "error", err)
		}
		return
	}
	slog.Debug("No .env file found (using environment variables or defaults)")
}
