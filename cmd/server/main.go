package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/rcastellanos/fareacl/internal/config"
	"github.com/rcastellanos/fareacl/internal/jobs"
	"github.com/rcastellanos/fareacl/internal/list"
	_ "github.com/rcastellanos/fareacl/internal/list/lists" // Register all lists
	"github.com/rcastellanos/fareacl/internal/logging"
	"github.com/rcastellanos/fareacl/internal/metrics"
	"github.com/rcastellanos/fareacl/internal/schema"
	"github.com/rcastellanos/fareacl/internal/version"
	"github.com/rcastellanos/fareacl/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"ingest_max_concurrent", cfg.Ingest.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	// Create the per-list tables and shared tables before serving.
	if err := schema.Bootstrap(ctx, pool); err != nil {
		slog.Error("failed to bootstrap schema", "error", err)
		os.Exit(1)
	}
	slog.Info("lists registered", "count", list.Count())

	store := version.NewPgStore(pool)
	rec := version.NewReconciler(store, store, cfg.Ingest.ChunkSize, slog.Default())
	runner := jobs.NewRunner(
		cfg.Ingest.MaxConcurrent,
		jobs.DefaultMaxWait,
		cfg.Ingest.Timeout,
		cfg.Ingest.JobRetention,
		slog.Default(),
	)

	server := web.NewServer(cfg, rec, runner, metrics.New(), slog.Default())

	// Graceful shutdown: stop accepting requests, then let running
	// reconciliations finish within the shutdown window.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
		if err := runner.WaitForDrain(shutdownCtx); err != nil {
			slog.Warn("jobs still running at shutdown deadline", "error", err)
		}
	}()

	if err := server.Start(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
