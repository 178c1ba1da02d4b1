// Package main is the entry point for the hostboard server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"hostboard/internal/cache"
	"hostboard/internal/config"
	"hostboard/internal/database"
	"hostboard/internal/handlers"
	"hostboard/internal/icons"
	"hostboard/internal/middleware"
	"hostboard/internal/probe"
	"hostboard/internal/router"
	"hostboard/internal/snapshot"
	"hostboard/internal/storage"
	"hostboard/internal/store"
)

func main() {
	configPath := flag.String("config", "", "optional YAML configuration file")
	flag.Parse()

	// Structured logger, debug level in development.
	level := slog.LevelInfo
	if os.Getenv("APP_ENV") == "" || os.Getenv("APP_ENV") == "development" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"name", cfg.App.Name,
		"env", cfg.Server.Env,
		"addr", cfg.Addr(),
		"driver", string(cfg.Dialect()),
	)

	if cfg.Dialect() == database.SQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabaseFile()), 0o755); err != nil {
			slog.Error("failed to create database directory", "error", err)
			os.Exit(1)
		}
		slog.Info("database file", "path", cfg.DatabaseFile())
	}

	db, err := database.Connect(cfg.Dialect(), cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db, cfg.Dialect()); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Demo data only goes into an empty store.
	if cfg.App.SeedDemo {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	iconDir, err := icons.Open(cfg.IconsPath(), cfg.App.AllowedExtensions, cfg.MaxUploadBytes())
	if err != nil {
		slog.Error("failed to open icons directory", "error", err)
		os.Exit(1)
	}
	slog.Info("icons directory", "path", iconDir.Root())

	hostStore := store.NewHostStore(db)
	categoryStore := store.NewCategoryStore(db)

	ctx := context.Background()
	if n, err := hostStore.Count(ctx); err == nil {
		c, _ := categoryStore.Count(ctx)
		slog.Info("inventory loaded", "hosts", n, "categories", c)
	} else {
		slog.Warn("could not load inventory statistics", "error", err)
	}

	proberOpts := []probe.Option{probe.WithWorkers(cfg.Check.Workers)}

	// Connect to Valkey (optional, shares the bulk check lock and summary).
	var checkState *cache.CheckState
	if cfg.CacheEnabled() {
		valkeyClient, err := cache.ConnectValkey(cfg.Cache.Host, cfg.Cache.Port, cfg.Cache.Password, cfg.Cache.DB)
		if err != nil {
			slog.Error("failed to connect to valkey", "error", err)
			os.Exit(1)
		}
		defer valkeyClient.Close()

		checkState = cache.NewCheckState(valkeyClient, 0, 0)
		proberOpts = append(proberOpts,
			probe.WithLocker(checkState),
			probe.WithLockRefresh(checkState.LockTTL()/3),
			probe.WithRecorder(checkState),
		)
	} else {
		slog.Info("valkey not configured, bulk check state is per process")
	}

	// Connect to S3-compatible object storage (optional, app works without it).
	storageClient, err := storage.New(
		cfg.Storage.Endpoint, cfg.Storage.Region, cfg.Storage.AccessKey, cfg.Storage.SecretKey,
		cfg.Storage.Bucket, cfg.Storage.Prefix,
	)
	if err != nil {
		slog.Error("failed to initialize S3 storage", "error", err)
		os.Exit(1)
	}
	if storageClient != nil {
		slog.Info("s3 storage connected",
			"endpoint", cfg.Storage.Endpoint,
			"bucket", cfg.Storage.Bucket,
		)
	} else {
		slog.Warn("s3 storage not configured, backups disabled")
	}

	prober := probe.New(hostStore, cfg.CheckTimeout(), proberOpts...)
	codec := snapshot.NewCodec(db, cfg.Dialect())

	api := handlers.NewAPI(cfg.App.Name, hostStore, categoryStore, prober, checkState, codec, iconDir, storageClient, cfg.MaxUploadBytes())

	// Outbound probes are the expensive part of the API.
	checkLimiter := middleware.NewRateLimiter(10, time.Minute)

	r := router.New(api, checkLimiter)

	// WriteTimeout must accommodate a bulk check over a slow fleet.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	if interval := cfg.CheckInterval(); interval > 0 {
		go prober.Run(runCtx, interval)
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	stopRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
