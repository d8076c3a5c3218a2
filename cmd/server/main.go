// Package main is the entry point for the ProjectHub server binary.
// It dispatches four subcommands (serve, migrate, bootstrap-admin and version)
// via a simple switch on os.Args so the binary's full CLI surface is readable in
// one place. The serve command runs migrations on startup so a freshly deployed
// container never needs a separate migration step.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/projecthub/projecthub/internal/api"
	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/bootstrap"
	"github.com/projecthub/projecthub/internal/config"
	"github.com/projecthub/projecthub/internal/db"
	"github.com/projecthub/projecthub/internal/db/repositories"
	"github.com/projecthub/projecthub/internal/safego"
	"github.com/projecthub/projecthub/internal/telemetry"
)

const (
	version = "0.1.0"

	shutdownTimeout = 10 * time.Second
	connectTimeout  = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if command == "version" {
		fmt.Printf("ProjectHub v%s\n", version)
		return nil
	}

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	switch command {
	case "serve":
		return serve(cfg, configPath)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down|force VERSION>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2:])
	case "bootstrap-admin":
		return bootstrapAdmin(cfg)
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, bootstrap-admin, version", command)
	}
}

func serve(cfg *config.Config, configPath string) error {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Only the log level is applied live; everything else needs a restart.
	err := config.Watch(configPath,
		func(next *config.Config) {
			telemetry.SetLogLevel(next.Logging.Level)
			slog.Info("configuration reloaded", "log_level", next.Logging.Level)
		},
		func(err error) {
			slog.Warn("ignoring invalid configuration change", "error", err)
		},
	)
	if err != nil {
		slog.Warn("config file watching disabled", "error", err)
	}

	database, err := connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	slog.Info("running database migrations")
	if err := db.RunMigrations(database.DB, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if v, dirty, err := db.GetMigrationVersion(database.DB); err != nil {
		slog.Warn("failed to get migration version", "error", err)
	} else {
		slog.Info("database schema version", "version", v, "dirty", dirty)
	}

	statsCtx, stopStats := context.WithCancel(context.Background())
	defer stopStats()
	telemetry.StartDBStatsCollector(statsCtx, database, 15*time.Second)

	var rdb *redis.Client
	if cfg.Security.RateLimiting.Enabled && cfg.Security.RateLimiting.Backend == "redis" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			// requests are let through while redis is unreachable
			slog.Warn("redis unreachable, rate limiting will fail open until it recovers", "addr", cfg.Redis.Addr, "error", err)
		}
		cancel()
	}

	// Prometheus metrics are served on a dedicated port so the scrape path is
	// not reachable through the public API ingress.
	var metricsServer *http.Server
	if cfg.Telemetry.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		safego.Go("metrics-server", func() {
			slog.Info("starting Prometheus metrics server", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
			}
		})
	}

	router, bgServices, err := api.NewRouter(cfg, database, rdb)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	safego.Go("http-server", func() {
		slog.Info("starting server",
			"addr", server.Addr,
			"tls", cfg.Security.TLS.Enabled,
			"rate_limiting", cfg.Security.RateLimiting.Enabled,
			"rate_limit_backend", cfg.Security.RateLimiting.Backend,
		)
		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Warn("metrics server shutdown", "error", err)
		}
	}

	// In-flight requests are drained, so pending audit writes can be flushed.
	bgServices.Shutdown(ctx)

	slog.Info("server stopped gracefully")
	return nil
}

func connect(cfg *config.Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	database, err := db.Connect(ctx, cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("connected to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"name", cfg.Database.Name,
		"ssl_mode", cfg.Database.SSLMode,
	)
	return database, nil
}

func runMigrations(cfg *config.Config, args []string) error {
	database, err := connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	switch direction := args[0]; direction {
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s migrate force VERSION", os.Args[0])
		}
		target, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid migration version %q: %w", args[1], err)
		}
		slog.Warn("forcing migration version", "version", target)
		if err := db.ForceMigrationVersion(database.DB, target); err != nil {
			return err
		}
	default:
		slog.Info("running migrations", "direction", direction)
		if err := db.RunMigrations(database.DB, direction); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	v, dirty, err := db.GetMigrationVersion(database.DB)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	slog.Info("migration completed", "version", v, "dirty", dirty)
	return nil
}

func bootstrapAdmin(cfg *config.Config) error {
	database, err := connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := repositories.NewUserRepository(database)
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	created, err := bootstrap.EnsureSuperAdmin(ctx, cfg.Bootstrap, users, hasher)
	if err != nil {
		return err
	}
	if created {
		fmt.Println("Super admin created. Log in with subdomain \"system\".")
	} else {
		fmt.Println("Super admin already exists, nothing to do.")
	}
	return nil
}
