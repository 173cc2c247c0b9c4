// Package main is the entry point for the Castellan server.
// Castellan is a user administration service: registration, token-based
// login, profile self-service, and admin block/unblock/delete tooling.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prn-tf/castellan/internal/auth"
	"github.com/prn-tf/castellan/internal/cache/memory"
	"github.com/prn-tf/castellan/internal/config"
	"github.com/prn-tf/castellan/internal/handler"
	"github.com/prn-tf/castellan/internal/metrics"
	"github.com/prn-tf/castellan/internal/pkg/crypto"
	"github.com/prn-tf/castellan/internal/repository"
	"github.com/prn-tf/castellan/internal/repository/postgres"
	redisrepo "github.com/prn-tf/castellan/internal/repository/redis"
	"github.com/prn-tf/castellan/internal/repository/sqlite"
	"github.com/prn-tf/castellan/internal/service"
	"github.com/prn-tf/castellan/internal/token"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting castellan server")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	var (
		userRepo repository.UserRepository
		health   handler.HealthChecker
		closeDB  func() error
	)

	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.Config{
			Path:            cfg.Database.Path,
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			JournalMode:     cfg.Database.JournalMode,
			BusyTimeout:     cfg.Database.BusyTimeout,
			SynchronousMode: cfg.Database.SynchronousMode,
		}, logger)
		if err != nil {
			return fmt.Errorf("opening sqlite database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating sqlite database: %w", err)
		}
		userRepo = sqlite.NewUserRepository(db)
		health = db
		closeDB = db.Close

	default:
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating postgres database: %w", err)
		}
		userRepo = postgres.NewUserRepository(db)
		health = db
		closeDB = func() error { db.Close(); return nil }
	}
	defer func() {
		if err := closeDB(); err != nil {
			logger.Error().Err(err).Msg("failed to close database")
		}
	}()

	// User record cache: Redis when enabled, otherwise in-process.
	if cfg.Cache.Enabled {
		var cache repository.Cache
		if cfg.Redis.Enabled {
			redisCache, err := redisrepo.NewCache(ctx, cfg.Redis, logger)
			if err != nil {
				return fmt.Errorf("connecting to redis: %w", err)
			}
			defer func() { _ = redisCache.Close() }()
			cache = redisCache
		} else {
			memCache := memory.NewCache()
			defer memCache.Stop()
			cache = memCache
		}
		userRepo = repository.NewCachedUserRepository(userRepo, cache, cfg.Cache.TTL, logger)
	}

	// Token issuer and password hasher
	issuer, err := token.NewIssuer(token.Config{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.JWTIssuer,
		Audience: cfg.Auth.JWTAudience,
		TTL:      cfg.Auth.TokenTTL,
	})
	if err != nil {
		return fmt.Errorf("creating token issuer: %w", err)
	}
	hasher := crypto.NewPasswordHasher(cfg.Auth.BcryptCost)

	// Metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Services
	authService := service.NewAuthService(userRepo, hasher, issuer, logger)
	if m != nil {
		authService = authService.WithMetrics(m)
	}
	usersService := service.NewUsersService(userRepo, logger)

	// HTTP API
	routerCfg := handler.RouterConfig{
		AuthHandler:    handler.NewAuthHandler(authService, logger),
		UsersHandler:   handler.NewUsersHandler(usersService, logger),
		AuthMiddleware: auth.Middleware(issuer, userRepo, auth.DefaultConfig()),
		Health:         health,
		MaxBodySize:    cfg.Server.MaxBodySize,
		Logger:         logger,
	}
	if m != nil {
		routerCfg.HTTPMetrics = m.HTTPMiddleware
	}
	router := handler.NewRouter(routerCfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Metrics endpoint on its own port
	var metricsServer *http.Server
	if m != nil {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info().Str("addr", metricsServer.Addr).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}

	logger.Info().Msg("server stopped")
	return nil
}

// setupLogger builds the root logger from config.
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	var out = os.Stderr
	logger := zerolog.New(out)
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}

	return logger.Level(level).With().Timestamp().Logger()
}
