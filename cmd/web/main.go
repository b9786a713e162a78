// Package main is the entrypoint for the itemdesk web server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/itemdesk/itemdesk/internal/auth"
	"github.com/itemdesk/itemdesk/internal/cache"
	"github.com/itemdesk/itemdesk/internal/config"
	"github.com/itemdesk/itemdesk/internal/handler"
	"github.com/itemdesk/itemdesk/internal/metrics"
	"github.com/itemdesk/itemdesk/internal/middleware"
	"github.com/itemdesk/itemdesk/internal/migrate"
	"github.com/itemdesk/itemdesk/internal/repository"
	"github.com/itemdesk/itemdesk/internal/server"
	"github.com/itemdesk/itemdesk/internal/service"
	"github.com/itemdesk/itemdesk/internal/session"
	"github.com/itemdesk/itemdesk/migrations"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL, cfg.RedisURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.AutoMigrate {
		applied, err := migrate.Run(ctx, cfg.DatabaseURL, migrations.FS, logger)
		if err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("migrations up to date", "applied", applied)
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("connected to database")

	// Redis is optional. Interfaces are only assigned a non-nil *cache.Cache.
	var (
		cacheClient *cache.Cache
		revoker     session.Revoker
		cacheHealth handler.HealthChecker
	)
	if cfg.RedisEnabled() {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			repo.Close()
			return fmt.Errorf("connect to Redis: %w", err)
		}
		revoker = cacheClient
		cacheHealth = cacheClient
		logger.Info("connected to Redis; logout revocation enabled")
	}

	closeAll := func() {
		if cacheClient != nil {
			_ = cacheClient.Close()
		}
		repo.Close()
	}

	sessions, err := session.NewManager(session.Options{
		Secret:     []byte(cfg.SessionSecret),
		CookieName: cfg.SessionCookieName,
		Lifetime:   cfg.SessionLifetime,
		Secure:     !cfg.IsDevelopment(),
		Revoker:    revoker,
		Logger:     logger,
	})
	if err != nil {
		closeAll()
		return err
	}

	hasher, err := auth.NewHasher(auth.DefaultParams)
	if err != nil {
		closeAll()
		return err
	}

	var (
		recorder    metrics.Recorder = metrics.NewNoop()
		snapshotter metrics.Snapshotter
	)
	if cfg.MetricsEnabled {
		inMemory := metrics.NewInMemory()
		recorder, snapshotter = inMemory, inMemory
	}

	views, err := handler.NewRenderer()
	if err != nil {
		closeAll()
		return err
	}

	base := handler.New(views, sessions, logger)
	router := handler.NewRouter(handler.RouterConfig{
		Base:     base,
		Auth:     handler.NewAuthHandler(base, service.NewAccountService(repo, hasher, recorder)),
		Items:    handler.NewItemHandler(base, service.NewItemService(repo, recorder)),
		Health:   handler.NewHealthHandler(repo, cacheHealth),
		Metrics:  handler.NewMetricsHandler(snapshotter),
		Sessions: sessions,
		Logger:   logger,
		Security: middleware.SecurityConfig{
			IsDevelopment: cfg.IsDevelopment(),
		},
		MaxBodySize: cfg.MaxRequestBodySize,
	})

	srv := server.New(router, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// LIFO: Redis closes before the pool.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error {
			return cacheClient.Close()
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"redis", cfg.RedisEnabled(),
		"session_lifetime", cfg.SessionLifetime.String(),
	)

	return srv.Run(ctx)
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// redactURL drops the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

// sanitizeError replaces any secret URL inside err's message with its
// redacted form and masks password= pairs.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
