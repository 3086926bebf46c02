package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/sundayezeilo/microblog/internal/config"
	"github.com/sundayezeilo/microblog/internal/db"
	"github.com/sundayezeilo/microblog/internal/db/pg"
	"github.com/sundayezeilo/microblog/internal/db/sqlite"
	"github.com/sundayezeilo/microblog/internal/idgen"
	"github.com/sundayezeilo/microblog/internal/metrics"
	"github.com/sundayezeilo/microblog/internal/server"
	"github.com/sundayezeilo/microblog/internal/tweet"
)

// App holds the application dependencies and configuration.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   db.Store
	Metrics *metrics.Registry
	Server  *server.Server
	Handler *tweet.Handler

	closers []io.Closer
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel).With(
		"service", cfg.Observability.ServiceName,
	)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.Observability.ServiceVersion,
		"db_driver", cfg.Database.Driver,
	)

	return Build(ctx, cfg, logger)
}

// Build wires an App from an already loaded configuration.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, store)

	a.Metrics = metrics.NewRegistry(cfg.Metrics.Namespace)
	counter := metrics.Multi{a.Metrics}

	if cfg.Metrics.RedisEnabled() {
		rc, err := metrics.NewRedisCounter(metrics.RedisConfig{
			Address:   cfg.Metrics.RedisAddr,
			Password:  cfg.Metrics.RedisPassword,
			DB:        cfg.Metrics.RedisDB,
			KeyPrefix: cfg.Metrics.RedisKeyPrefix,
		})
		if err != nil {
			_ = a.Shutdown()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, rc)
		counter = append(counter, rc)
		logger.Info("forwarding counters to redis", "addr", cfg.Metrics.RedisAddr)
	}

	repo := tweet.NewStore(store, &tweet.StoreConfig{
		IDGenerator: idgen.NewV7(idgen.WithRetries(1)),
		Logger:      logger,
	})
	svc := tweet.NewService(repo, &tweet.ServiceConfig{
		Counter:        counter,
		CounterTimeout: cfg.Metrics.CounterTimeout,
		Logger:         logger,
	})
	a.Handler = tweet.NewHandler(tweet.HandlerConfig{
		Service: svc,
		Logger:  logger,
	})

	a.Server = server.New(cfg, logger, server.Deps{
		Handler: a.Handler,
		Metrics: a.Metrics,
		Store:   store,
	})

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"rate_limit", cfg.RateLimit.Enabled,
	)

	return a, nil
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown releases the store and counter connections, newest first.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	if err := errors.Join(errs...); err != nil {
		a.Logger.Error("shutdown finished with errors", "error", err.Error())
		return err
	}
	a.Logger.Info("connections closed")
	return nil
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load(); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}

// openStore connects the configured backend and applies the schema when
// migrations are enabled.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (db.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		return openSQLite(ctx, cfg, logger)
	default:
		return openPostgres(ctx, cfg, logger)
	}
}

func openSQLite(ctx context.Context, cfg *config.Config, logger *slog.Logger) (db.Store, error) {
	url := cfg.Database.SQLiteURL

	logger.Info("opening sqlite database", "driver", sqlite.DriverFor(url))

	store, err := sqlite.Open(ctx, url, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Migrate {
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
		}
		logger.Info("sqlite schema applied")
	}
	return store, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (db.Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Database.Migrate {
		if err := pg.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
		}
		logger.Info("postgres schema applied")
	}

	logger.Info("database connection established")
	return pg.NewStore(pool), nil
}
