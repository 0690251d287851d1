// Package app assembles the store, repositories and services shared by the
// server and the bridgectl commands.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"bridgeus/internal/config"
	"bridgeus/internal/database"
	"bridgeus/internal/repositories"
	"bridgeus/internal/services"
	"bridgeus/internal/store"
	"bridgeus/internal/store/memory"
	"bridgeus/internal/store/postgres"

	"go.uber.org/zap"
)

// App owns the process-wide dependencies
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *database.Manager // nil for the memory store
	Store    store.Store
	Services *services.ServiceCollection
}

// NewLogger builds the logger for GO_ENV
func NewLogger() (*zap.Logger, error) {
	var cfg zap.Config

	switch strings.ToLower(os.Getenv("GO_ENV")) {
	case "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "staging":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// OpenDatabase connects to postgres. migrate runs pending migrations when
// the configuration asks for it.
func OpenDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.Manager, error) {
	db, err := database.NewManager(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := db.Migrate(cfg.Database.MigrationsPath); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// New opens the configured store and wires the service collection. The
// collection is not started.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...services.CollectionOption) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	switch cfg.Store.Driver {
	case "postgres":
		db, err := OpenDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.DB = db

		s, err := postgres.New(ctx, db, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		a.Store = s
	case "memory", "":
		logger.Warn("Using the in-memory store, data is lost on restart")
		a.Store = memory.New(logger)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}

	repos, err := repositories.NewCollection(a.Store, logger)
	if err != nil {
		a.closeStore()
		return nil, fmt.Errorf("failed to create repositories: %w", err)
	}

	sc, err := services.NewServiceCollection(repos, cfg, logger, opts...)
	if err != nil {
		a.closeStore()
		return nil, err
	}
	if a.DB != nil {
		sc.RegisterHealthChecker(a.DB)
	}
	a.Services = sc
	return a, nil
}

// Close shuts the services down, which closes the store, then releases
// the database pool
func (a *App) Close(ctx context.Context) error {
	if a.Services == nil {
		return a.closeStore()
	}

	err := a.Services.Shutdown(ctx)
	if a.DB != nil {
		if dbErr := a.DB.Close(); dbErr != nil && err == nil {
			err = dbErr
		}
	}
	return err
}

func (a *App) closeStore() error {
	var firstErr error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			firstErr = err
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
