package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"bridgeus/internal/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Manager owns the postgres connection pool behind the postgres document store
type Manager struct {
	db     *sql.DB
	logger *zap.Logger
	config *config.DatabaseConfig
	mu     sync.RWMutex
}

// NewManager opens the pool and waits for the database to answer, retrying
// with exponential backoff while it starts up
func NewManager(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*Manager, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	configureConnectionPool(db, cfg)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}
	err = backoff.RetryNotify(
		ping,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxInt(cfg.ConnectRetries, 0))), ctx),
		func(err error, d time.Duration) {
			logger.Warn("Database not ready, retrying", zap.Error(err), zap.Duration("backoff", d))
		},
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
		zap.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
	)

	return &Manager{
		db:     db,
		logger: logger,
		config: cfg,
	}, nil
}

func configureConnectionPool(db *sql.DB, cfg *config.DatabaseConfig) {
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
}

// DB returns the underlying database connection
func (m *Manager) DB() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

// URL returns the connection string, used by LISTEN connections
func (m *Manager) URL() string {
	return m.config.URL
}

// Migrate applies every pending up migration
func (m *Manager) Migrate(migrationsPath string) error {
	m.logger.Info("Starting database migrations", zap.String("path", migrationsPath))

	migrator, closeFn, err := m.migrator(migrationsPath)
	if err != nil {
		return err
	}
	defer closeFn()

	currentVersion, err := m.cleanVersion(migrator)
	if err != nil {
		return err
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	newVersion, _, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("failed to get new migration version: %w", err)
	}

	m.logger.Info("Migrations completed successfully",
		zap.Uint("from_version", currentVersion),
		zap.Uint("to_version", newVersion),
	)
	return nil
}

// Rollback reverts the last steps migrations
func (m *Manager) Rollback(migrationsPath string, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("rollback steps must be positive, got %d", steps)
	}

	migrator, closeFn, err := m.migrator(migrationsPath)
	if err != nil {
		return err
	}
	defer closeFn()

	currentVersion, err := m.cleanVersion(migrator)
	if err != nil {
		return err
	}

	if err := migrator.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}

	m.logger.Info("Migrations rolled back",
		zap.Uint("from_version", currentVersion),
		zap.Int("steps", steps),
	)
	return nil
}

// migrator uses a separate connection so the migrator closing its driver
// does not close the pool
func (m *Manager) migrator(migrationsPath string) (*migrate.Migrate, func(), error) {
	migrationDB, err := sql.Open("postgres", m.config.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create migration connection: %w", err)
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		migrationDB.Close()
		return nil, nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres",
		driver,
	)
	if err != nil {
		migrationDB.Close()
		return nil, nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return migrator, func() {
		migrator.Close()
		migrationDB.Close()
	}, nil
}

func (m *Manager) cleanVersion(migrator *migrate.Migrate) (uint, error) {
	version, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		m.logger.Warn("Database is in dirty state", zap.Uint("version", version))
		return 0, fmt.Errorf("database is in dirty state at version %d", version)
	}
	return version, nil
}

// ExecContext executes a statement and logs slow or failed ones
func (m *Manager) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	defer m.observe("exec", query, start)

	result, err := m.db.ExecContext(ctx, query, args...)
	if err != nil {
		m.logFailure("exec", query, err)
	}
	return result, err
}

// QueryContext executes a query and logs slow or failed ones
func (m *Manager) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	defer m.observe("query", query, start)

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		m.logFailure("query", query, err)
	}
	return rows, err
}

// QueryRowContext executes a single-row query
func (m *Manager) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	start := time.Now()
	defer m.observe("query_row", query, start)

	return m.db.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a new transaction with context
func (m *Manager) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := m.db.BeginTx(ctx, opts)
	if err != nil {
		m.logger.Error("Failed to begin transaction", zap.Error(err))
	}
	return tx, err
}

// WithTransaction runs fn in a transaction, rolling back on error or panic
func (m *Manager) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := m.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				m.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	return fn(tx)
}

// Ping checks connectivity
func (m *Manager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// HealthCheck reports database reachability in the service health report
func (m *Manager) HealthCheck(ctx context.Context) error {
	return m.Ping(ctx)
}

// ServiceName names the database in the health report
func (m *Manager) ServiceName() string {
	return "database"
}

// Stats returns pool statistics
func (m *Manager) Stats() sql.DBStats {
	return m.db.Stats()
}

// Close closes the database connection
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		m.logger.Info("Closing database connection")
		return m.db.Close()
	}
	return nil
}

func (m *Manager) observe(kind, query string, start time.Time) {
	duration := time.Since(start)
	if m.config.SlowQueryThreshold > 0 && duration > m.config.SlowQueryThreshold {
		m.logger.Warn("Slow query detected",
			zap.String("type", kind),
			zap.Duration("duration", duration),
			zap.String("query", truncateQuery(query)),
		)
	}
}

func (m *Manager) logFailure(kind, query string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	m.logger.Error("Query execution failed",
		zap.String("type", kind),
		zap.Error(err),
		zap.String("query", truncateQuery(query)),
	)
}

// truncateQuery truncates long queries for logging
func truncateQuery(query string) string {
	const maxLength = 200
	if len(query) <= maxLength {
		return query
	}
	return query[:maxLength] + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
