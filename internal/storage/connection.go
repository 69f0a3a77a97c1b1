// Package storage provides the PostgreSQL persistence layer for the
// starlog services: the pooled database connection, the freshness-gated
// journal store that applies normalized event bundles, and the API key
// stores backing control-plane authentication.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq" // registers the postgres driver

	"github.com/starlog-io/starlog/internal/config"
)

const (
	// connectTimeout bounds the initial connectivity probe in NewConnection.
	connectTimeout = 10 * time.Second

	// healthCheckTimeout bounds a single HealthCheck round trip so readiness
	// probes fail fast instead of hanging on a dead database.
	healthCheckTimeout = 5 * time.Second
)

var (
	// ErrConfigNil is returned when a nil storage configuration is provided.
	ErrConfigNil = errors.New("storage config cannot be nil")

	// ErrNoDatabaseConnection is returned when an operation requires a
	// database connection that is nil or closed.
	ErrNoDatabaseConnection = errors.New("no database connection")
)

// Connection wraps a pooled *sql.DB with the configuration it was opened
// with. It is shared by every store in this package; each event transaction
// checks out one pooled connection for its duration and returns it on
// commit or rollback.
type Connection struct {
	DB     *sql.DB
	config *Config
	logger *slog.Logger
}

// NewConnection opens a PostgreSQL connection pool using the provided
// configuration and verifies connectivity before returning.
//
// Pool limits (max open/idle connections, lifetime, idle time) come from
// the configuration. The initial ping uses connectTimeout so a missing
// database fails startup quickly.
func NewConnection(cfg *Config) (*Connection, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Connection pool settings
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("%w: ping failed: %w", ErrNoDatabaseConnection, err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}))

	logger.Info("database connection established",
		slog.String("database_url", cfg.MaskDatabaseURL()),
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
	)

	return &Connection{
		DB:     db,
		config: cfg,
		logger: logger,
	}, nil
}

// BeginTx starts a transaction on the underlying pool.
func (c *Connection) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	if c == nil || c.DB == nil {
		return nil, ErrNoDatabaseConnection
	}

	tx, err := c.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return tx, nil
}

// ExecContext executes a statement outside any transaction.
func (c *Connection) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if c == nil || c.DB == nil {
		return nil, ErrNoDatabaseConnection
	}

	return c.DB.ExecContext(ctx, query, args...) //nolint: wrapcheck
}

// QueryContext executes a query outside any transaction.
func (c *Connection) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if c == nil || c.DB == nil {
		return nil, ErrNoDatabaseConnection
	}

	return c.DB.QueryContext(ctx, query, args...) //nolint: wrapcheck
}

// QueryRowContext executes a single-row query outside any transaction.
func (c *Connection) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.DB.QueryRowContext(ctx, query, args...)
}

// HealthCheck verifies the database is reachable and answering queries.
// Used by readiness probes and the /health endpoint.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if c == nil || c.DB == nil {
		return ErrNoDatabaseConnection
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrNoDatabaseConnection, err)
	}

	return nil
}

// Stats returns connection pool statistics for operational monitoring.
func (c *Connection) Stats() sql.DBStats {
	return c.DB.Stats()
}

// Close closes the connection pool. Safe to call on a nil connection.
func (c *Connection) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}

	if err := c.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
