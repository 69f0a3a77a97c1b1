package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // used to run migrations using source files
)

const (
	// Star positions are vector columns, so the plain postgres images
	// cannot load the schema.
	testDatabaseImage = "pgvector/pgvector:pg16"

	// The ready line is printed twice: once during initdb and once on
	// the real startup.
	readyLogOccurrences = 2

	containerStartTimeout = 120 * time.Second

	// Relative to the calling test's package directory. Holds for every
	// internal/<pkg> in this repo since they sit at the same depth.
	testMigrationsSource = "file://../../migrations"
)

// TestDatabase bundles a throwaway Postgres container with an open
// connection whose schema is fully migrated. Integration tests across
// packages share this so they all run against the same schema the
// services use in production.
//
// Cleanup stays with the caller:
//
//	testDB := config.SetupTestDatabase(ctx, t)
//	t.Cleanup(func() {
//		_ = testDB.Connection.Close()
//		_ = testcontainers.TerminateContainer(testDB.Container)
//	})
type TestDatabase struct {
	Container  *postgres.PostgresContainer
	Connection *sql.DB
}

// SetupTestDatabase starts a Postgres container, waits until it accepts
// connections, and applies every migration from migrations/. The test
// fails immediately if any step does not come up.
func SetupTestDatabase(ctx context.Context, t *testing.T) *TestDatabase {
	t.Helper()

	pgContainer, err := postgres.Run(ctx,
		testDatabaseImage,
		postgres.WithDatabase("starlog_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(readyLogOccurrences).
				WithStartupTimeout(containerStartTimeout),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(pgContainer)
		t.Fatalf("resolve connection string: %v", err)
	}

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		_ = testcontainers.TerminateContainer(pgContainer)
		t.Fatalf("open database: %v", err)
	}

	if err := RunTestMigrations(conn); err != nil {
		_ = conn.Close()
		_ = testcontainers.TerminateContainer(pgContainer)
		t.Fatalf("run migrations: %v", err)
	}

	return &TestDatabase{
		Container:  pgContainer,
		Connection: conn,
	}
}

// RunTestMigrations brings db up to the latest schema from the shared
// migrations directory. An already-migrated database is not an error.
func RunTestMigrations(db *sql.DB) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("prepare migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(testMigrationsSource, "postgres", driver)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
