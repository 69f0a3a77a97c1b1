package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// Postgres driver, registered for database/sql.
	_ "github.com/lib/pq"
)

// migrator applies the SQL files of an audited migrationSet to a
// Postgres database.
type migrator struct {
	config *Config
	set    *migrationSet
	db     *sql.DB
	m      *migrate.Migrate
	logger *slog.Logger

	// out receives the human-readable reports of Status and Version.
	out io.Writer
}

var _ schemaMigrator = (*migrator)(nil)

// migrateLogAdapter forwards golang-migrate's progress output to slog.
type migrateLogAdapter struct {
	logger *slog.Logger
}

func (a *migrateLogAdapter) Printf(format string, v ...any) {
	a.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (a *migrateLogAdapter) Verbose() bool {
	return false
}

// newMigrator audits the migration set, connects to the database and
// wires up the migrate engine. The caller owns Close.
func newMigrator(config *Config, set *migrationSet, logger *slog.Logger) (*migrator, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if set == nil {
		set = newMigrationSet(nil)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	if err := set.Audit(); err != nil {
		return nil, fmt.Errorf("migration set failed audit: %w", err)
	}

	db, err := sql.Open("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: config.MigrationTable,
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(set.FS(), ".")
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	m.Log = &migrateLogAdapter{logger: logger}

	return &migrator{
		config: config,
		set:    set,
		db:     db,
		m:      m,
		logger: logger,
		out:    os.Stdout,
	}, nil
}

// Up applies every pending migration.
func (mg *migrator) Up() error {
	if err := mg.set.Audit(); err != nil {
		return fmt.Errorf("refusing to migrate: %w", err)
	}

	err := mg.m.Up()

	switch {
	case errors.Is(err, migrate.ErrNoChange):
		mg.logger.Info("schema already up to date")
	case err != nil:
		return fmt.Errorf("migration up failed: %w", err)
	default:
		mg.logger.Info("schema migrated up")
	}

	return nil
}

// Down rolls back the most recent migration. A full teardown goes
// through Drop instead.
func (mg *migrator) Down() error {
	if err := mg.set.Audit(); err != nil {
		return fmt.Errorf("refusing to migrate: %w", err)
	}

	err := mg.m.Steps(-1)

	switch {
	case errors.Is(err, migrate.ErrNoChange):
		mg.logger.Info("nothing to roll back")
	case err != nil:
		return fmt.Errorf("migration down failed: %w", err)
	default:
		mg.logger.Info("rolled back one migration")
	}

	return nil
}

// Status reports the applied schema version against the migrations in
// this binary, listing anything still pending.
func (mg *migrator) Status() error {
	current, dirty, err := mg.currentVersion()
	if err != nil {
		return err
	}

	embedded, err := mg.set.MaxSequence()
	if err != nil {
		return err
	}

	fmt.Fprintf(mg.out, "database version: %s\n", describeVersion(current, dirty))
	fmt.Fprintf(mg.out, "embedded version: %d\n", embedded)
	fmt.Fprintf(mg.out, "state: %s\n", describeCompatibility(current, embedded))

	if current < embedded {
		pending, err := mg.pendingMigrations(current)
		if err != nil {
			return err
		}

		for _, name := range pending {
			fmt.Fprintf(mg.out, "pending: %s\n", name)
		}
	}

	return nil
}

// Version prints the applied schema version and nothing else.
func (mg *migrator) Version() error {
	current, dirty, err := mg.currentVersion()
	if err != nil {
		return err
	}

	fmt.Fprintln(mg.out, describeVersion(current, dirty))

	return nil
}

// Drop removes every object in the database, including the migration
// bookkeeping table.
func (mg *migrator) Drop() error {
	mg.logger.Warn("dropping all database objects")

	if err := mg.m.Drop(); err != nil {
		return fmt.Errorf("drop failed: %w", err)
	}

	mg.logger.Info("database dropped")

	return nil
}

// Close releases the migrate engine and the database connection.
func (mg *migrator) Close() error {
	var errs []error

	if mg.m != nil {
		sourceErr, dbErr := mg.m.Close()
		if sourceErr != nil {
			errs = append(errs, fmt.Errorf("close migration source: %w", sourceErr))
		}

		if dbErr != nil {
			errs = append(errs, fmt.Errorf("close migration driver: %w", dbErr))
		}
	}

	if mg.db != nil {
		if err := mg.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	return errors.Join(errs...)
}

// currentVersion reports the applied schema version, with 0 meaning a
// pristine database.
func (mg *migrator) currentVersion() (int, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}

	return int(version), dirty, nil
}

// pendingMigrations names the up migrations above the current version,
// in apply order.
func (mg *migrator) pendingMigrations(current int) ([]string, error) {
	files, err := mg.set.Files()
	if err != nil {
		return nil, err
	}

	var pending []string

	for _, f := range files {
		m, err := parseMigrationFilename(f)
		if err != nil || m.Direction != "up" {
			continue
		}

		if m.Sequence > current {
			pending = append(pending, fmt.Sprintf("%03d_%s", m.Sequence, m.Name))
		}
	}

	return pending, nil
}

func describeVersion(version int, dirty bool) string {
	if version == 0 {
		return "none (pristine database)"
	}

	if dirty {
		return fmt.Sprintf("%d (dirty, needs manual repair)", version)
	}

	return strconv.Itoa(version)
}

func describeCompatibility(current, embedded int) string {
	switch {
	case current == embedded:
		return "up to date"
	case current < embedded:
		return fmt.Sprintf("%d migration(s) pending", embedded-current)
	default:
		return "database is ahead of this binary; use a newer migrator"
	}
}
