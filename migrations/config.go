package main

import (
	"fmt"
	"net/url"

	"github.com/starlog-io/starlog/internal/config"
)

const defaultMigrationTable = "schema_migrations"

// Config holds the settings of the migration tool.
type Config struct {
	// DatabaseURL is the Postgres connection string to migrate.
	DatabaseURL string

	// MigrationTable is where golang-migrate records applied versions.
	MigrationTable string
}

// LoadConfig reads the tool's settings from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    config.GetEnvStr("DATABASE_URL", ""),
		MigrationTable: config.GetEnvStr("MIGRATION_TABLE", defaultMigrationTable),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the migrator cannot run with.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.MigrationTable == "" {
		return fmt.Errorf("MIGRATION_TABLE cannot be empty")
	}

	return nil
}

// String renders the configuration with credentials masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{DatabaseURL: %s, MigrationTable: %s}",
		maskDatabaseURL(c.DatabaseURL), c.MigrationTable)
}

// maskDatabaseURL hides the password so the URL can be logged.
func maskDatabaseURL(raw string) string {
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "(unparseable database URL)"
	}

	if u.User == nil {
		return raw
	}

	if password, hasPassword := u.User.Password(); !hasPassword || password == "" {
		return raw
	}

	u.User = url.UserPassword(u.User.Username(), "***")

	return u.String()
}
