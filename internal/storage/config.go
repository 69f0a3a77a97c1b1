package storage

import (
	"errors"
	"strings"
	"time"

	"github.com/starlog-io/starlog/internal/config"
)

// Pool defaults sized for the ingest dispatcher's worker ceiling plus
// interactive API traffic.
const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 10 * time.Minute
)

// ErrDatabaseURLEmpty is returned when no database URL is configured.
var ErrDatabaseURLEmpty = errors.New("database URL cannot be empty")

// Config carries PostgreSQL pool settings. The URL itself stays
// unexported so it cannot wander into logs; use MaskDatabaseURL for
// anything user-visible.
type Config struct {
	databaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoadConfig reads connection settings from the environment, falling
// back to the defaults above.
func LoadConfig() *Config {
	return &Config{
		databaseURL:     config.GetEnvStr("DATABASE_URL", ""),
		MaxOpenConns:    config.GetEnvInt("DATABASE_MAX_OPEN_CONNS", defaultMaxOpenConns),
		MaxIdleConns:    config.GetEnvInt("DATABASE_MAX_IDLE_CONNS", defaultMaxIdleConns),
		ConnMaxLifetime: config.GetEnvDuration("DATABASE_CONN_MAX_LIFETIME", defaultConnMaxLifetime),
		ConnMaxIdleTime: config.GetEnvDuration("DATABASE_CONN_MAX_IDLE_TIME", defaultConnMaxIdleTime),
	}
}

// Validate rejects a blank database URL.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.databaseURL) == "" {
		return ErrDatabaseURLEmpty
	}

	return nil
}

// MaskDatabaseURL renders the URL with the password replaced, safe for
// logging. Parsing is done by hand because passwords are allowed to
// contain characters net/url refuses.
func (c *Config) MaskDatabaseURL() string {
	url := c.databaseURL

	schemeEnd := strings.Index(url, "://")
	if schemeEnd == -1 {
		return url
	}

	rest := url[schemeEnd+3:]

	// Userinfo, when present, ends at the last @ before the host.
	at := strings.LastIndex(rest, "@")
	if at == -1 {
		return url
	}

	userinfo := rest[:at]

	colon := strings.Index(userinfo, ":")
	if colon == -1 || colon == len(userinfo)-1 {
		// No password, or an empty one. Nothing to hide.
		return url
	}

	return url[:schemeEnd] + "://" + userinfo[:colon] + ":***" + rest[at:]
}
