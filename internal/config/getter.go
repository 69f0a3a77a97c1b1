// Package config provides functions for reading config settings from ENV.
//
// Every getter shares one contract: an unset, empty, or unparseable
// variable yields the caller's default, so a misconfigured process
// starts with documented defaults instead of refusing to boot.
package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

var errUnrecognized = errors.New("unrecognized value")

// getEnv reads key and feeds the raw value through parse. The default
// wins when the variable is unset, empty, or rejected by parse.
func getEnv[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	value, err := parse(raw)
	if err != nil {
		return defaultValue
	}

	return value
}

// GetEnvStr returns a string environment variable value or a default if not set.
//
// Example:
//
//	s := GetEnvStr("STARLOG_ARCHIVE_HOST", "edgalaxydata.space")
func GetEnvStr(key, defaultValue string) string {
	return getEnv(key, defaultValue, func(raw string) (string, error) {
		return raw, nil
	})
}

// GetEnvInt returns an int environment variable value or a default if not set.
// Unparseable values fall back to the default.
//
// Example:
//
//	i := GetEnvInt("STARLOG_PORT", 8080)
func GetEnvInt(key string, defaultValue int) int {
	return getEnv(key, defaultValue, strconv.Atoi)
}

// GetEnvInt64 returns an int64 environment variable value or a default if not set.
//
// Example:
//
//	i := GetEnvInt64("STARLOG_MAX_REQUEST_SIZE", 1048576)
func GetEnvInt64(key string, defaultValue int64) int64 {
	return getEnv(key, defaultValue, func(raw string) (int64, error) {
		return strconv.ParseInt(raw, 10, 64)
	})
}

// GetEnvBool returns a bool environment variable value or a default if not set.
// Accepts: "true", "1", "yes" as true; "false", "0", "no" as false (case-insensitive).
//
// Example:
//
//	b := GetEnvBool("STARLOG_AUTH_ENABLED", false)
func GetEnvBool(key string, defaultValue bool) bool {
	return getEnv(key, defaultValue, parseBool)
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}

	return false, errUnrecognized
}

// GetEnvDuration returns a duration environment variable value or a default if not set.
// Values use Go duration syntax ("30s", "5m").
//
// Example:
//
//	d := GetEnvDuration("STARLOG_HTTP_TIMEOUT", 60*time.Second)
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return getEnv(key, defaultValue, time.ParseDuration)
}

// GetEnvLogLevel returns a slog level environment variable value or a default if not set.
// Recognized names are "debug", "info", "warn", "warning", and "error"
// (case-insensitive).
//
// Example:
//
//	l := GetEnvLogLevel("STARLOG_LOG_LEVEL", slog.LevelInfo)
func GetEnvLogLevel(key string, defaultValue slog.Level) slog.Level {
	return getEnv(key, defaultValue, parseLogLevel)
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}

	return slog.LevelInfo, errUnrecognized
}

// ParseCommaSeparatedList parses a comma-separated string into a slice of trimmed strings.
// Empty values are filtered out.
func ParseCommaSeparatedList(input string) []string {
	result := make([]string, 0)

	for part := range strings.SplitSeq(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
