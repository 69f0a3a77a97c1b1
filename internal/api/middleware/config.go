// Package middleware provides HTTP middleware components for the starlog API.
package middleware

import (
	"time"

	"github.com/starlog-io/starlog/internal/config"
)

// Config carries the rate limiter's tunables. Rates are requests per
// second; a burst of 0 means burstFactor x rate. The cleanup fields
// control the idle-bucket sweep.
type Config struct {
	GlobalRPS   int
	UploaderRPS int
	UnAuthRPS   int

	GlobalBurst   int
	UploaderBurst int
	UnAuthBurst   int

	CleanupInterval time.Duration
	IdleTimeout     time.Duration
	MaxUploaders    int
}

// LoadConfig reads rate limiter settings from the environment, falling
// back to defaults sized for a single public node.
func LoadConfig() *Config {
	return &Config{
		GlobalRPS:   config.GetEnvInt("STARLOG_GLOBAL_RPS", defaultGlobalRPS),
		UploaderRPS: config.GetEnvInt("STARLOG_UPLOADER_RPS", defaultUploaderRPS),
		UnAuthRPS:   config.GetEnvInt("STARLOG_UNAUTH_RPS", defaultUnAuthRPS),

		GlobalBurst:   config.GetEnvInt("STARLOG_GLOBAL_BURST", 0),
		UploaderBurst: config.GetEnvInt("STARLOG_UPLOADER_BURST", 0),
		UnAuthBurst:   config.GetEnvInt("STARLOG_UNAUTH_BURST", 0),

		CleanupInterval: config.GetEnvDuration("STARLOG_RATE_LIMIT_CLEANUP_INTERVAL", defaultCleanupInterval),
		IdleTimeout:     config.GetEnvDuration("STARLOG_RATE_LIMIT_IDLE_TIMEOUT", defaultIdleTimeout),
		MaxUploaders:    config.GetEnvInt("STARLOG_RATE_LIMIT_MAX_UPLOADERS", defaultMaxUploaders),
	}
}
