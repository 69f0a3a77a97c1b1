package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starlog-io/starlog/internal/config"
)

// DefaultArchiveBaseURL is the public mirror of the EDDN daily
// archives.
const DefaultArchiveBaseURL = "https://edgalaxydata.space/EDDN"

// DefaultConfigPath is the default location of the optional starlog
// configuration file.
const DefaultConfigPath = ".starlog.yaml"

// ConfigPathEnvVar overrides where the configuration file is read from.
const ConfigPathEnvVar = "STARLOG_CONFIG_PATH"

// ErrInvalidPipelineConfig is returned when pipeline configuration
// fails validation.
var ErrInvalidPipelineConfig = errors.New("invalid pipeline configuration")

// PipelineConfig holds the tunables of the ingestion pipeline.
// Values are resolved in three layers: built-in defaults, then the
// optional .starlog.yaml file, then STARLOG_* environment variables.
type PipelineConfig struct {
	// ArchiveBaseURL is where daily archives are fetched from.
	//nolint:tagliatelle // snake_case is intentional for YAML config files
	ArchiveBaseURL string `yaml:"archive_base_url"`

	// RecencyCacheSize bounds the in-memory timestamp cache.
	//nolint:tagliatelle // snake_case is intentional for YAML config files
	RecencyCacheSize int `yaml:"recency_cache_size"`

	// MaxConcurrentRuns bounds how many datasets replay at once.
	//nolint:tagliatelle // snake_case is intentional for YAML config files
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`
}

// LoadPipelineConfig resolves pipeline configuration from defaults,
// the optional configuration file, and the environment, in that order
// of precedence (environment wins).
func LoadPipelineConfig() *PipelineConfig {
	cfg := &PipelineConfig{
		ArchiveBaseURL:    DefaultArchiveBaseURL,
		RecencyCacheSize:  DefaultRecencyCacheSize,
		MaxConcurrentRuns: DefaultMaxConcurrentRuns,
	}

	cfg.applyFile(config.GetEnvStr(ConfigPathEnvVar, DefaultConfigPath))

	cfg.ArchiveBaseURL = config.GetEnvStr("STARLOG_ARCHIVE_BASE_URL", cfg.ArchiveBaseURL)
	cfg.RecencyCacheSize = config.GetEnvInt("STARLOG_RECENCY_CACHE_SIZE", cfg.RecencyCacheSize)
	cfg.MaxConcurrentRuns = config.GetEnvInt("STARLOG_MAX_CONCURRENT_RUNS", cfg.MaxConcurrentRuns)

	return cfg
}

// applyFile overlays values from a YAML configuration file. A missing
// or unreadable file is not an error; the file is optional.
func (c *PipelineConfig) applyFile(path string) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("Config file not found, using defaults",
				slog.String("path", path))

			return
		}

		slog.Warn("Failed to read config file, using defaults",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return
	}

	if len(data) == 0 {
		return
	}

	var file PipelineConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		slog.Warn("Failed to parse config file, using defaults",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return
	}

	if file.ArchiveBaseURL != "" {
		c.ArchiveBaseURL = file.ArchiveBaseURL
	}

	if file.RecencyCacheSize > 0 {
		c.RecencyCacheSize = file.RecencyCacheSize
	}

	if file.MaxConcurrentRuns > 0 {
		c.MaxConcurrentRuns = file.MaxConcurrentRuns
	}
}

// Validate checks the configuration for values the pipeline cannot
// run with.
func (c *PipelineConfig) Validate() error {
	if c.ArchiveBaseURL == "" {
		return fmt.Errorf("%w: archive base URL is required", ErrInvalidPipelineConfig)
	}

	if !strings.HasPrefix(c.ArchiveBaseURL, "http://") && !strings.HasPrefix(c.ArchiveBaseURL, "https://") {
		return fmt.Errorf("%w: archive base URL must be http or https", ErrInvalidPipelineConfig)
	}

	if c.RecencyCacheSize <= 0 {
		return fmt.Errorf("%w: recency cache size must be greater than zero", ErrInvalidPipelineConfig)
	}

	if c.MaxConcurrentRuns <= 0 {
		return fmt.Errorf("%w: max concurrent runs must be greater than zero", ErrInvalidPipelineConfig)
	}

	return nil
}
