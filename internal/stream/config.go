// Package stream consumes live journal envelopes from a Kafka topic and
// applies them through the same freshness-gated persistence path the
// daily archive replay uses.
package stream

import (
	"errors"
	"time"

	"github.com/starlog-io/starlog/internal/config"
)

const (
	defaultTopic         = "starlog.journal"
	defaultGroupID       = "starlog-streamer"
	defaultMinBytes      = 1
	defaultMaxBytes      = 10 * 1024 * 1024 // 10 MB
	defaultMaxWait       = time.Second
	defaultStatsInterval = time.Minute
)

var (
	// ErrNoBrokers indicates the broker list is empty.
	ErrNoBrokers = errors.New("at least one Kafka broker is required")

	// ErrEmptyTopic indicates the topic name is empty.
	ErrEmptyTopic = errors.New("topic cannot be empty")

	// ErrEmptyGroupID indicates the consumer group id is empty.
	ErrEmptyGroupID = errors.New("consumer group id cannot be empty")
)

// Config holds Kafka consumer configuration.
// Pure configuration only - no runtime dependencies.
type Config struct {
	Brokers       []string
	Topic         string
	GroupID       string
	MinBytes      int
	MaxBytes      int
	MaxWait       time.Duration
	StatsInterval time.Duration
}

// LoadConfig loads consumer configuration from environment variables with sensible defaults.
func LoadConfig() *Config {
	return &Config{
		Brokers: config.ParseCommaSeparatedList(
			config.GetEnvStr("STARLOG_KAFKA_BROKERS", "localhost:9092"),
		),
		Topic:         config.GetEnvStr("STARLOG_KAFKA_TOPIC", defaultTopic),
		GroupID:       config.GetEnvStr("STARLOG_KAFKA_GROUP_ID", defaultGroupID),
		MinBytes:      config.GetEnvInt("STARLOG_KAFKA_MIN_BYTES", defaultMinBytes),
		MaxBytes:      config.GetEnvInt("STARLOG_KAFKA_MAX_BYTES", defaultMaxBytes),
		MaxWait:       config.GetEnvDuration("STARLOG_KAFKA_MAX_WAIT", defaultMaxWait),
		StatsInterval: config.GetEnvDuration("STARLOG_STREAM_STATS_INTERVAL", defaultStatsInterval),
	}
}

// Validate validates the consumer configuration.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}

	if c.Topic == "" {
		return ErrEmptyTopic
	}

	if c.GroupID == "" {
		return ErrEmptyGroupID
	}

	return nil
}
