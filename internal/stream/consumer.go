package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"

	"github.com/starlog-io/starlog/internal/config"
	"github.com/starlog-io/starlog/internal/ingest"
	"github.com/starlog-io/starlog/internal/storage"
)

// applyRetryMaxElapsed bounds how long one message waits for the
// database to come back before its run fails. The message stays
// uncommitted for the whole wait, so the bound also caps how far the
// consumer lags behind the feed during an outage.
const applyRetryMaxElapsed = 5 * time.Minute

// Sentinel errors for consumer construction.
var (
	// ErrNoReader is returned when a consumer is created without a
	// message reader.
	ErrNoReader = errors.New("message reader is required")

	// ErrNoEventWriter is returned when a consumer is created without
	// an event writer.
	ErrNoEventWriter = errors.New("event writer is required")
)

// MessageReader is what the consumer needs from a Kafka reader. The
// concrete implementation is *kafka.Reader; tests substitute stubs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Compile-time assertion that kafka.Reader satisfies MessageReader.
var _ MessageReader = (*kafka.Reader)(nil)

// Consumer applies live journal envelopes from Kafka, one message at a
// time. Offsets are committed only after a message has been handled,
// so a crash replays at-least-once and the freshness gate absorbs the
// duplicates.
type Consumer struct {
	reader        MessageReader
	writer        ingest.EventWriter
	logger        *slog.Logger
	statsInterval time.Duration

	// counters for periodic stats logging; Run is the only writer.
	total   int
	success int
	skipped int
	failure int
}

// ConsumerOption configures optional Consumer behavior.
type ConsumerOption func(*Consumer)

// WithStatsInterval overrides how often consumption stats are logged.
func WithStatsInterval(interval time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if interval > 0 {
			c.statsInterval = interval
		}
	}
}

// NewReader builds a Kafka reader for the configured topic and
// consumer group. CommitInterval stays zero so commits are synchronous
// and entirely under the consumer's control.
func NewReader(cfg *Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
		MaxWait:  cfg.MaxWait,

		// A fresh consumer group starts at the tail: history is served
		// by the daily archives, the feed is only the live edge.
		StartOffset: kafka.LastOffset,
	})
}

// NewConsumer creates a consumer over a message reader and an event
// writer.
func NewConsumer(reader MessageReader, writer ingest.EventWriter, opts ...ConsumerOption) (*Consumer, error) {
	if reader == nil {
		return nil, ErrNoReader
	}

	if writer == nil {
		return nil, ErrNoEventWriter
	}

	consumer := &Consumer{
		reader: reader,
		writer: writer,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
		statsInterval: defaultStatsInterval,
	}

	for _, opt := range opts {
		opt(consumer)
	}

	return consumer, nil
}

// Run consumes messages until the context is canceled or the reader is
// closed. Fetch errors are retried with exponential backoff; a message
// is committed once handled, whatever its outcome, except when the
// database stays unreachable past the retry budget.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("stream consumer started")

	lastStats := time.Now()

	for {
		msg, err := c.fetchWithRetry(ctx)
		if err != nil {
			c.logStats()

			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				c.logger.Info("stream consumer stopped")

				return nil
			}

			return fmt.Errorf("fetch message: %w", err)
		}

		outcome := c.handleMessage(ctx, msg)

		// A canceled context aborts the in-flight message; leave it
		// uncommitted so the next start replays it.
		if ctx.Err() != nil {
			c.logStats()
			c.logger.Info("stream consumer stopped")

			return nil
		}

		c.record(outcome)
		messagesTotal.WithLabelValues(string(outcome)).Inc()

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logStats()

			if ctx.Err() != nil {
				c.logger.Info("stream consumer stopped")

				return nil
			}

			return fmt.Errorf("commit offset: %w", err)
		}

		if time.Since(lastStats) >= c.statsInterval {
			c.logStats()

			lastStats = time.Now()
		}
	}
}

// Close closes the underlying reader, which unblocks a pending fetch.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// fetchWithRetry fetches the next message, backing off on transient
// reader errors. The reader reconnects internally; the backoff keeps a
// broken broker from turning into a tight error loop.
func (c *Consumer) fetchWithRetry(ctx context.Context) (kafka.Message, error) {
	var msg kafka.Message

	// BackOff implementations are stateful; always use a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // retry until the context ends

	err := backoff.Retry(func() error {
		var fetchErr error

		msg, fetchErr = c.reader.FetchMessage(ctx)
		if fetchErr == nil {
			return nil
		}

		if errors.Is(fetchErr, context.Canceled) ||
			errors.Is(fetchErr, context.DeadlineExceeded) ||
			errors.Is(fetchErr, io.EOF) {
			return backoff.Permanent(fetchErr)
		}

		c.logger.Warn("fetch failed, backing off", slog.String("error", fetchErr.Error()))

		return fetchErr
	}, backoff.WithContext(bo, ctx))

	return msg, err
}

// handleMessage classifies and persists one live feed message. The
// outcomes mirror archive replay: skips are deliberate non-writes,
// failures are messages the consumer wanted to persist but could not.
func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) ingest.Outcome {
	env, err := ingest.ParseEnvelope(msg.Value)
	if err != nil {
		c.logger.Debug("envelope rejected", slog.String("error", err.Error()))

		return ingest.OutcomeFailure
	}

	if !env.Processable() {
		return ingest.OutcomeSkipped
	}

	// The live feed multiplexes every schema onto one topic; route by
	// event tag. Commodity-style messages carry no tag and are covered
	// by the daily archives instead.
	dataset, ok := ingest.DatasetByEvent(env.Meta.Event)
	if !ok {
		return ingest.OutcomeSkipped
	}

	bundle, err := dataset.Convert(env)
	if err != nil {
		c.logger.Debug("event rejected",
			slog.String("dataset", dataset.Name),
			slog.String("error", err.Error()),
		)

		return ingest.OutcomeFailure
	}

	if bundle.Empty() {
		return ingest.OutcomeSkipped
	}

	applied, err := c.applyWithRetry(ctx, &bundle, dataset.Event, env.Meta.Timestamp)
	if err != nil {
		c.logger.Warn("bundle apply failed",
			slog.String("dataset", dataset.Name),
			slog.String("error", err.Error()),
		)

		return ingest.OutcomeFailure
	}

	if !applied {
		return ingest.OutcomeSkipped
	}

	return ingest.OutcomeSuccess
}

// applyWithRetry retries Apply while the database is unreachable. Lock
// timeouts and deadlocks are single-event collisions, not outages;
// they fail the message and the next envelope for the same entity
// repairs it.
func (c *Consumer) applyWithRetry(ctx context.Context, bundle *ingest.Bundle, event, timestamp string) (bool, error) {
	var applied bool

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = applyRetryMaxElapsed

	err := backoff.Retry(func() error {
		var applyErr error

		applied, applyErr = c.writer.Apply(ctx, bundle, event, timestamp)
		if applyErr == nil {
			return nil
		}

		if errors.Is(applyErr, storage.ErrDatabaseUnavailable) {
			c.logger.Warn("database unavailable, backing off",
				slog.String("event", event),
			)

			return applyErr
		}

		return backoff.Permanent(applyErr)
	}, backoff.WithContext(bo, ctx))

	return applied, err
}

// record adds one message outcome to the stats counters.
func (c *Consumer) record(outcome ingest.Outcome) {
	c.total++

	switch outcome {
	case ingest.OutcomeSuccess:
		c.success++
	case ingest.OutcomeSkipped:
		c.skipped++
	case ingest.OutcomeFailure:
		c.failure++
	}
}

// logStats reports cumulative consumption counters.
func (c *Consumer) logStats() {
	c.logger.Info("stream progress",
		slog.Int("total", c.total),
		slog.Int("success", c.success),
		slog.Int("skipped", c.skipped),
		slog.Int("failure", c.failure),
	)
}
