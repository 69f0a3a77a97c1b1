package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/starlog-io/starlog/internal/config"
)

// progressInterval is how many lines pass between progress log entries.
const progressInterval = 1000

// Sentinel errors for pipeline construction.
var (
	// ErrNoArchiveClient is returned when a pipeline is created without
	// an archive client.
	ErrNoArchiveClient = errors.New("archive client is required")

	// ErrNoEventWriter is returned when a pipeline is created without
	// an event writer.
	ErrNoEventWriter = errors.New("event writer is required")
)

// Pipeline replays one daily archive at a time: fetch, decode,
// normalize, apply. It holds no per-run state, so a single pipeline
// serves concurrent dataset runs.
type Pipeline struct {
	archive *ArchiveClient
	writer  EventWriter
	logger  *slog.Logger
}

// NewPipeline creates a pipeline over an archive client and an event
// writer.
func NewPipeline(archive *ArchiveClient, writer EventWriter) (*Pipeline, error) {
	if archive == nil {
		return nil, ErrNoArchiveClient
	}

	if writer == nil {
		return nil, ErrNoEventWriter
	}

	return &Pipeline{
		archive: archive,
		writer:  writer,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
	}, nil
}

// Run replays the daily archive of one dataset and returns its report.
// Line-level problems are counted, not propagated; only a failed fetch
// or a broken stream fails the run itself.
func (p *Pipeline) Run(ctx context.Context, dataset Dataset, day time.Time) RunReport {
	report := RunReport{
		RunID:     uuid.NewString(),
		Dataset:   dataset.Name,
		Day:       FormatDay(day),
		Status:    RunCompleted,
		Input:     dataset.ArchiveFile(day),
		StartedAt: time.Now().UTC(),
	}

	logger := p.logger.With(
		slog.String("run_id", report.RunID),
		slog.String("dataset", dataset.Name),
		slog.String("day", report.Day),
	)

	scanner, err := p.archive.Open(ctx, dataset, day)
	if err != nil {
		report.Status = RunFailed
		report.Error = err.Error()
		report.Duration = time.Since(report.StartedAt)

		logger.Error("archive fetch failed", slog.String("error", err.Error()))
		runsTotal.WithLabelValues(dataset.Name, string(report.Status)).Inc()

		return report
	}

	defer func() {
		_ = scanner.Close()
	}()

	logger.Info("dataset run started", slog.String("input", report.Input))

	for scanner.Next() {
		outcome := p.processLine(ctx, dataset, scanner.Line(), logger)

		report.Record(outcome)
		lineOutcomes.WithLabelValues(dataset.Name, string(outcome)).Inc()

		if report.Total%progressInterval == 0 {
			elapsed := time.Since(report.StartedAt)

			logger.Info("progress",
				slog.Int("total", report.Total),
				slog.Int("success", report.Success),
				slog.Int("skipped", report.Skipped),
				slog.Int("failure", report.Failure),
				slog.Duration("elapsed", elapsed),
				slog.Float64("lines_per_second", float64(report.Total)/elapsed.Seconds()),
			)
		}
	}

	if err := scanner.Err(); err != nil {
		report.Status = RunFailed
		report.Error = err.Error()

		logger.Error("archive stream broke", slog.String("error", err.Error()))
	}

	report.Duration = time.Since(report.StartedAt)

	runsTotal.WithLabelValues(dataset.Name, string(report.Status)).Inc()
	runDuration.WithLabelValues(dataset.Name).Observe(report.Duration.Seconds())

	logger.Info("dataset run finished",
		slog.String("status", string(report.Status)),
		slog.Int("total", report.Total),
		slog.Int("success", report.Success),
		slog.Int("skipped", report.Skipped),
		slog.Int("failure", report.Failure),
		slog.Duration("duration", report.Duration),
	)

	return report
}

// processLine classifies and persists a single archive line.
//
// Skips are deliberate non-writes: wrong galaxy flags, a different
// event kind, an empty bundle, or a stale timestamp at the gate.
// Failures are lines the pipeline wanted to persist but could not.
func (p *Pipeline) processLine(ctx context.Context, dataset Dataset, line []byte, logger *slog.Logger) Outcome {
	env, err := ParseEnvelope(line)
	if err != nil {
		logger.Debug("envelope rejected", slog.String("error", err.Error()))

		return OutcomeFailure
	}

	if !env.Processable() {
		return OutcomeSkipped
	}

	// Commodity-style schemas carry no event tag; an empty tag means
	// the dataset's own kind.
	if env.Meta.Event != "" && env.Meta.Event != dataset.Event {
		return OutcomeSkipped
	}

	bundle, err := dataset.Convert(env)
	if err != nil {
		logger.Debug("event rejected", slog.String("error", err.Error()))

		return OutcomeFailure
	}

	if bundle.Empty() {
		return OutcomeSkipped
	}

	applied, err := p.writer.Apply(ctx, &bundle, dataset.Event, env.Meta.Timestamp)
	if err != nil {
		logger.Warn("bundle apply failed", slog.String("error", err.Error()))

		return OutcomeFailure
	}

	if !applied {
		return OutcomeSkipped
	}

	return OutcomeSuccess
}
