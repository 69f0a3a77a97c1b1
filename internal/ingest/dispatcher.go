package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starlog-io/starlog/internal/config"
)

// DefaultMaxConcurrentRuns bounds how many dataset archives are
// replayed at once. Each run holds one open HTTP stream and a burst of
// short database transactions; four keeps the database comfortable.
const DefaultMaxConcurrentRuns = 4

// Sentinel errors for dispatching runs.
var (
	// ErrNoRunner is returned when a dispatcher is created without a
	// runner.
	ErrNoRunner = errors.New("runner is required")

	// ErrRunInFlight is returned when a run is requested while another
	// one is still executing. Runs are serialized per process.
	ErrRunInFlight = errors.New("an ingestion run is already in flight")

	// ErrUnknownDataset is returned when a run names a dataset that is
	// not registered.
	ErrUnknownDataset = errors.New("unknown dataset")
)

// Runner executes a single dataset replay. Pipeline is the production
// implementation; tests substitute stubs.
type Runner interface {
	Run(ctx context.Context, dataset Dataset, day time.Time) RunReport
}

// Compile-time assertion that Pipeline satisfies Runner.
var _ Runner = (*Pipeline)(nil)

// Dispatcher fans a day's replay out over the registered datasets with
// bounded concurrency. A panic inside one dataset's run is captured as
// that dataset's failed report and never disturbs the others.
type Dispatcher struct {
	runner        Runner
	logger        *slog.Logger
	maxConcurrent int

	// inFlight serializes whole dispatches; TryLock failures surface
	// as ErrRunInFlight.
	inFlight sync.Mutex
}

// DispatcherOption configures optional Dispatcher behavior.
type DispatcherOption func(*Dispatcher)

// WithMaxConcurrentRuns overrides how many datasets run at once.
// Values below one fall back to the default.
func WithMaxConcurrentRuns(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n >= 1 {
			d.maxConcurrent = n
		}
	}
}

// NewDispatcher creates a dispatcher over a runner.
func NewDispatcher(runner Runner, opts ...DispatcherOption) (*Dispatcher, error) {
	if runner == nil {
		return nil, ErrNoRunner
	}

	dispatcher := &Dispatcher{
		runner: runner,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
		maxConcurrent: DefaultMaxConcurrentRuns,
	}

	for _, opt := range opts {
		opt(dispatcher)
	}

	return dispatcher, nil
}

// RunAll replays every registered dataset for the given day and
// returns the reports in registry order. Only one dispatch runs at a
// time; concurrent calls get ErrRunInFlight.
func (d *Dispatcher) RunAll(ctx context.Context, day time.Time) ([]RunReport, error) {
	if !d.inFlight.TryLock() {
		return nil, ErrRunInFlight
	}
	defer d.inFlight.Unlock()

	return d.runMany(ctx, Datasets(), day), nil
}

// RunDataset replays a single dataset for the given day.
func (d *Dispatcher) RunDataset(ctx context.Context, name string, day time.Time) (RunReport, error) {
	dataset, ok := DatasetByName(name)
	if !ok {
		return RunReport{}, fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}

	if !d.inFlight.TryLock() {
		return RunReport{}, ErrRunInFlight
	}
	defer d.inFlight.Unlock()

	reports := d.runMany(ctx, []Dataset{dataset}, day)

	return reports[0], nil
}

func (d *Dispatcher) runMany(ctx context.Context, sets []Dataset, day time.Time) []RunReport {
	reports := make([]RunReport, len(sets))
	slots := make(chan struct{}, d.maxConcurrent)

	var wg sync.WaitGroup

	for i, dataset := range sets {
		wg.Add(1)

		go func(i int, dataset Dataset) {
			defer wg.Done()

			slots <- struct{}{}
			defer func() { <-slots }()

			reports[i] = d.runOne(ctx, dataset, day)
		}(i, dataset)
	}

	wg.Wait()

	return reports
}

// runOne executes a single dataset run, converting a panic into a
// failed report for that dataset.
func (d *Dispatcher) runOne(ctx context.Context, dataset Dataset, day time.Time) (report RunReport) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dataset run panicked",
				slog.String("dataset", dataset.Name),
				slog.String("day", FormatDay(day)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)

			report = RunReport{
				RunID:     uuid.NewString(),
				Dataset:   dataset.Name,
				Day:       FormatDay(day),
				Status:    RunFailed,
				Input:     dataset.ArchiveFile(day),
				StartedAt: time.Now().UTC(),
				Error:     fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	return d.runner.Run(ctx, dataset, day)
}
