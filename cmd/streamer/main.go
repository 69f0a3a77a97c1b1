// Package main provides the starlog live feed consumer.
//
// The streamer consumes journal envelopes from a Kafka topic and
// applies them through the same freshness-gated persistence path the
// archive replay uses. Offsets are committed only after a message has
// been handled, so restarts replay at-least-once and the gate absorbs
// the duplicates.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/starlog-io/starlog/internal/config"
	"github.com/starlog-io/starlog/internal/ingest"
	"github.com/starlog-io/starlog/internal/storage"
	"github.com/starlog-io/starlog/internal/stream"
)

// Version information.
const (
	version = "0.1.0-dev"
	name    = "streamer"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}))

	streamConfig := stream.LoadConfig()
	if err := streamConfig.Validate(); err != nil {
		logger.Error("Invalid stream configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pipelineConfig := ingest.LoadPipelineConfig()
	if err := pipelineConfig.Validate(); err != nil {
		logger.Error("Invalid pipeline configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	storageConfig := storage.LoadConfig()

	dbConn, err := storage.NewConnection(storageConfig)
	if err != nil {
		logger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		_ = dbConn.Close()
	}()

	cache, err := ingest.NewRecencyCache(pipelineConfig.RecencyCacheSize)
	if err != nil {
		logger.Error("Failed to create recency cache", slog.String("error", err.Error()))

		_ = dbConn.Close()
		//nolint:gocritic // Explicit cleanup before os.Exit is intentional (defer won't run)
		os.Exit(1)
	}

	journalStore, err := storage.NewJournalStore(dbConn, cache)
	if err != nil {
		logger.Error("Failed to create journal store", slog.String("error", err.Error()))

		_ = dbConn.Close()
		os.Exit(1)
	}

	reader := stream.NewReader(streamConfig)

	consumer, err := stream.NewConsumer(reader, journalStore,
		stream.WithStatsInterval(streamConfig.StatsInterval),
	)
	if err != nil {
		logger.Error("Failed to create consumer", slog.String("error", err.Error()))

		_ = reader.Close()
		_ = dbConn.Close()
		os.Exit(1)
	}

	logger.Info("Starting starlog streamer",
		slog.String("service", name),
		slog.String("version", version),
		slog.String("topic", streamConfig.Topic),
		slog.String("group_id", streamConfig.GroupID),
		slog.Int("brokers", len(streamConfig.Brokers)),
		slog.String("database_url", storageConfig.MaskDatabaseURL()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := consumer.Run(ctx)

	if err := consumer.Close(); err != nil {
		logger.Error("Failed to close consumer", slog.String("error", err.Error()))
	}

	if runErr != nil {
		logger.Error("Consumer stopped with error", slog.String("error", runErr.Error()))

		_ = dbConn.Close()
		os.Exit(1)
	}

	logger.Info("starlog streamer stopped")
}
