// Package main provides the starlog ingestion service.
//
// The service exposes the HTTP control plane: replay endpoints that
// stream daily journal archives into PostgreSQL under the freshness
// gate, plus health and metrics endpoints.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/starlog-io/starlog/internal/api"
	"github.com/starlog-io/starlog/internal/api/middleware"
	"github.com/starlog-io/starlog/internal/config"
	"github.com/starlog-io/starlog/internal/ingest"
	"github.com/starlog-io/starlog/internal/storage"
)

// Version information.
const (
	version = "0.1.0-dev"
	name    = "starlog"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	serverConfig := api.LoadServerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	logger.Info("Starting starlog service",
		slog.String("service", name),
		slog.String("version", version),
		slog.String("address", serverConfig.Address()),
		slog.Duration("read_timeout", serverConfig.ReadTimeout),
		slog.Duration("write_timeout", serverConfig.WriteTimeout),
		slog.String("log_level", serverConfig.LogLevel.String()),
	)

	middlewareConfig := middleware.LoadConfig()
	rateLimiter := middleware.NewInMemoryRateLimiter(middlewareConfig)

	logger.Info("Rate limiter initialized",
		slog.Int("global_rps", middlewareConfig.GlobalRPS),
		slog.Int("global_burst", middlewareConfig.GlobalBurst),
		slog.Int("uploader_rps", middlewareConfig.UploaderRPS),
		slog.Int("uploader_burst", middlewareConfig.UploaderBurst),
		slog.Int("unauth_rps", middlewareConfig.UnAuthRPS),
		slog.Int("unauth_burst", middlewareConfig.UnAuthBurst),
	)

	storageConfig := storage.LoadConfig()

	dbConn, err := storage.NewConnection(storageConfig)
	if err != nil {
		logger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		_ = dbConn.Close()
	}()

	// Deferred closers never run past os.Exit, so fatal startup errors
	// close the database handle themselves.
	fatal := func(msg string, err error) {
		logger.Error(msg, slog.String("error", err.Error()))

		_ = dbConn.Close()
		os.Exit(1)
	}

	var keyStore storage.KeyStore

	if config.GetEnvBool("STARLOG_AUTH_ENABLED", false) {
		keyStore, err = storage.NewPersistentKeyStore(dbConn)
		if err != nil {
			fatal("Failed to connect to persistent key store", err)
		}

		logger.Info("Uploader authentication enabled",
			slog.String("database_url", storageConfig.MaskDatabaseURL()),
		)
	} else {
		logger.Warn("Uploader authentication disabled",
			slog.String("security", "Only use on trusted networks (localhost, VPN, internal)"),
			slog.String("note", "Set STARLOG_AUTH_ENABLED=true to enable API key authentication"),
		)
	}

	pipelineConfig := ingest.LoadPipelineConfig()
	if err := pipelineConfig.Validate(); err != nil {
		fatal("Invalid pipeline configuration", err)
	}

	cache, err := ingest.NewRecencyCache(pipelineConfig.RecencyCacheSize)
	if err != nil {
		fatal("Failed to create recency cache", err)
	}

	journalStore, err := storage.NewJournalStore(dbConn, cache)
	if err != nil {
		fatal("Failed to create journal store", err)
	}

	logger.Info("Journal store initialized",
		slog.String("database_url", storageConfig.MaskDatabaseURL()),
		slog.Int("recency_cache_size", pipelineConfig.RecencyCacheSize),
		slog.Int("database_max_open_conns", storageConfig.MaxOpenConns),
		slog.Int("database_max_idle_conns", storageConfig.MaxIdleConns),
		slog.Duration("database_conn_max_lifetime", storageConfig.ConnMaxLifetime),
		slog.Duration("database_conn_max_idle_time", storageConfig.ConnMaxIdleTime),
	)

	pipeline, err := ingest.NewPipeline(ingest.NewArchiveClient(pipelineConfig.ArchiveBaseURL), journalStore)
	if err != nil {
		fatal("Failed to create pipeline", err)
	}

	dispatcher, err := ingest.NewDispatcher(pipeline,
		ingest.WithMaxConcurrentRuns(pipelineConfig.MaxConcurrentRuns),
	)
	if err != nil {
		fatal("Failed to create dispatcher", err)
	}

	logger.Info("Ingestion pipeline initialized",
		slog.String("archive_base_url", pipelineConfig.ArchiveBaseURL),
		slog.Int("max_concurrent_runs", pipelineConfig.MaxConcurrentRuns),
	)

	server := api.NewServer(serverConfig, keyStore, rateLimiter, dispatcher, journalStore)

	if err := server.Start(); err != nil {
		logger.Error("Server failed to start", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("starlog service stopped")
}
