package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/starlog-io/starlog/internal/api/middleware"
	"github.com/starlog-io/starlog/internal/ingest"
	"github.com/starlog-io/starlog/internal/storage"
)

// Server is the HTTP control plane: replay triggers, health probes, and
// the Prometheus scrape endpoint, behind the full middleware chain.
type Server struct {
	httpServer  *http.Server
	logger      *slog.Logger
	config      *ServerConfig
	startTime   time.Time
	keyStore    storage.KeyStore
	rateLimiter middleware.RateLimiter
	dispatcher  *ingest.Dispatcher
	writer      ingest.EventWriter
}

// NewServer wires routes, middleware, and logging into a ready-to-start
// server. Any dependency may be nil, which disables the feature it
// backs: a nil keyStore turns off authentication, a nil rateLimiter
// turns off rate limiting, a nil dispatcher makes replay endpoints
// answer 503, and a nil writer makes the readiness probe fail.
func NewServer(
	cfg *ServerConfig,
	keyStore storage.KeyStore,
	rateLimiter middleware.RateLimiter,
	dispatcher *ingest.Dispatcher,
	writer ingest.EventWriter,
) *Server {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	server := &Server{
		logger:      logger,
		config:      cfg,
		keyStore:    keyStore,
		rateLimiter: rateLimiter,
		dispatcher:  dispatcher,
		writer:      writer,
	}

	mux := http.NewServeMux()
	server.setupRoutes(mux)

	if keyStore != nil { // pragma: allowlist secret
		logger.Info("Uploader authentication enabled")
	} else {
		logger.Warn("No key store configured, uploader authentication disabled")
	}

	if rateLimiter != nil {
		logger.Info("Rate limiting enabled")
	} else {
		logger.Warn("No rate limiter configured, rate limiting disabled")
	}

	server.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      server.buildHandler(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// buildHandler stacks the middleware chain onto the mux. Ordering
// constraints: recovery must sit inside correlation so panics carry an
// ID; rate limiting sits after authentication so authenticated traffic
// is billed to its uploader; request logging sits after rate limiting
// so over-limit floods do not drown the log.
func (s *Server) buildHandler(mux *http.ServeMux) http.Handler {
	var inner http.Handler = mux
	if s.config.MaxRequestSize > 0 {
		inner = http.MaxBytesHandler(inner, s.config.MaxRequestSize)
	}

	return middleware.Apply(inner,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(s.logger),
		middleware.WithAuthUploader(s.keyStore, s.logger),
		middleware.WithRateLimit(s.rateLimiter, s.logger),
		middleware.WithRequestLogger(s.logger),
		middleware.WithCORS(s.config.ToCORSConfig()),
	)
}

// Start validates the configuration, serves until SIGINT or SIGTERM,
// then drains in-flight requests. It blocks for the server's lifetime.
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("Starting starlog API server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

		return s.shutdown()
	}
}

// shutdown drains the HTTP server, then releases the key store and the
// rate limiter's background sweep.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Initiating server shutdown",
		slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
	)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown failed",
			slog.String("error", err.Error()),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.closeDependency("key store", s.keyStore)
	s.closeDependency("rate limiter", s.rateLimiter)

	s.logger.Info("Server shutdown completed")

	return nil
}

// closeDependency closes dep when it holds resources worth releasing,
// which it signals by implementing io.Closer.
func (s *Server) closeDependency(name string, dep any) {
	if dep == nil {
		return
	}

	closer, ok := dep.(io.Closer)
	if !ok {
		return
	}

	if err := closer.Close(); err != nil {
		s.logger.Error("Failed to close dependency",
			slog.String("dependency", name),
			slog.String("error", err.Error()),
		)

		return
	}

	s.logger.Info("Dependency closed", slog.String("dependency", name))
}
