package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starlog-io/starlog/internal/api/middleware"
)

const (
	healthCheckTimeout = 2 * time.Second

	serviceName    = "starlog"
	serviceVersion = "v0.1.0" // TODO: inject version at build time
)

type (
	// HealthStatus is the /health response body.
	HealthStatus struct {
		Status      string `json:"status"`
		ServiceName string `json:"serviceName"`
		Version     string `json:"version"`
		Uptime      string `json:"uptime,omitempty"`
	}

	// Route pairs a mux pattern with its handler for declarative
	// registration.
	Route struct {
		Path    string
		Handler http.HandlerFunc
	}
)

func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Probe and observability endpoints skip authentication; everything
	// else on the server requires a key.
	s.registerPublicRoutes(
		mux,
		Route{"GET /ping", s.handlePing},
		Route{"GET /ready", s.handleReady},
		Route{"GET /health", s.handleHealth},
		Route{"GET /metrics", promhttp.Handler().ServeHTTP},
		Route{"/", s.handleNotFound},
	)

	// Replay triggers. The literal "today" segment wins over the {day}
	// wildcard under Go 1.22 ServeMux precedence rules.
	mux.HandleFunc("POST /api/v1/ingest/today", s.handleIngestToday)
	mux.HandleFunc("POST /api/v1/ingest/{day}", s.handleIngestDay)
	mux.HandleFunc("POST /api/v1/ingest/{day}/{dataset}", s.handleIngestDataset)

	// Method-less twins of the replay patterns catch non-POST requests,
	// keeping 405s in problem format instead of the mux's plain text.
	mux.HandleFunc("/api/v1/ingest/today", s.handleIngestMethodNotAllowed)
	mux.HandleFunc("/api/v1/ingest/{day}", s.handleIngestMethodNotAllowed)
	mux.HandleFunc("/api/v1/ingest/{day}/{dataset}", s.handleIngestMethodNotAllowed)
}

// registerPublicRoutes registers routes on the mux and exempts their
// paths from the authentication middleware. Only probes and metrics
// belong here.
func (s *Server) registerPublicRoutes(mux *http.ServeMux, routes ...Route) {
	for _, route := range routes {
		mux.Handle(route.Path, route.Handler)

		// The auth bypass matches on r.URL.Path, which never carries
		// the method prefix a mux pattern may have.
		path := route.Path
		if method, rest, found := strings.Cut(path, " "); found && isHTTPMethod(method) {
			path = strings.TrimSpace(rest)
		}

		if path == "" {
			s.logger.Warn("Ignoring malformed route", slog.String("pattern", route.Path))

			continue
		}

		middleware.RegisterPublicEndpoint(path)
	}
}

func isHTTPMethod(candidate string) bool {
	switch candidate {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// handlePing answers liveness probes.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Starlog-Version", serviceVersion)
	s.writeText(w, r, http.StatusOK, "pong")
}

// handleReady answers readiness probes by checking that the event
// writer's storage backend is reachable. A 503 tells the orchestrator
// to hold traffic until the backend recovers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	// Without an event writer the server cannot ingest anything.
	if s.writer == nil {
		s.logger.Error("Event writer not configured, readiness check failed",
			slog.String("correlation_id", correlationID),
		)
		s.writeText(w, r, http.StatusServiceUnavailable, "storage unavailable")

		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.writer.HealthCheck(ctx); err != nil {
		s.logger.Error("Storage health check failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
		s.writeText(w, r, http.StatusServiceUnavailable, "storage unavailable")

		return
	}

	s.writeText(w, r, http.StatusOK, "ready")
}

// handleHealth reports service identity and uptime.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	var uptime string
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Round(time.Second).String()
	}

	data, err := json.Marshal(HealthStatus{
		Status:      "healthy",
		ServiceName: serviceName,
		Version:     serviceVersion,
		Uptime:      uptime,
	})
	if err != nil {
		s.logger.Error("Failed to encode health response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to encode health response"))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Starlog-Version", serviceVersion)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write health response",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}
}

// handleNotFound keeps 404s in problem format.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, s.logger, NotFound("The requested resource was not found"))
}

// handleIngestMethodNotAllowed answers non-POST requests on replay
// paths. POST requests never land here; the method-specific patterns
// take precedence.
func (s *Server) handleIngestMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	WriteErrorResponse(w, r, s.logger, MethodNotAllowed(
		fmt.Sprintf("%s is not supported here; replay runs are started with POST", r.Method),
	))
}

// writeText writes a small plain-text response, logging write failures
// instead of surfacing them.
func (s *Server) writeText(w http.ResponseWriter, r *http.Request, status int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)

	if _, err := io.WriteString(w, body); err != nil {
		s.logger.Error("Failed to write response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}
