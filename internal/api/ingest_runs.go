package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starlog-io/starlog/internal/api/middleware"
	"github.com/starlog-io/starlog/internal/ingest"
)

// DayRunResponse wraps the per-dataset reports of a whole-day replay.
type DayRunResponse struct {
	Day     string             `json:"day"`
	Reports []ingest.RunReport `json:"reports"`
}

// handleIngestToday replays every registered dataset for the current UTC day.
//
// The run executes synchronously within the request; the response is the
// full set of per-dataset reports. The server's write timeout is sized for
// this (see LoadServerConfig).
func (s *Server) handleIngestToday(w http.ResponseWriter, r *http.Request) {
	s.runAllDatasets(w, r, time.Now().UTC())
}

// handleIngestDay replays every registered dataset for the day named in
// the path as YYYY-MM-DD.
func (s *Server) handleIngestDay(w http.ResponseWriter, r *http.Request) {
	rawDay := r.PathValue("day")

	day, err := ingest.ParseDay(rawDay)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(
			fmt.Sprintf("Invalid day %q: expected YYYY-MM-DD", rawDay),
		))

		return
	}

	s.runAllDatasets(w, r, day)
}

// handleIngestDataset replays a single dataset for the day named in the path.
func (s *Server) handleIngestDataset(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	rawDay := r.PathValue("day")
	name := r.PathValue("dataset")

	day, err := ingest.ParseDay(rawDay)
	if err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest(
			fmt.Sprintf("Invalid day %q: expected YYYY-MM-DD", rawDay),
		))

		return
	}

	if s.dispatcher == nil {
		s.writeIngestionUnavailable(w, r, correlationID)

		return
	}

	s.logIngestionStart(r, correlationID, day, name)

	report, err := s.dispatcher.RunDataset(r.Context(), name, day)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrUnknownDataset):
			WriteErrorResponse(w, r, s.logger, BadRequest(
				fmt.Sprintf("Unknown dataset %q: expected one of %s",
					name, strings.Join(ingest.DatasetNames(), ", ")),
			))
		case errors.Is(err, ingest.ErrRunInFlight):
			WriteErrorResponse(w, r, s.logger, Conflict(
				"An ingestion run is already in flight",
			))
		default:
			s.logger.Error("Dataset run failed to start",
				slog.String("correlation_id", correlationID),
				slog.String("dataset", name),
				slog.String("day", ingest.FormatDay(day)),
				slog.String("error", err.Error()),
			)
			WriteErrorResponse(w, r, s.logger, InternalServerError("Ingestion run failed to start"))
		}

		return
	}

	s.logger.Info("Dataset run finished",
		slog.String("correlation_id", correlationID),
		slog.String("dataset", report.Dataset),
		slog.String("day", report.Day),
		slog.String("status", string(report.Status)),
		slog.Int("total", report.Total),
		slog.Int("success", report.Success),
		slog.Int("skipped", report.Skipped),
		slog.Int("failure", report.Failure),
	)

	s.writeJSON(w, r, report)
}

// runAllDatasets dispatches a whole-day replay and writes the report set.
// Shared by the today and explicit-day handlers.
func (s *Server) runAllDatasets(w http.ResponseWriter, r *http.Request, day time.Time) {
	correlationID := middleware.GetCorrelationID(r.Context())

	if s.dispatcher == nil {
		s.writeIngestionUnavailable(w, r, correlationID)

		return
	}

	s.logIngestionStart(r, correlationID, day, "all")

	reports, err := s.dispatcher.RunAll(r.Context(), day)
	if err != nil {
		if errors.Is(err, ingest.ErrRunInFlight) {
			WriteErrorResponse(w, r, s.logger, Conflict(
				"An ingestion run is already in flight",
			))

			return
		}

		s.logger.Error("Full-day run failed to start",
			slog.String("correlation_id", correlationID),
			slog.String("day", ingest.FormatDay(day)),
			slog.String("error", err.Error()),
		)
		WriteErrorResponse(w, r, s.logger, InternalServerError("Ingestion run failed to start"))

		return
	}

	var total, success, skipped, failure int

	for _, report := range reports {
		total += report.Total
		success += report.Success
		skipped += report.Skipped
		failure += report.Failure
	}

	s.logger.Info("Full-day run finished",
		slog.String("correlation_id", correlationID),
		slog.String("day", ingest.FormatDay(day)),
		slog.Int("datasets", len(reports)),
		slog.Int("total", total),
		slog.Int("success", success),
		slog.Int("skipped", skipped),
		slog.Int("failure", failure),
	)

	s.writeJSON(w, r, DayRunResponse{
		Day:     ingest.FormatDay(day),
		Reports: reports,
	})
}

// logIngestionStart records who asked for which replay. The uploader is
// present whenever the authentication middleware is enabled.
func (s *Server) logIngestionStart(r *http.Request, correlationID string, day time.Time, dataset string) {
	attrs := []any{
		slog.String("correlation_id", correlationID),
		slog.String("day", ingest.FormatDay(day)),
		slog.String("dataset", dataset),
	}

	if uploaderCtx, ok := middleware.GetUploaderContext(r.Context()); ok {
		attrs = append(attrs, slog.String("uploader_id", uploaderCtx.UploaderID))
	}

	s.logger.Info("Starting ingestion run", attrs...)
}

// writeIngestionUnavailable reports that the server was started without a
// dispatcher, so replay endpoints cannot serve.
func (s *Server) writeIngestionUnavailable(w http.ResponseWriter, r *http.Request, correlationID string) {
	s.logger.Error("Dispatcher not configured - ingestion endpoints disabled",
		slog.String("correlation_id", correlationID),
	)

	WriteErrorResponse(w, r, s.logger, NewProblemDetail(
		http.StatusServiceUnavailable,
		"Service Unavailable",
		"Ingestion is not configured on this server",
	))
}

// writeJSON marshals payload and writes it with a 200 status. Marshal
// failures fall back to an RFC 7807 internal error.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, payload any) {
	correlationID := middleware.GetCorrelationID(r.Context())

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("Failed to encode run report",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to encode run report"))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write run report",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
	}
}
