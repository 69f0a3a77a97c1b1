// Package middleware provides HTTP middleware components for the starlog API.
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recovery converts handler panics into 500 problem responses. The
// panic value and stack are logged with the correlation ID so a crash
// report can be matched to the submission that caused it.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}

				correlationID := GetCorrelationID(r.Context())

				logger.Error("panic recovered",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("correlation_id", correlationID),
					slog.Any("panic", recovered),
					slog.String("stack", string(debug.Stack())),
				)

				detail := "An unexpected error occurred while processing the request"

				if err := writeProblem(w, r, http.StatusInternalServerError, detail, correlationID); err != nil {
					logger.Error("failed to write panic response",
						slog.String("correlation_id", correlationID),
						slog.String("error", err.Error()),
					)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
