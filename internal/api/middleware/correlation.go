// Package middleware provides HTTP middleware components for the starlog API.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// correlationHeader carries the request's correlation ID on the wire.
// Relays and replay tooling set it so one submission can be traced
// across services; anything without one gets a fresh ID here.
const correlationHeader = "X-Correlation-ID"

// correlationIDKey keys the correlation ID in a request context.
type correlationIDKey struct{}

// CorrelationID tags every request with a correlation ID. An inbound
// X-Correlation-ID header wins; otherwise a new ID is generated. The
// ID is echoed on the response and stored in the request context for
// downstream logging.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(correlationHeader)
			if id == "" {
				id = uuid.NewString()
			}

			w.Header().Set(correlationHeader, id)

			ctx := context.WithValue(r.Context(), correlationIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCorrelationID returns the request's correlation ID, or "unknown"
// for contexts that never passed through the middleware.
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}

	return "unknown"
}
