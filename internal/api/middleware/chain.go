// Package middleware provides HTTP middleware components for the starlog API.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/starlog-io/starlog/internal/storage"
)

// Option is one middleware layer in a chain.
type Option func(http.Handler) http.Handler

// noop passes requests through untouched. Optional layers resolve to
// it when their dependency is not configured.
func noop(next http.Handler) http.Handler {
	return next
}

// Apply wraps a handler in the given middleware, with the first option
// outermost. The server builds its chain as:
//
//	handler := middleware.Apply(mux,
//	    middleware.WithCorrelationID(),
//	    middleware.WithRecovery(logger),
//	    middleware.WithAuthUploader(store, logger),
//	    middleware.WithRateLimit(limiter, logger),
//	    middleware.WithRequestLogger(logger),
//	    middleware.WithCORS(corsConfig),
//	)
func Apply(handler http.Handler, options ...Option) http.Handler {
	// Wrap back to front so the first option ends up outermost.
	for i := len(options) - 1; i >= 0; i-- {
		handler = options[i](handler)
	}

	return handler
}

// WithCorrelationID adds the correlation ID layer.
func WithCorrelationID() Option {
	return CorrelationID()
}

// WithRecovery adds the panic recovery layer.
func WithRecovery(logger *slog.Logger) Option {
	return Recovery(logger)
}

// WithAuthUploader adds API key authentication. A nil store disables
// the layer entirely, which is the posture for trusted networks.
func WithAuthUploader(store storage.KeyStore, logger *slog.Logger) Option {
	if store == nil {
		return noop
	}

	return AuthenticateUploader(store, logger)
}

// WithRateLimit adds request rate limiting. A nil limiter disables the
// layer.
func WithRateLimit(limiter RateLimiter, logger *slog.Logger) Option {
	if limiter == nil {
		return noop
	}

	return RateLimit(limiter, logger)
}

// WithRequestLogger adds request logging.
func WithRequestLogger(logger *slog.Logger) Option {
	return RequestLogger(logger)
}

// WithCORS adds cross-origin response headers.
func WithCORS(config CORSConfig) Option {
	return CORS(config)
}
