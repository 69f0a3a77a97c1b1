// Package middleware provides HTTP middleware components for the starlog API.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/starlog-io/starlog/internal/storage"
)

// publicEndpoints lists paths that skip authentication. Only probe and
// observability endpoints belong here; replay endpoints never do.
var publicEndpoints = map[string]bool{} //nolint: gochecknoglobals

// RegisterPublicEndpoint exempts a path from API key checks. Routes
// call this during setup for health and metrics endpoints.
func RegisterPublicEndpoint(endpoint string) {
	publicEndpoints[endpoint] = true
}

// Authentication failure modes. Format errors and unknown keys share
// ErrInvalidAPIKey so responses do not reveal which keys exist.
var (
	ErrMissingAPIKey  = errors.New("missing API key")
	ErrInvalidAPIKey  = errors.New("invalid API key")
	ErrAPIKeyExpired  = errors.New("API key expired")
	ErrAPIKeyInactive = errors.New("API key inactive")
)

// AuthError wraps a failure mode with a response-safe message.
type AuthError struct {
	Type    error
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authentication failed: %s: %s", e.Type.Error(), e.Message)
	}

	return "authentication failed: " + e.Type.Error()
}

// Unwrap exposes the failure mode to errors.Is.
func (e *AuthError) Unwrap() error {
	return e.Type
}

// extractAPIKey pulls the key from X-Api-Key, or from a Bearer
// Authorization header when the dedicated header is absent. Keys with
// embedded newlines are rejected outright; header injection through a
// logged key is not worth trusting callers about.
func extractAPIKey(r *http.Request) (string, bool) {
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return cleanAPIKey(key)
	}

	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return cleanAPIKey(token)
	}

	return "", false
}

func cleanAPIKey(key string) (string, bool) {
	if strings.ContainsAny(key, "\r\n") {
		return "", false
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return "", false
	}

	return key, true
}

// burnBcryptTime runs a throwaway comparison so rejected requests cost
// the same as lookups that reach the key store.
func burnBcryptTime() {
	_ = bcrypt.CompareHashAndPassword([]byte("dummy"), []byte("dummy"))
}

// authenticateRequest resolves an API key to its stored record,
// rejecting bad formats, unknown keys, deactivated keys, and expired
// keys in that order.
func authenticateRequest(
	ctx context.Context,
	store storage.KeyStore,
	apiKey string,
	logger *slog.Logger,
) (*storage.Key, error) {
	parsed, err := storage.ParseAPIKey(apiKey)
	if err != nil {
		burnBcryptTime()

		logger.Error("authentication failed: malformed key",
			slog.String("error", err.Error()),
			slog.String("correlation_id", GetCorrelationID(ctx)),
		)

		return nil, &AuthError{Type: ErrInvalidAPIKey, Message: "Invalid or missing API key"}
	}

	found, exists := store.FindByKey(ctx, parsed)
	if !exists {
		burnBcryptTime()

		logger.Error("authentication failed: unknown key",
			slog.String("correlation_id", GetCorrelationID(ctx)),
		)

		return nil, &AuthError{Type: ErrInvalidAPIKey, Message: "Invalid or missing API key"}
	}

	if !found.Active {
		logger.Error("authentication failed: deactivated key",
			slog.String("key_id", found.ID),
			slog.String("uploader_id", found.UploaderID),
			slog.String("correlation_id", GetCorrelationID(ctx)),
		)

		return nil, &AuthError{Type: ErrAPIKeyInactive, Message: "API key is inactive"}
	}

	if found.ExpiresAt != nil && time.Now().After(*found.ExpiresAt) {
		logger.Error("authentication failed: expired key",
			slog.String("key_id", found.ID),
			slog.String("uploader_id", found.UploaderID),
			slog.Time("expired_at", *found.ExpiresAt),
			slog.String("correlation_id", GetCorrelationID(ctx)),
		)

		return nil, &AuthError{Type: ErrAPIKeyExpired, Message: "API key has expired"}
	}

	return found, nil
}

// AuthenticateUploader gates requests on a valid API key and stashes
// the resolved uploader in the request context for handlers and the
// rate limiter. Failures come back as RFC 7807 problems.
func AuthenticateUploader(store storage.KeyStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicEndpoints[r.URL.Path] {
				next.ServeHTTP(w, r)

				return
			}

			authStart := time.Now()

			apiKey, found := extractAPIKey(r)
			if !found {
				writeAuthError(w, r, logger, &AuthError{Type: ErrMissingAPIKey, Message: "Missing API key"})

				return
			}

			authenticated, err := authenticateRequest(r.Context(), store, apiKey, logger)
			if err != nil {
				writeAuthError(w, r, logger, err)

				return
			}

			uploaderCtx := UploaderContext{
				UploaderID:  authenticated.UploaderID,
				Name:        authenticated.Name,
				Permissions: authenticated.Permissions,
				KeyID:       authenticated.ID,
				AuthTime:    time.Now(),
			}

			logger.Info("uploader authenticated",
				slog.String("uploader_id", uploaderCtx.UploaderID),
				slog.String("key_id", uploaderCtx.KeyID),
				slog.String("key", storage.MaskKey(authenticated.Key)),
				slog.Duration("auth_latency", time.Since(authStart)),
				slog.String("correlation_id", GetCorrelationID(r.Context())),
				slog.String("endpoint", r.URL.Path),
			)

			next.ServeHTTP(w, r.WithContext(SetUploaderContext(r.Context(), uploaderCtx)))
		})
	}
}

// writeAuthError logs a rejected request and answers it with a problem
// response. Inactive keys map to 403; every other failure is a 401.
func writeAuthError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	correlationID := GetCorrelationID(r.Context())

	status := http.StatusUnauthorized

	var authErr *AuthError
	if errors.As(err, &authErr) && errors.Is(authErr.Type, ErrAPIKeyInactive) {
		status = http.StatusForbidden
	}

	logger.Warn("request rejected",
		slog.String("reason", err.Error()),
		slog.String("correlation_id", correlationID),
		slog.String("endpoint", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("user_agent", r.UserAgent()),
	)

	detail := err.Error()

	if writeErr := writeProblem(w, r, status, detail, correlationID); writeErr != nil {
		logger.Error("failed to write auth response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.String("error", writeErr.Error()),
		)

		http.Error(w, detail, status)
	}
}
