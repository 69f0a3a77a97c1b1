// Package middleware provides HTTP middleware components for the starlog API.
package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig is satisfied by the api package's CORS configuration,
// avoiding an import cycle between the two packages.
type CORSConfig interface {
	GetAllowedOrigins() []string
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
	GetMaxAge() int
}

// CORS answers cross-origin requests for browser-based dashboards.
// Preflight OPTIONS requests are terminated here with 204; everything
// else passes through with the CORS headers attached.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			applyCORSHeaders(w, r, config)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func applyCORSHeaders(w http.ResponseWriter, r *http.Request, config CORSConfig) {
	header := w.Header()

	if origin := allowedOrigin(r, config.GetAllowedOrigins()); origin != "" {
		header.Set("Access-Control-Allow-Origin", origin)
	}

	if methods := config.GetAllowedMethods(); len(methods) > 0 {
		header.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
	}

	if headers := config.GetAllowedHeaders(); len(headers) > 0 {
		header.Set("Access-Control-Allow-Headers", strings.Join(headers, ", "))
	}

	if maxAge := config.GetMaxAge(); maxAge > 0 {
		header.Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
	}
}

// allowedOrigin resolves the Allow-Origin value for a request: the
// wildcard when configured, the request's own origin when it is on the
// allow list, empty otherwise.
func allowedOrigin(r *http.Request, allowed []string) string {
	if len(allowed) == 0 {
		return ""
	}

	if len(allowed) == 1 && allowed[0] == "*" {
		return "*"
	}

	origin := r.Header.Get("Origin")
	if origin != "" && slices.Contains(allowed, origin) {
		return origin
	}

	return ""
}
