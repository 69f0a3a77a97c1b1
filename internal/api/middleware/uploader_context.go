// Package middleware provides HTTP middleware components for the starlog API.
package middleware

import (
	"context"
	"time"
)

type uploaderContextKey struct{}

// UploaderContext is the identity the authentication middleware attaches
// to a request once its API key checks out.
type UploaderContext struct {
	// UploaderID identifies the uploader, e.g. "ops-replay-runner".
	UploaderID string

	// Name is the display name tied to the key.
	Name string

	// Permissions are the scopes granted to this uploader.
	Permissions []string

	// KeyID records which key authenticated the request, for audit logs.
	KeyID string

	// AuthTime is when authentication completed.
	AuthTime time.Time
}

// GetUploaderContext returns the authenticated uploader for the request,
// or false when the request never passed authentication.
func GetUploaderContext(ctx context.Context) (UploaderContext, bool) {
	uploaderCtx, ok := ctx.Value(uploaderContextKey{}).(UploaderContext)

	return uploaderCtx, ok
}

// SetUploaderContext attaches an authenticated uploader to the context.
func SetUploaderContext(ctx context.Context, uploaderCtx UploaderContext) context.Context {
	return context.WithValue(ctx, uploaderContextKey{}, uploaderCtx)
}
