package ingest

import "context"

// EventWriter is what the pipeline needs for persistence. The concrete
// PostgreSQL implementation lives in the internal/storage package;
// tests substitute an in-memory writer.
type EventWriter interface {
	// Apply persists one normalized bundle under the freshness gate.
	//
	// The event kind and timestamp come from the envelope and guard
	// every entity in the bundle: if any entity's stored timestamp is
	// not sufficiently older, the whole bundle is discarded and Apply
	// returns (false, nil). Database errors, including lock timeouts
	// and deadlocks, return a non-nil error; the caller counts those
	// as line failures.
	Apply(ctx context.Context, bundle *Bundle, event, timestamp string) (applied bool, err error)

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error
}
