// Package middleware provides HTTP middleware components for the starlog API.
package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultGlobalRPS   = 100
	defaultUploaderRPS = 50
	defaultUnAuthRPS   = 10

	defaultCleanupInterval = 5 * time.Minute
	defaultIdleTimeout     = time.Hour
	defaultMaxUploaders    = 100

	// burstFactor sizes the default burst at two seconds of sustained
	// rate, enough to absorb a relay reconnect dumping its queue.
	burstFactor = 2

	// occupancyWarnRatio is the per-uploader map fill level that
	// triggers an operator warning.
	occupancyWarnRatio = 0.8
)

// RateLimiter decides whether a request may proceed. uploaderID is
// empty for unauthenticated requests. The in-memory implementation
// below serves single-node deployments; a shared store can replace it
// behind the same interface when the API runs on more than one node.
type RateLimiter interface {
	Allow(uploaderID string) bool
}

// InMemoryRateLimiter enforces three token buckets: one global, one
// per authenticated uploader, and one shared by all unauthenticated
// traffic. Per-uploader buckets are created on first use and reaped by
// a background sweep once idle, so the map cannot grow without bound.
type InMemoryRateLimiter struct {
	global *rate.Limiter
	unauth *rate.Limiter

	mu        sync.RWMutex
	uploaders map[string]*uploaderBucket

	uploaderRPS   int
	uploaderBurst int
	idleTimeout   time.Duration
	maxUploaders  int

	sweep *time.Ticker
	done  chan struct{}
}

// uploaderBucket pairs an uploader's limiter with its last use, which
// the sweep consults.
type uploaderBucket struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewInMemoryRateLimiter builds a limiter from config, filling burst
// sizes as burstFactor x rate where no override is set, and starts the
// idle-bucket sweep. Call Close to stop the sweep.
func NewInMemoryRateLimiter(config *Config) *InMemoryRateLimiter {
	rl := &InMemoryRateLimiter{
		global:        rate.NewLimiter(rate.Limit(config.GlobalRPS), burstOrDefault(config.GlobalRPS, config.GlobalBurst)),
		unauth:        rate.NewLimiter(rate.Limit(config.UnAuthRPS), burstOrDefault(config.UnAuthRPS, config.UnAuthBurst)),
		uploaders:     make(map[string]*uploaderBucket),
		uploaderRPS:   config.UploaderRPS,
		uploaderBurst: burstOrDefault(config.UploaderRPS, config.UploaderBurst),
		idleTimeout:   config.IdleTimeout,
		maxUploaders:  config.MaxUploaders,
		done:          make(chan struct{}),
	}

	if rl.idleTimeout <= 0 {
		rl.idleTimeout = defaultIdleTimeout
	}

	interval := config.CleanupInterval
	if interval <= 0 {
		interval = defaultCleanupInterval
	}

	rl.sweep = time.NewTicker(interval)

	go rl.runSweep()

	return rl
}

func burstOrDefault(rps, override int) int {
	if override > 0 {
		return override
	}

	return rps * burstFactor
}

// Allow reports whether a request fits under the limits. The global
// bucket is checked first; on a global rejection no per-uploader token
// is consumed.
func (rl *InMemoryRateLimiter) Allow(uploaderID string) bool {
	if !rl.global.Allow() {
		return false
	}

	if uploaderID == "" {
		return rl.unauth.Allow()
	}

	return rl.bucketFor(uploaderID).Allow()
}

// bucketFor returns the uploader's limiter, creating it on first use
// and refreshing its last-seen time.
func (rl *InMemoryRateLimiter) bucketFor(uploaderID string) *rate.Limiter {
	rl.mu.RLock()
	bucket, ok := rl.uploaders[uploaderID]
	rl.mu.RUnlock()

	if !ok {
		rl.mu.Lock()

		// Another request may have created it while we upgraded the lock.
		if bucket, ok = rl.uploaders[uploaderID]; !ok {
			bucket = &uploaderBucket{
				limiter:  rate.NewLimiter(rate.Limit(rl.uploaderRPS), rl.uploaderBurst),
				lastSeen: time.Now(),
			}
			rl.uploaders[uploaderID] = bucket

			rl.warnIfCrowded(len(rl.uploaders))
		}

		rl.mu.Unlock()
	}

	bucket.mu.Lock()
	bucket.lastSeen = time.Now()
	bucket.mu.Unlock()

	return bucket.limiter
}

// warnIfCrowded logs once per new bucket when the map is nearly full.
// Caller holds the write lock.
func (rl *InMemoryRateLimiter) warnIfCrowded(count int) {
	if rl.maxUploaders <= 0 {
		return
	}

	if float64(count) >= float64(rl.maxUploaders)*occupancyWarnRatio {
		slog.Warn("rate limiter nearing uploader capacity",
			slog.Int("uploaders", count),
			slog.Int("max_uploaders", rl.maxUploaders),
		)
	}
}

// runSweep drops buckets that have sat idle past the timeout.
func (rl *InMemoryRateLimiter) runSweep() {
	for {
		select {
		case <-rl.sweep.C:
			rl.dropIdle(time.Now())
		case <-rl.done:
			return
		}
	}
}

func (rl *InMemoryRateLimiter) dropIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for uploaderID, bucket := range rl.uploaders {
		bucket.mu.Lock()
		idle := now.Sub(bucket.lastSeen)
		bucket.mu.Unlock()

		if idle > rl.idleTimeout {
			delete(rl.uploaders, uploaderID)
		}
	}
}

// Close stops the sweep goroutine. It satisfies io.Closer so the
// server can shut the limiter down without knowing its concrete type.
func (rl *InMemoryRateLimiter) Close() error {
	if rl.sweep != nil {
		rl.sweep.Stop()
	}

	close(rl.done)

	return nil
}

// RateLimit rejects over-limit requests with a 429 problem response.
// It must sit after authentication in the chain so authenticated
// requests are billed to their uploader rather than the shared
// unauthenticated bucket.
func RateLimit(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uploaderID := ""
			if uploaderCtx, ok := GetUploaderContext(r.Context()); ok {
				uploaderID = uploaderCtx.UploaderID
			}

			if limiter.Allow(uploaderID) {
				next.ServeHTTP(w, r)

				return
			}

			correlationID := GetCorrelationID(r.Context())
			detail := "Rate limit exceeded. Please retry after some time."

			if err := writeProblem(w, r, http.StatusTooManyRequests, detail, correlationID); err != nil {
				logger.Error("failed to write rate limit response",
					slog.String("correlation_id", correlationID),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)

				http.Error(w, detail, http.StatusTooManyRequests)
			}
		})
	}
}
