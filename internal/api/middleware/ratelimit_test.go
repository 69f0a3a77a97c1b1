// Package middleware provides HTTP middleware components for the starlog API.
package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

const testUploader = "eddn-relay"

func newTestLimiter(t *testing.T, cfg *Config) *InMemoryRateLimiter {
	t.Helper()

	rl := NewInMemoryRateLimiter(cfg)
	t.Cleanup(func() { _ = rl.Close() })

	return rl
}

// drain calls Allow n times and reports how many passed.
func drain(rl *InMemoryRateLimiter, uploaderID string, n int) int {
	allowed := 0

	for range n {
		if rl.Allow(uploaderID) {
			allowed++
		}
	}

	return allowed
}

func TestRateLimiter_GlobalCeiling(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	// Global bucket is the tighter one, so it decides.
	rl := newTestLimiter(t, &Config{
		GlobalRPS:     10,
		GlobalBurst:   10,
		UploaderRPS:   50,
		UploaderBurst: 50,
		UnAuthRPS:     2,
	})

	if got := drain(rl, testUploader, 11); got != 10 {
		t.Errorf("Allow() passed %d of 11 requests, want 10", got)
	}
}

func TestRateLimiter_PerUploaderCeiling(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := newTestLimiter(t, &Config{
		GlobalRPS:     100,
		UploaderRPS:   5,
		UploaderBurst: 5,
		UnAuthRPS:     2,
	})

	if got := drain(rl, testUploader, 6); got != 5 {
		t.Errorf("Allow() passed %d of 6 requests, want 5", got)
	}
}

func TestRateLimiter_UnauthenticatedBucket(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := newTestLimiter(t, &Config{
		GlobalRPS:   100,
		UploaderRPS: 50,
		UnAuthRPS:   2,
		UnAuthBurst: 2,
	})

	if got := drain(rl, "", 3); got != 2 {
		t.Errorf("Allow(\"\") passed %d of 3 requests, want 2", got)
	}
}

func TestRateLimiter_DefaultBurstSizing(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name     string
		rps      int
		override int
		want     int
	}{
		{name: "no override doubles the rate", rps: 10, override: 0, want: 20},
		{name: "override wins", rps: 10, override: 3, want: 3},
		{name: "negative override ignored", rps: 5, override: -1, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := burstOrDefault(tt.rps, tt.override); got != tt.want {
				t.Errorf("burstOrDefault(%d, %d) = %d, want %d", tt.rps, tt.override, got, tt.want)
			}
		})
	}

	// Behavioral check: with no override an uploader gets two seconds of
	// rate as instant headroom.
	rl := newTestLimiter(t, &Config{
		GlobalRPS:   100,
		UploaderRPS: 5,
		UnAuthRPS:   2,
	})

	if got := drain(rl, testUploader, 11); got != 10 {
		t.Errorf("Allow() passed %d of 11 requests with default burst, want 10", got)
	}
}

func TestRateLimiter_GlobalRejectionSkipsUploaderBucket(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := newTestLimiter(t, &Config{
		GlobalRPS:   1,
		GlobalBurst: 1,
		UploaderRPS: 100,
		UnAuthRPS:   100,
	})

	if !rl.Allow("first") {
		t.Fatal("Allow(first) should pass and take the only global token")
	}

	if rl.Allow("second") {
		t.Fatal("Allow(second) should be stopped by the global bucket")
	}

	// A globally rejected request must not have created or charged a
	// per-uploader bucket.
	rl.mu.RLock()
	_, first := rl.uploaders["first"]
	_, second := rl.uploaders["second"]
	rl.mu.RUnlock()

	if !first {
		t.Error("bucket for first uploader was not created")
	}

	if second {
		t.Error("globally rejected request created a per-uploader bucket")
	}
}

func TestRateLimiter_UploaderIsolation(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := newTestLimiter(t, &Config{
		GlobalRPS:     100,
		UploaderRPS:   5,
		UploaderBurst: 5,
		UnAuthRPS:     2,
	})

	if got := drain(rl, "eddn-relay", 6); got != 5 {
		t.Fatalf("first uploader passed %d of 6, want 5", got)
	}

	// Draining one uploader leaves the other's tokens untouched.
	if got := drain(rl, "carrier-uplink", 5); got != 5 {
		t.Errorf("second uploader passed %d of 5, want 5", got)
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := newTestLimiter(t, &Config{
		GlobalRPS:   100,
		UploaderRPS: 50,
		UnAuthRPS:   10,
	})

	var wg sync.WaitGroup

	for i := range 10 {
		wg.Add(1)

		go func(uploaderID string) {
			defer wg.Done()

			for range 10 {
				_ = rl.Allow(uploaderID)
			}
		}(fmt.Sprintf("uploader-%d", i))
	}

	wg.Wait()
}

func TestRateLimiter_SweepDropsIdleBuckets(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := newTestLimiter(t, &Config{
		GlobalRPS:   100,
		UploaderRPS: 50,
		UnAuthRPS:   10,
		IdleTimeout: time.Minute,
	})

	if !rl.Allow("stale-uploader") || !rl.Allow("active-uploader") {
		t.Fatal("seed requests should pass")
	}

	// Backdate one bucket past the idle timeout instead of sleeping.
	rl.mu.RLock()
	stale := rl.uploaders["stale-uploader"]
	rl.mu.RUnlock()

	stale.mu.Lock()
	stale.lastSeen = time.Now().Add(-2 * time.Minute)
	stale.mu.Unlock()

	rl.dropIdle(time.Now())

	rl.mu.RLock()
	_, staleExists := rl.uploaders["stale-uploader"]
	_, activeExists := rl.uploaders["active-uploader"]
	rl.mu.RUnlock()

	if staleExists {
		t.Error("idle bucket survived the sweep")
	}

	if !activeExists {
		t.Error("active bucket was swept")
	}
}

func TestRateLimitMiddleware_PassThrough(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := newTestLimiter(t, &Config{
		GlobalRPS:   100,
		UploaderRPS: 50,
		UnAuthRPS:   10,
	})

	nextCalled := false
	handler := RateLimit(rl, slog.New(slog.DiscardHandler))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		nextCalled = true

		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	if !nextCalled {
		t.Error("next handler was not reached under the limit")
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRateLimitMiddleware_RejectsWithProblem(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := newTestLimiter(t, &Config{
		GlobalRPS:   1,
		GlobalBurst: 1,
		UploaderRPS: 1,
		UnAuthRPS:   1,
	})

	logger := slog.New(slog.DiscardHandler)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Correlation middleware in front so the problem body carries a
	// traceable ID, same order the server assembles.
	handler := CorrelationID()(RateLimit(rl, logger)(next))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/test", nil))

	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want %d", first.Code, http.StatusOK)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/ingest/today", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want application/problem+json", ct)
	}

	var problemBody map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &problemBody); err != nil {
		t.Fatalf("response body is not JSON: %v", err)
	}

	if problemBody["type"] != "https://starlog.io/problems/429" {
		t.Errorf("type = %v, want https://starlog.io/problems/429", problemBody["type"])
	}

	if problemBody["title"] != "Too Many Requests" {
		t.Errorf("title = %v, want Too Many Requests", problemBody["title"])
	}

	if problemBody["status"] != float64(429) {
		t.Errorf("status = %v, want 429", problemBody["status"])
	}

	if problemBody["instance"] != "/api/v1/ingest/today" {
		t.Errorf("instance = %v, want /api/v1/ingest/today", problemBody["instance"])
	}

	if got, ok := problemBody["correlationId"].(string); !ok || got == "" {
		t.Errorf("correlationId = %v, want a non-empty string", problemBody["correlationId"])
	} else if header := rec.Header().Get("X-Correlation-ID"); got != header {
		t.Errorf("correlationId = %q, want the response header value %q", got, header)
	}
}

func TestRateLimitMiddleware_BillsAuthenticatedUploader(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := newTestLimiter(t, &Config{
		GlobalRPS:     100,
		UploaderRPS:   10,
		UploaderBurst: 10,
		UnAuthRPS:     2,
		UnAuthBurst:   2,
	})

	handler := RateLimit(rl, slog.New(slog.DiscardHandler))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(authenticated bool) int {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		if authenticated {
			req = req.WithContext(SetUploaderContext(req.Context(), UploaderContext{
				UploaderID: testUploader,
				Name:       "EDDN relay",
			}))
		}

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		return rec.Code
	}

	// Exhaust the unauthenticated bucket.
	for i := range 2 {
		if code := send(false); code != http.StatusOK {
			t.Fatalf("unauthenticated request %d status = %d, want %d", i+1, code, http.StatusOK)
		}
	}

	if code := send(false); code != http.StatusTooManyRequests {
		t.Fatalf("unauthenticated overflow status = %d, want %d", code, http.StatusTooManyRequests)
	}

	// Authenticated traffic rides its own bucket, unaffected by the
	// drained unauthenticated one.
	for i := range 10 {
		if code := send(true); code != http.StatusOK {
			t.Fatalf("authenticated request %d status = %d, want %d", i+1, code, http.StatusOK)
		}
	}

	if code := send(true); code != http.StatusTooManyRequests {
		t.Errorf("authenticated overflow status = %d, want %d", code, http.StatusTooManyRequests)
	}
}
