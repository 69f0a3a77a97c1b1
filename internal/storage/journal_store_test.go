package storage

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/lib/pq"

	"github.com/starlog-io/starlog/internal/ingest"
)

func ptr[T any](v T) *T {
	return &v
}

func newValidationStore(t *testing.T) *JournalStore {
	t.Helper()

	cache, err := ingest.NewRecencyCache(64)
	if err != nil {
		t.Fatalf("NewRecencyCache() error = %v", err)
	}

	// A connection shell is enough for paths that return before the
	// first transaction.
	store, err := NewJournalStore(&Connection{}, cache)
	if err != nil {
		t.Fatalf("NewJournalStore() error = %v", err)
	}

	store.logger = slog.New(slog.DiscardHandler)

	return store
}

func TestNewJournalStore_Validation(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cache, err := ingest.NewRecencyCache(64)
	if err != nil {
		t.Fatalf("NewRecencyCache() error = %v", err)
	}

	if _, err := NewJournalStore(nil, cache); !errors.Is(err, ErrNoDatabaseConnection) {
		t.Errorf("NewJournalStore(nil, cache) error = %v, want ErrNoDatabaseConnection", err)
	}

	if _, err := NewJournalStore(&Connection{}, nil); !errors.Is(err, ErrNilRecencyCache) {
		t.Errorf("NewJournalStore(conn, nil) error = %v, want ErrNilRecencyCache", err)
	}
}

func TestJournalStoreApply_InputValidation(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := newValidationStore(t)
	bundle := &ingest.Bundle{Systems: []ingest.System{{SystemAddress: 1, StarSystem: "Sol"}}}

	if _, err := store.Apply(t.Context(), nil, "FSDJump", "2026-01-15T12:00:00Z"); !errors.Is(err, ErrJournalStoreFailed) {
		t.Errorf("Apply(nil bundle) error = %v, want ErrJournalStoreFailed", err)
	}

	if _, err := store.Apply(t.Context(), bundle, "", "2026-01-15T12:00:00Z"); !errors.Is(err, ErrJournalStoreFailed) {
		t.Errorf("Apply(empty event) error = %v, want ErrJournalStoreFailed", err)
	}

	if _, err := store.Apply(t.Context(), bundle, "FSDJump", "three days ago"); !errors.Is(err, ErrJournalStoreFailed) {
		t.Errorf("Apply(bad timestamp) error = %v, want ErrJournalStoreFailed", err)
	}

	applied, err := store.Apply(t.Context(), &ingest.Bundle{}, "FSDJump", "2026-01-15T12:00:00Z")
	if err != nil {
		t.Errorf("Apply(empty bundle) unexpected error: %v", err)
	}

	if applied {
		t.Error("Apply(empty bundle) should not report a write")
	}
}

func TestJournalStoreApply_CachePreFilter(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	store := newValidationStore(t)

	sys := ingest.System{SystemAddress: 10477373803, StarSystem: "Sol"}

	ref, err := (&sys).Ref()
	if err != nil {
		t.Fatalf("Ref() error = %v", err)
	}

	// Prime the cache with a newer sighting; the equal-timestamp apply
	// must be dropped before any database work.
	if !store.cache.IsNewerAndUpdate(ref.Kind, ref.Key, "FSDJump", "2026-01-15T12:00:00Z") {
		t.Fatal("priming the cache should pass")
	}

	applied, err := store.Apply(t.Context(), &ingest.Bundle{Systems: []ingest.System{sys}},
		"FSDJump", "2026-01-15T12:00:00Z")
	if err != nil {
		t.Fatalf("Apply() unexpected error: %v", err)
	}

	if applied {
		t.Error("Apply() with a cached equal timestamp should be a skip")
	}
}

func TestBuildUpsert(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cols := []column{
		keyCol("market_id", int64(128016384)),
		valCol("station_name", "Galileo"),
		optCol[string]("station_economy", nil),
		optCol("station_state", ptr("Normal")),
	}

	query, args := buildUpsert("stations", "(market_id)", cols, "")

	if len(args) != 4 {
		t.Fatalf("buildUpsert() bound %d args, want 4", len(args))
	}

	if !strings.Contains(query, "INSERT INTO stations (market_id, station_name, station_economy, station_state)") {
		t.Errorf("unexpected insert clause: %s", query)
	}

	if !strings.Contains(query, "VALUES ($1, $2, $3, $4)") {
		t.Errorf("unexpected placeholder list: %s", query)
	}

	if !strings.Contains(query, "ON CONFLICT (market_id) DO UPDATE SET") {
		t.Errorf("unexpected conflict clause: %s", query)
	}

	// Identity and null-valued optional columns never merge; the stored
	// value must survive.
	if strings.Contains(query, "market_id = EXCLUDED.market_id") {
		t.Error("identity column must not merge")
	}

	if strings.Contains(query, "station_economy = EXCLUDED.station_economy") {
		t.Error("null optional column must not merge")
	}

	if !strings.Contains(query, "station_name = EXCLUDED.station_name") {
		t.Error("required column must merge")
	}

	if !strings.Contains(query, "station_state = EXCLUDED.station_state") {
		t.Error("non-null optional column must merge")
	}

	if !strings.Contains(query, "updated_at = NOW()") {
		t.Error("upsert must refresh updated_at")
	}

	if strings.Contains(query, "RETURNING") {
		t.Error("upsert without returning clause should not return")
	}
}

func TestBuildUpsert_CastAndReturning(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cols := []column{
		keyCol("system_address", int64(1)),
		{name: "star_pos", value: "[1,2,3]", merge: true, cast: "::vector"},
	}

	query, _ := buildUpsert("systems", "(system_address)", cols, "id")

	if !strings.Contains(query, "VALUES ($1, $2::vector)") {
		t.Errorf("cast suffix missing from placeholder: %s", query)
	}

	if !strings.HasSuffix(query, "RETURNING id") {
		t.Errorf("returning clause missing: %s", query)
	}
}

func TestStarPosValue(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if got := starPosValue([]float64{-81.46875, -149.03125, -343.375}); got != "[-81.46875,-149.03125,-343.375]" {
		t.Errorf("starPosValue() = %v", got)
	}

	if got := starPosValue(nil); got != nil {
		t.Errorf("starPosValue(nil) = %v, want nil", got)
	}

	if got := starPosValue([]float64{1, 2}); got != nil {
		t.Errorf("starPosValue(short) = %v, want nil", got)
	}
}

func TestClassifyDatabaseError(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "lock timeout",
			err:  fmt.Errorf("exec: %w", &pq.Error{Code: "55P03"}),
			want: ErrLockNotAvailable,
		},
		{
			name: "deadlock abort",
			err:  fmt.Errorf("exec: %w", &pq.Error{Code: "40P01"}),
			want: ErrDeadlockDetected,
		},
		{
			name: "connection exception class",
			err:  fmt.Errorf("exec: %w", &pq.Error{Code: "08006"}),
			want: ErrDatabaseUnavailable,
		},
		{
			name: "closed connection",
			err:  sql.ErrConnDone,
			want: ErrDatabaseUnavailable,
		},
		{
			name: "bad driver connection",
			err:  driver.ErrBadConn,
			want: ErrDatabaseUnavailable,
		},
		{
			name: "anything else",
			err:  errors.New("syntax error at or near"),
			want: ErrJournalStoreFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyDatabaseError("apply bundle", tt.err)

			if !errors.Is(got, tt.want) {
				t.Errorf("classifyDatabaseError() = %v, want %v", got, tt.want)
			}
		})
	}
}
