package ingest

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewRecencyCache_InvalidSize(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	for _, size := range []int{0, -1} {
		if _, err := NewRecencyCache(size); !errors.Is(err, ErrInvalidCacheSize) {
			t.Errorf("NewRecencyCache(%d) error = %v, want ErrInvalidCacheSize", size, err)
		}
	}
}

func TestRecencyCache_FirstSightingPasses(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cache, err := NewRecencyCache(16)
	if err != nil {
		t.Fatalf("NewRecencyCache() unexpected error: %v", err)
	}

	key := `{"SystemAddress":10477373803}`

	if !cache.IsNewerAndUpdate(KindSystem, key, "FSDJump", "2026-01-15T12:00:00Z") {
		t.Error("first sighting of an entity should pass")
	}

	if cached, ok := cache.Get(KindSystem, key, "FSDJump"); !ok || cached != "2026-01-15T12:00:00Z" {
		t.Errorf("Get() = (%s, %v), want cached first timestamp", cached, ok)
	}
}

func TestRecencyCache_StaleAndEqualRejected(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cache, err := NewRecencyCache(16)
	if err != nil {
		t.Fatalf("NewRecencyCache() unexpected error: %v", err)
	}

	key := `{"SystemAddress":10477373803}`
	cache.IsNewerAndUpdate(KindSystem, key, "FSDJump", "2026-01-15T12:00:00Z")

	if cache.IsNewerAndUpdate(KindSystem, key, "FSDJump", "2026-01-15T11:59:59Z") {
		t.Error("older timestamp should be rejected")
	}

	if cache.IsNewerAndUpdate(KindSystem, key, "FSDJump", "2026-01-15T12:00:00Z") {
		t.Error("equal timestamp should be rejected")
	}

	// A rejected timestamp must not displace the cached one.
	if cached, _ := cache.Get(KindSystem, key, "FSDJump"); cached != "2026-01-15T12:00:00Z" {
		t.Errorf("cached timestamp = %s, want original", cached)
	}
}

func TestRecencyCache_NewerPasses(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cache, err := NewRecencyCache(16)
	if err != nil {
		t.Fatalf("NewRecencyCache() unexpected error: %v", err)
	}

	key := `{"SystemAddress":10477373803}`
	cache.IsNewerAndUpdate(KindSystem, key, "FSDJump", "2026-01-15T12:00:00Z")

	if !cache.IsNewerAndUpdate(KindSystem, key, "FSDJump", "2026-01-15T12:00:01Z") {
		t.Error("newer timestamp should pass")
	}

	if cached, _ := cache.Get(KindSystem, key, "FSDJump"); cached != "2026-01-15T12:00:01Z" {
		t.Errorf("cached timestamp = %s, want updated", cached)
	}
}

func TestRecencyCache_EventKindsIndependent(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cache, err := NewRecencyCache(16)
	if err != nil {
		t.Fatalf("NewRecencyCache() unexpected error: %v", err)
	}

	key := `{"SystemAddress":10477373803}`
	cache.IsNewerAndUpdate(KindSystem, key, "FSDJump", "2026-01-15T12:00:00Z")

	// The same entity under a different event kind has its own slot, so
	// an older CarrierJump is not blocked by a newer FSDJump.
	if !cache.IsNewerAndUpdate(KindSystem, key, "CarrierJump", "2026-01-15T11:00:00Z") {
		t.Error("different event kind should track freshness independently")
	}
}

func TestRecencyCache_UnparseableTimestampPasses(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cache, err := NewRecencyCache(16)
	if err != nil {
		t.Fatalf("NewRecencyCache() unexpected error: %v", err)
	}

	key := `{"MarketID":128016384}`
	cache.IsNewerAndUpdate(KindStation, key, "Docked", "2026-01-15T12:00:00Z")

	// The cache is an optimistic filter; anything it cannot compare is
	// passed through to the authoritative database gate.
	if !cache.IsNewerAndUpdate(KindStation, key, "Docked", "not-a-timestamp") {
		t.Error("unparseable incoming timestamp should pass through")
	}

	// The unparseable value now occupies the slot, and the next parseable
	// timestamp passes because the held value cannot be compared either.
	if !cache.IsNewerAndUpdate(KindStation, key, "Docked", "2026-01-15T11:00:00Z") {
		t.Error("unparseable held timestamp should pass through")
	}
}

func TestRecencyCache_EvictsBeyondCapacity(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cache, err := NewRecencyCache(8)
	if err != nil {
		t.Fatalf("NewRecencyCache() unexpected error: %v", err)
	}

	for i := 0; i < 20; i++ {
		key := fmt.Sprintf(`{"SystemAddress":%d}`, i)
		cache.IsNewerAndUpdate(KindSystem, key, "FSDJump", "2026-01-15T12:00:00Z")
	}

	if got := cache.Len(); got > 8 {
		t.Errorf("Len() = %d, want at most 8", got)
	}

	// The evicted entry now reads as a first sighting again.
	if !cache.IsNewerAndUpdate(KindSystem, `{"SystemAddress":0}`, "FSDJump", "2026-01-15T11:00:00Z") {
		t.Error("evicted entity should pass as unseen")
	}
}

func TestRecencyCache_Purge(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	cache, err := NewRecencyCache(16)
	if err != nil {
		t.Fatalf("NewRecencyCache() unexpected error: %v", err)
	}

	cache.IsNewerAndUpdate(KindSystem, `{"SystemAddress":1}`, "FSDJump", "2026-01-15T12:00:00Z")
	cache.Purge()

	if got := cache.Len(); got != 0 {
		t.Errorf("Len() after Purge = %d, want 0", got)
	}
}
