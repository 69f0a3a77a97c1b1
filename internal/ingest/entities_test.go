package ingest

import (
	"testing"

	"github.com/starlog-io/starlog/internal/canonical"
)

func TestBundleEmpty(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	var bundle Bundle
	if !bundle.Empty() {
		t.Error("zero bundle should be empty")
	}

	bundle.Signals = append(bundle.Signals, Signal{SystemAddress: 1, Type: "NavBeacon"})
	if bundle.Empty() {
		t.Error("bundle with a signal should not be empty")
	}
}

func TestBundleRefs_PersistenceOrder(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	bundle := Bundle{
		Systems:  []System{{SystemAddress: 10477373803, StarSystem: "Sol"}},
		Stations: []Station{{MarketID: 128016384, SystemAddress: 10477373803}},
		Bodies:   []Body{{SystemAddress: 10477373803, BodyID: 0}},
	}

	refs, err := bundle.Refs()
	if err != nil {
		t.Fatalf("Refs() unexpected error: %v", err)
	}

	if len(refs) != 3 {
		t.Fatalf("Refs() returned %d refs, want 3", len(refs))
	}

	want := []string{KindSystem, KindStation, KindBody}
	for i, kind := range want {
		if refs[i].Kind != kind {
			t.Errorf("refs[%d].Kind = %s, want %s", i, refs[i].Kind, kind)
		}
	}
}

func TestLandmarkRef_IdentityMembersDistinct(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	codex := Landmark{EntryID: ptr(int64(2440102)), SystemAddress: 1, BodyID: 4, Name: "Fumarole"}
	settlement := Landmark{AuxiliaryID: ptr("1-4-Anning Vision"), SystemAddress: 1, BodyID: 4, Name: "Anning Vision"}

	codexRef, err := codex.Ref()
	if err != nil {
		t.Fatalf("codex Ref() unexpected error: %v", err)
	}

	settlementRef, err := settlement.Ref()
	if err != nil {
		t.Fatalf("settlement Ref() unexpected error: %v", err)
	}

	// Both keys carry the null member explicitly, so a codex landmark can
	// never collide with a settlement landmark.
	if codexRef.Key == settlementRef.Key {
		t.Errorf("codex and settlement landmark keys collide: %s", codexRef.Key)
	}

	if codexRef.Key != `{"AuxiliaryID":null,"EntryID":2440102}` {
		t.Errorf("codex key = %s", codexRef.Key)
	}

	if settlementRef.Key != `{"AuxiliaryID":"1-4-Anning Vision","EntryID":null}` {
		t.Errorf("settlement key = %s", settlementRef.Key)
	}
}

func TestSignalRef_NamedAndCountedSignalsDistinct(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	counted := Signal{SystemAddress: 1, BodyID: ptr(int64(4)), Type: "$SAA_SignalType_Biological;", Count: 3}
	named := Signal{SystemAddress: 1, Type: "Installation", Count: 1, SignalName: ptr("Orbital Relay")}

	countedRef, err := counted.Ref()
	if err != nil {
		t.Fatalf("counted Ref() unexpected error: %v", err)
	}

	namedRef, err := named.Ref()
	if err != nil {
		t.Fatalf("named Ref() unexpected error: %v", err)
	}

	if countedRef.Key == namedRef.Key {
		t.Error("body-scoped and named signal keys should differ")
	}
}

func TestBundleRefs_LockOrderCompatible(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	bundle := Bundle{
		Systems: []System{{SystemAddress: 2, StarSystem: "B"}, {SystemAddress: 1, StarSystem: "A"}},
		Bodies:  []Body{{SystemAddress: 2, BodyID: 1}},
	}

	refs, err := bundle.Refs()
	if err != nil {
		t.Fatalf("Refs() unexpected error: %v", err)
	}

	ordered := canonical.LockOrder(refs)

	// Bodies sort before Systems, and keys sort within a kind.
	if ordered[0].Kind != KindBody {
		t.Errorf("ordered[0].Kind = %s, want Body", ordered[0].Kind)
	}

	if ordered[1].Kind != KindSystem || ordered[1].Key != `{"SystemAddress":1}` {
		t.Errorf("ordered[1] = %+v, want System 1", ordered[1])
	}
}
