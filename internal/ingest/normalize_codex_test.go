package ingest

import "testing"

func TestNormalizeCodexEntry(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	event := &CodexEntryEvent{
		Timestamp:          "2026-01-15T12:00:00Z",
		EntryID:            2440102,
		SystemAddress:      3932277478106,
		BodyID:             27,
		BodyName:           "Alpha Centauri B 2",
		Latitude:           -12.5,
		Longitude:          101.25,
		Name:               "$Codex_Ent_Fumarole_CO2_Name;",
		Region:             "$Codex_RegionName_18;",
		Category:           "$Codex_Category_Biology;",
		SubCategory:        "$Codex_SubCategory_Geology_and_Anomalies;",
		NearestDestination: "$Fixed_Event_Life_Cloud;",
		VoucherAmount:      50000,
		Traits:             []string{"T1", "T2", "T3"},
	}

	bundle := normalizeCodexEntry(event, nil)

	if len(bundle.Landmarks) != 1 {
		t.Fatalf("bundle has %d landmarks, want 1", len(bundle.Landmarks))
	}

	landmark := bundle.Landmarks[0]

	if landmark.EntryID == nil || *landmark.EntryID != 2440102 {
		t.Error("codex landmark should be keyed by its entry ID")
	}

	if landmark.AuxiliaryID != nil {
		t.Error("codex landmark should carry no auxiliary ID")
	}

	if landmark.Region == nil || *landmark.Region != "$Codex_RegionName_18;" {
		t.Error("region should be set")
	}

	if landmark.VoucherAmount == nil || *landmark.VoucherAmount != 50000 {
		t.Error("voucher amount should be set")
	}

	if len(landmark.Traits) != 3 || landmark.Traits[0] != "T1" {
		t.Errorf("traits = %+v", landmark.Traits)
	}

	if landmark.NumTraits == nil || *landmark.NumTraits != 3 {
		t.Error("NumTraits should be 3")
	}
}

func TestNormalizeCodexEntry_EmptyTraits(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	event := &CodexEntryEvent{
		Timestamp:     "2026-01-15T12:00:00Z",
		EntryID:       1400158,
		SystemAddress: 3932277478106,
		Name:          "$Codex_Ent_Neutron_Stars_Name;",
		Category:      "$Codex_Category_StellarBodies;",
		Traits:        []string{},
	}

	bundle := normalizeCodexEntry(event, nil)
	landmark := bundle.Landmarks[0]

	// The trait list is exhaustive, so an empty list replaces any stored
	// traits rather than preserving them.
	if landmark.Traits == nil || len(landmark.Traits) != 0 {
		t.Error("empty traits should be concrete")
	}

	if landmark.NumTraits == nil || *landmark.NumTraits != 0 {
		t.Error("NumTraits should be 0")
	}
}
