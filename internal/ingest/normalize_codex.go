package ingest

// normalizeCodexEntry converts a codex discovery into a landmark keyed
// by its codex entry ID. Traits are always concrete since the event
// lists them exhaustively.
func normalizeCodexEntry(e *CodexEntryEvent, _ *Envelope) Bundle {
	traits := make([]string, len(e.Traits))
	copy(traits, e.Traits)

	landmark := Landmark{
		EntryID:            ptr(e.EntryID),
		SystemAddress:      e.SystemAddress,
		BodyID:             e.BodyID,
		Latitude:           e.Latitude,
		Longitude:          e.Longitude,
		Name:               e.Name,
		Region:             ptr(e.Region),
		Category:           ptr(e.Category),
		SubCategory:        ptr(e.SubCategory),
		NearestDestination: ptr(e.NearestDestination),
		VoucherAmount:      ptr(e.VoucherAmount),
		NumTraits:          ptr(len(traits)),
		Traits:             traits,
	}

	return Bundle{Landmarks: []Landmark{landmark}}
}
