package ingest

// Normalizers turn strictly decoded events into entity bundles. They
// are pure: no I/O, no errors. Conventions shared by all of them:
//
//   - A nil pointer field means the event said nothing about that
//     column; the stored value is preserved on update.
//   - A nil child slice means the event said nothing about that
//     collection; a non-nil slice, even empty, replaces it.
//   - Scalar defaults from the journal schemas ("None", "Independent")
//     are applied here, not during decoding.
//
// A normalizer may return an empty bundle to signal that the event is
// valid but carries nothing persistable; the pipeline counts such
// lines as skipped.

// ptr returns a pointer to v, for filling nullable entity fields.
func ptr[T any](v T) *T {
	return &v
}
