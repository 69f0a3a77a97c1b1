// Package canonical provides canonical key generation for entity rows.
//
// Canonical keys let independent writers agree on which row an event touches
// before any of them talks to the database. Two ingest workers replaying the
// same archive line, or an archive worker racing the live stream consumer,
// must derive byte-identical keys for the same entity or the per-row
// freshness bookkeeping falls apart.
//
// This package provides pure utility functions that operate on primitives
// rather than domain types, making it reusable across entity kinds.
//
// Key functions:
//   - Key: serializes primary key fields into the shared canonical form
//   - LockOrder: orders entity references for deadlock-free lock acquisition
package canonical

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// MaxKeyLength is the maximum length for a canonical primary key.
// Generous for this schema: the widest key (signal rows) stays well under it.
const MaxKeyLength = 512

// Sentinel errors for canonical key operations.
var (
	// ErrEmptyKey is returned when no primary key fields are provided.
	ErrEmptyKey = errors.New("canonical key requires at least one field")

	// ErrKeyTooLong is returned when a serialized key exceeds MaxKeyLength.
	ErrKeyTooLong = errors.New("canonical key exceeds maximum length")

	// ErrUnsupportedValue is returned when a field value cannot be serialized.
	ErrUnsupportedValue = errors.New("canonical key field cannot be serialized")
)

// Ref identifies one entity row: its kind plus the canonical serialization of
// its primary key fields. Refs are the unit of sentinel locking and freshness
// tracking.
type Ref struct {
	Kind string
	Key  string
}

// Key serializes primary key fields into the canonical form shared by every
// writer: compact JSON with object keys in ascending byte order.
//
// Determinism is the entire point. encoding/json sorts map keys, emits no
// insignificant whitespace, and formats integers without exponents, so the
// same fields always produce the same bytes regardless of which writer or
// which code path built the map.
//
// Field values may be integers, strings, booleans, or nil (for optional key
// parts such as a landmark with no catalog entry). Typed nil pointers
// serialize as JSON null, same as untyped nil.
//
// Examples:
//   - Key(map[string]any{"SystemAddress": int64(10477373803)}) → `{"SystemAddress":10477373803}`
//   - Key(map[string]any{"BodyID": int64(4), "SystemAddress": int64(10477373803)}) → `{"BodyID":4,"SystemAddress":10477373803}`
//   - Key(map[string]any{"EntryID": nil, "AuxiliaryID": "10477373803-4-Anning Vision"}) → `{"AuxiliaryID":"10477373803-4-Anning Vision","EntryID":null}`
//
// Returns the canonical key string, or an error for empty or unserializable
// input.
func Key(fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "", ErrEmptyKey
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnsupportedValue, err)
	}

	if len(data) > MaxKeyLength {
		return "", fmt.Errorf("%w: %d bytes", ErrKeyTooLong, len(data))
	}

	return string(data), nil
}

// LockOrder returns the refs deduplicated and sorted kind-first, key-second.
//
// Every writer that needs row locks for a set of entities must acquire them
// in this order. Two transactions locking overlapping sets then always meet
// on the first shared ref instead of deadlocking on crossed pairs.
//
// The input slice is not modified. Exact duplicates collapse to one entry;
// a ref is never locked twice within one transaction.
func LockOrder(refs []Ref) []Ref {
	if len(refs) == 0 {
		return nil
	}

	ordered := make([]Ref, len(refs))
	copy(ordered, refs)

	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Kind != ordered[j].Kind {
			return ordered[i].Kind < ordered[j].Kind
		}

		return ordered[i].Key < ordered[j].Key
	})

	deduped := ordered[:1]
	for _, ref := range ordered[1:] {
		last := deduped[len(deduped)-1]
		if ref.Kind != last.Kind || ref.Key != last.Key {
			deduped = append(deduped, ref)
		}
	}

	return deduped
}
