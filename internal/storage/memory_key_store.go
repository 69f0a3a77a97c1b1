package storage

import (
	"context"
	"slices"
	"sync"
)

var _ KeyStore = (*InMemoryKeyStore)(nil)

// InMemoryKeyStore keeps API keys in process memory. It backs local
// development and tests, where a database-backed store is overkill.
// Records are indexed twice: by ID for lifecycle operations and by the
// key string for request authentication.
type InMemoryKeyStore struct {
	mu    sync.RWMutex
	byID  map[string]*Key
	byKey map[string]*Key
}

// NewInMemoryKeyStore returns an empty store safe for concurrent use.
func NewInMemoryKeyStore() *InMemoryKeyStore {
	return &InMemoryKeyStore{
		byID:  make(map[string]*Key),
		byKey: make(map[string]*Key),
	}
}

// FindByKey looks a key up by its plaintext value.
func (s *InMemoryKeyStore) FindByKey(_ context.Context, key string) (*Key, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.byKey[key]
	if !ok {
		return nil, false
	}

	return copyKey(stored), true
}

// Add registers a key. Both the ID and the key string must be unused.
func (s *InMemoryKeyStore) Add(_ context.Context, apiKey *Key) error {
	if apiKey == nil {
		return ErrKeyNil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[apiKey.ID]; ok {
		return ErrKeyAlreadyExists
	}

	if _, ok := s.byKey[apiKey.Key]; ok {
		return ErrKeyAlreadyExists
	}

	stored := copyKey(apiKey)
	s.byID[stored.ID] = stored
	s.byKey[stored.Key] = stored

	return nil
}

// Update replaces the stored record carrying the same ID.
func (s *InMemoryKeyStore) Update(_ context.Context, apiKey *Key) error {
	if apiKey == nil {
		return ErrKeyNil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[apiKey.ID]
	if !ok {
		return ErrKeyNotFound
	}

	// The key string may have been rotated; drop the stale index entry.
	if current.Key != apiKey.Key {
		delete(s.byKey, current.Key)
	}

	stored := copyKey(apiKey)
	s.byID[stored.ID] = stored
	s.byKey[stored.Key] = stored

	return nil
}

// Delete removes the record with the given ID.
func (s *InMemoryKeyStore) Delete(_ context.Context, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[keyID]
	if !ok {
		return ErrKeyNotFound
	}

	delete(s.byID, keyID)
	delete(s.byKey, current.Key)

	return nil
}

// ListByUploader returns every key owned by the uploader. Unknown
// uploaders get an empty slice, not an error.
func (s *InMemoryKeyStore) ListByUploader(_ context.Context, uploaderID string) ([]*Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := []*Key{}

	for _, stored := range s.byID {
		if stored.UploaderID == uploaderID {
			keys = append(keys, copyKey(stored))
		}
	}

	return keys, nil
}

// copyKey clones a record so callers cannot mutate store state through
// the returned pointer.
func copyKey(k *Key) *Key {
	clone := *k
	clone.Permissions = slices.Clone(k.Permissions)

	return &clone
}
