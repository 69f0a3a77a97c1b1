package storage

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// keyPrefix marks every API key this service issues. The rest of the key
// is 32 random bytes rendered as hex, giving a fixed overall length.
const (
	keyPrefix      = "starlog_ak_"
	keyRandomBytes = 32
	keyLength      = len(keyPrefix) + 2*keyRandomBytes

	// Masked keys keep the prefix plus four leading and four trailing
	// characters of the random part, enough to tell keys apart in logs
	// without leaking usable material.
	maskKeepPrefix = len(keyPrefix) + 4
	maskKeepSuffix = 4
)

var (
	// ErrKeyAlreadyExists reports an attempt to register a key the store
	// already holds.
	ErrKeyAlreadyExists = errors.New("API key already exists")
	// ErrKeyNotFound reports an operation against a key the store does
	// not hold.
	ErrKeyNotFound = errors.New("API key not found")
	// ErrKeyNil reports a nil key passed to a store operation.
	ErrKeyNil = errors.New("API key cannot be nil")
	// ErrUploaderIDEmpty reports key generation or listing without an
	// uploader identity.
	ErrUploaderIDEmpty = errors.New("uploader ID cannot be empty")
	// ErrKeyStringEmpty reports an empty credential in the request.
	ErrKeyStringEmpty = errors.New("key string cannot be empty")
	// ErrInvalidKeyFormat reports a credential without the issued prefix.
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	// ErrInvalidKeyLength reports a credential of the wrong length.
	ErrInvalidKeyLength = errors.New("invalid API key length")
)

// Key is an issued API key together with the uploader it belongs to and
// what that uploader is allowed to do.
type Key struct {
	ID          string     `json:"id"`
	Key         string     `json:"key"`
	UploaderID  string     `json:"uploaderId"`
	Name        string     `json:"name"`
	Permissions []string   `json:"permissions"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Active      bool       `json:"active"`
}

// KeyStore is the lookup and lifecycle surface shared by the HTTP
// middleware and the key management tooling.
type KeyStore interface {
	// FindByKey resolves a plaintext key to its stored record.
	FindByKey(ctx context.Context, key string) (*Key, bool)
	// Add registers a new key.
	Add(ctx context.Context, apiKey *Key) error
	// Update rewrites an existing key's mutable fields.
	Update(ctx context.Context, apiKey *Key) error
	// Delete retires a key by ID.
	Delete(ctx context.Context, keyID string) error
	// ListByUploader returns every key owned by one uploader.
	ListByUploader(ctx context.Context, uploaderID string) ([]*Key, error)
}

// ValidateKey reports whether providedKey matches this key and the key is
// still usable: active and not past its expiry.
func (ak *Key) ValidateKey(providedKey string) bool {
	if providedKey == "" || ak.Key == "" || !ak.Active {
		return false
	}

	if ak.ExpiresAt != nil && time.Now().After(*ak.ExpiresAt) {
		return false
	}

	return SecureCompare(ak.Key, providedKey)
}

// HasPermission reports whether the key grants the named permission.
func (ak *Key) HasPermission(permission string) bool {
	return slices.Contains(ak.Permissions, permission)
}

// SecureCompare compares two strings in constant time. Length is the only
// thing a caller can learn from how long it takes.
func SecureCompare(a, b string) bool {
	if len(a) != len(b) {
		// Burn the same comparison work before failing so mismatched
		// lengths are not observably faster.
		subtle.ConstantTimeCompare([]byte(a), make([]byte, len(a)))

		return false
	}

	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MaskKey renders a key for logs. Full-length issued keys keep their
// prefix and a short tail; anything else is starred out entirely.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}

	if len(key) != keyLength {
		return strings.Repeat("*", len(key))
	}

	hidden := keyLength - maskKeepPrefix - maskKeepSuffix

	return key[:maskKeepPrefix] + strings.Repeat("*", hidden) + key[keyLength-maskKeepSuffix:]
}

// GenerateAPIKey mints a fresh key for an uploader.
func GenerateAPIKey(uploaderID string) (string, error) {
	if uploaderID == "" {
		return "", ErrUploaderIDEmpty
	}

	random := make([]byte, keyRandomBytes)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return keyPrefix + hex.EncodeToString(random), nil
}

// ParseAPIKey normalizes a credential taken from a request header,
// accepting an optional Bearer scheme, and checks it against the issued
// key format.
func ParseAPIKey(keyString string) (string, error) {
	if keyString == "" {
		return "", ErrKeyStringEmpty
	}

	keyString = strings.TrimPrefix(keyString, "Bearer ")

	if !strings.HasPrefix(keyString, keyPrefix) {
		return "", ErrInvalidKeyFormat
	}

	if len(keyString) != keyLength {
		return "", ErrInvalidKeyLength
	}

	return keyString, nil
}
