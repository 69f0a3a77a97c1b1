package storage

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// bcrypt silently truncates input past 72 bytes, which would make
	// long keys collide. Anything longer is reduced to its SHA-256
	// digest before hashing.
	bcryptInputLimit = 72

	// Cost 10 lands around 60ms per hash. Key validation happens once
	// per authenticated request, so that is affordable; raise it if the
	// threat model hardens.
	bcryptCost = 10
)

func bcryptInput(apiKey string) []byte {
	if len(apiKey) <= bcryptInputLimit {
		return []byte(apiKey)
	}

	digest := sha256.Sum256([]byte(apiKey))

	return digest[:]
}

// HashAPIKey derives the bcrypt hash stored in place of the plaintext
// key. The plaintext is never persisted.
func HashAPIKey(apiKey string) (string, error) {
	if apiKey == "" {
		return "", ErrKeyNil
	}

	hash, err := bcrypt.GenerateFromPassword(bcryptInput(apiKey), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}

	return string(hash), nil
}

// CompareAPIKeyHash reports whether a presented key matches a stored
// bcrypt hash. The work factor dominates the comparison, which also
// keeps it constant-time with respect to the key material.
func CompareAPIKeyHash(hash, apiKey string) bool {
	if hash == "" || apiKey == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(apiKey)) == nil
}
