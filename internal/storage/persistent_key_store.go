package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/starlog-io/starlog/internal/config"
)

// Audit log operation names.
const (
	auditKeyCreated = "created"
	auditKeyUpdated = "updated"
	auditKeyDeleted = "deleted"
)

var _ KeyStore = (*PersistentKeyStore)(nil)

// PersistentKeyStore keeps API keys in PostgreSQL. Only bcrypt hashes of
// the key material are stored, and every mutation leaves a row in the
// audit log table.
type PersistentKeyStore struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPersistentKeyStore wraps an established connection pool.
func NewPersistentKeyStore(conn *Connection) (*PersistentKeyStore, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConnection
	}

	return &PersistentKeyStore{
		conn: conn,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
	}, nil
}

// Close releases the underlying pool. Safe to call more than once.
func (s *PersistentKeyStore) Close() error {
	if s.conn == nil {
		return nil
	}

	return s.conn.Close()
}

const selectKeyColumns = `
	SELECT id, key_hash, uploader_id, name, permissions, created_at, expires_at, active
	FROM api_keys
`

// scanKey reads one api_keys row. The Key field carries the bcrypt hash,
// which the caller either compares against or masks before handing out.
func scanKey(rows *sql.Rows) (*Key, error) {
	var (
		key             Key
		permissionsJSON []byte
	)

	if err := rows.Scan(
		&key.ID,
		&key.Key,
		&key.UploaderID,
		&key.Name,
		&permissionsJSON,
		&key.CreatedAt,
		&key.ExpiresAt,
		&key.Active,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(permissionsJSON, &key.Permissions); err != nil {
		return nil, err
	}

	return &key, nil
}

// FindByKey resolves the presented plaintext to its active record.
//
// bcrypt embeds a per-hash salt, so there is no deterministic value to
// index on: the active keys are walked and compared one by one. That is
// fine at the current uploader population; an indexed digest column is
// the upgrade path if it ever grows past a few thousand keys.
func (s *PersistentKeyStore) FindByKey(ctx context.Context, key string) (*Key, bool) {
	if key == "" {
		return nil, false
	}

	rows, err := s.conn.QueryContext(ctx, selectKeyColumns+"WHERE active = TRUE")
	if err != nil {
		return nil, false
	}

	defer func() {
		_ = rows.Close()
	}()

	var match *Key

	for rows.Next() {
		candidate, err := scanKey(rows)
		if err != nil {
			continue
		}

		if CompareAPIKeyHash(candidate.Key, key) {
			candidate.Key = MaskKey(candidate.Key)
			match = candidate

			break
		}
	}

	if err := rows.Err(); err != nil {
		s.logger.Error("api key lookup failed",
			slog.String("key", MaskKey(key)),
			slog.String("error", err.Error()))

		return nil, false
	}

	return match, match != nil
}

// Add stores a new key. The plaintext is bcrypt-hashed before it touches
// the database, and a duplicate of an existing active key is rejected.
func (s *PersistentKeyStore) Add(ctx context.Context, apiKey *Key) error {
	if apiKey == nil {
		return ErrKeyNil
	}

	// Duplicate detection has to go through hash comparison: two hashes
	// of the same plaintext never match each other directly.
	if _, found := s.FindByKey(ctx, apiKey.Key); found {
		return ErrKeyAlreadyExists
	}

	keyHash, err := HashAPIKey(apiKey.Key)
	if err != nil {
		return fmt.Errorf("failed to hash API key: %w", err)
	}

	permissionsJSON, err := permissionsToJSON(apiKey.Permissions)
	if err != nil {
		return fmt.Errorf("failed to serialize permissions: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO api_keys (id, key_hash, uploader_id, name, permissions, created_at, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		apiKey.ID,
		keyHash,
		apiKey.UploaderID,
		apiKey.Name,
		permissionsJSON,
		apiKey.CreatedAt,
		apiKey.ExpiresAt,
		apiKey.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to insert API key: %w", err)
	}

	s.audit(ctx, auditKeyCreated, apiKey)

	return nil
}

// Update rewrites the mutable fields of a key: name, permissions, active
// flag and expiry. The hash itself never changes; rotating the secret
// means issuing a new key.
func (s *PersistentKeyStore) Update(ctx context.Context, apiKey *Key) error {
	if apiKey == nil {
		return ErrKeyNil
	}

	if apiKey.ID == "" {
		return ErrKeyNotFound
	}

	permissionsJSON, err := permissionsToJSON(apiKey.Permissions)
	if err != nil {
		return fmt.Errorf("failed to serialize permissions: %w", err)
	}

	result, err := s.conn.ExecContext(ctx, `
		UPDATE api_keys
		SET name = $1, permissions = $2, active = $3, expires_at = $4
		WHERE id = $5`,
		apiKey.Name,
		permissionsJSON,
		apiKey.Active,
		apiKey.ExpiresAt,
		apiKey.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update API key: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return ErrKeyNotFound
	}

	s.audit(ctx, auditKeyUpdated, apiKey)

	return nil
}

// Delete deactivates a key. The row stays behind for the audit trail.
func (s *PersistentKeyStore) Delete(ctx context.Context, keyID string) error {
	if keyID == "" {
		return ErrKeyNotFound
	}

	result, err := s.conn.ExecContext(ctx,
		"UPDATE api_keys SET active = FALSE WHERE id = $1", keyID)
	if err != nil {
		return fmt.Errorf("failed to delete API key: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return ErrKeyNotFound
	}

	s.audit(ctx, auditKeyDeleted, &Key{ID: keyID})

	return nil
}

// ListByUploader returns the uploader's active keys, newest first, with
// hashes masked.
func (s *PersistentKeyStore) ListByUploader(ctx context.Context, uploaderID string) ([]*Key, error) {
	if uploaderID == "" {
		return nil, ErrUploaderIDEmpty
	}

	rows, err := s.conn.QueryContext(ctx,
		selectKeyColumns+"WHERE uploader_id = $1 AND active = TRUE ORDER BY created_at DESC",
		uploaderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query API keys: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	keys := []*Key{}

	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			continue
		}

		key.Key = MaskKey(key.Key)
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return keys, nil
}

// audit records a key lifecycle event. Failures are logged and swallowed:
// the key operation itself has already succeeded.
func (s *PersistentKeyStore) audit(ctx context.Context, operation string, apiKey *Key) {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO api_key_audit_log (api_key_id, operation, masked_key, uploader_id, metadata)
		VALUES ($1, $2, $3, $4, $5)`,
		apiKey.ID,
		operation,
		MaskKey(apiKey.Key),
		apiKey.UploaderID,
		[]byte("{}"),
	)
	if err != nil {
		s.logger.Error("failed to write api key audit entry",
			slog.String("operation", operation),
			slog.String("error", err.Error()))
	}
}

// permissionsToJSON renders the permission list for the JSONB column. A
// nil slice stores as an empty array, not SQL null.
func permissionsToJSON(permissions []string) ([]byte, error) {
	if permissions == nil {
		permissions = []string{}
	}

	return json.Marshal(permissions)
}
