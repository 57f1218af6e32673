package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/printtrack/printtrack/internal/store"
)

const (
	getKeyQuery = `
		SELECT value FROM kv_entries
		WHERE namespace = $1 AND key = $2
	`

	setKeyQuery = `
		INSERT INTO kv_entries (namespace, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`

	listKeysQuery = `
		SELECT key, value FROM kv_entries
		WHERE namespace = $1
	`
)

// PostgresNamespaceStore implements the store.NamespaceStore interface
// using the kv_entries table.
type PostgresNamespaceStore struct {
	db store.DBTX
}

// NewPostgresNamespaceStore creates a new PostgresNamespaceStore.
func NewPostgresNamespaceStore(db store.DBTX) *PostgresNamespaceStore {
	return &PostgresNamespaceStore{db: db}
}

// GetKey fetches one value from a namespace.
// Returns store.ErrKeyNotFound when the key does not exist.
func (s *PostgresNamespaceStore) GetKey(
	ctx context.Context,
	namespace, key string,
) (json.RawMessage, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, getKeyQuery, namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", store.ErrKeyNotFound, namespace, key)
	}
	if err != nil {
		return nil, mapError("get key", err)
	}

	return value, nil
}

// SetKey upserts one value. The INSERT ... ON CONFLICT statement makes
// the write atomic per key, so writes to different keys never clobber
// each other.
func (s *PostgresNamespaceStore) SetKey(
	ctx context.Context,
	namespace, key string,
	value json.RawMessage,
) error {
	if _, err := s.db.ExecContext(ctx, setKeyQuery, namespace, key, []byte(value)); err != nil {
		return mapError("set key", err)
	}
	return nil
}

// ListKeys returns every key/value pair in a namespace.
func (s *PostgresNamespaceStore) ListKeys(
	ctx context.Context,
	namespace string,
) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, listKeysQuery, namespace)
	if err != nil {
		return nil, mapError("list keys", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make(map[string]json.RawMessage)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, mapError("scan key row", err)
		}
		entries[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, mapError("iterate key rows", err)
	}

	return entries, nil
}
