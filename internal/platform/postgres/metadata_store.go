package postgres

import (
	"context"
	"encoding/json"

	"github.com/printtrack/printtrack/internal/store"
)

// PostgresMetadataStore implements the store.MetadataStore interface by
// reading the gcode_metadata namespace of the key-value table. The
// namespace is populated by the gcode file scanner; this store never
// writes to it.
type PostgresMetadataStore struct {
	kv store.NamespaceStore
}

// NewPostgresMetadataStore creates a new PostgresMetadataStore.
func NewPostgresMetadataStore(kv store.NamespaceStore) *PostgresMetadataStore {
	return &PostgresMetadataStore{kv: kv}
}

// GetMetadata returns the raw metadata document for a filename.
// Returns store.ErrKeyNotFound when the file has no metadata entry.
func (s *PostgresMetadataStore) GetMetadata(
	ctx context.Context,
	filename string,
) (json.RawMessage, error) {
	return s.kv.GetKey(ctx, store.NamespaceGCodeMetadata, filename)
}
