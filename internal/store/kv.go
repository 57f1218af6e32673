package store

import (
	"context"
	"encoding/json"

	"github.com/printtrack/printtrack/internal/domain"
)

// Well-known namespaces and keys in the key-value store. The tasks
// namespace is private to this component: it holds one entry per task
// keyed by the zero-padded task ID, plus the nextid counter. The
// gcode_metadata namespace is written by the file scanner on the
// printer host and read here only.
const (
	NamespaceTasks         = "tasks"
	NamespaceGCodeMetadata = "gcode_metadata"

	KeyNextID = "nextid"
)

// NamespaceStore provides generic access to a namespaced persistent
// key-value mapping with atomic single-key upserts.
type NamespaceStore interface {
	// GetKey fetches one value. Returns ErrKeyNotFound when the key
	// does not exist.
	GetKey(ctx context.Context, namespace, key string) (json.RawMessage, error)

	// SetKey upserts one value. The upsert is atomic per key: writes
	// to different keys never interleave-corrupt each other.
	SetKey(ctx context.Context, namespace, key string, value json.RawMessage) error

	// ListKeys returns every key/value pair in a namespace. Order is
	// unspecified.
	ListKeys(ctx context.Context, namespace string) (map[string]json.RawMessage, error)
}

// TaskStore defines the persistence operations for task records.
type TaskStore interface {
	// AllocateNextID returns the next task ID in canonical string form
	// and advances the stored counter in the same atomic operation, so
	// two concurrent creations can never observe the same ID.
	AllocateNextID(ctx context.Context) (string, error)

	// GetTask fetches one task record. Returns ErrTaskNotFound when
	// the ID is unknown.
	GetTask(ctx context.Context, id string) (*domain.Task, error)

	// SaveTask upserts the full record for the task's ID as a single
	// atomic key update.
	SaveTask(ctx context.Context, task *domain.Task) error

	// ListTasks returns all stored task records in unspecified order.
	ListTasks(ctx context.Context) ([]*domain.Task, error)
}

// MetadataStore provides read-only access to parsed gcode file
// metadata, keyed by filename. Implementations have no side effects
// on task records.
type MetadataStore interface {
	// GetMetadata returns the raw metadata document for a filename, or
	// ErrKeyNotFound when the file has no metadata entry.
	GetMetadata(ctx context.Context, filename string) (json.RawMessage, error)
}
