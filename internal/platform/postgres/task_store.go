package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/printtrack/printtrack/internal/domain"
	"github.com/printtrack/printtrack/internal/store"
)

// allocateIDQuery advances the nextid counter and returns the value it
// held before the increment, all in one statement. The first
// allocation creates the counter row. Because read and increment are a
// single atomic upsert, two concurrent creations can never observe the
// same ID, even across processes sharing the table.
const allocateIDQuery = `
	INSERT INTO kv_entries (namespace, key, value)
	VALUES ($1, $2, '1'::jsonb)
	ON CONFLICT (namespace, key)
	DO UPDATE SET value = to_jsonb((kv_entries.value #>> '{}')::bigint + 1),
	              updated_at = now()
	RETURNING ((value #>> '{}')::bigint - 1)
`

// PostgresTaskStore implements the store.TaskStore interface using the
// kv_entries table. Task records live in the tasks namespace, one row
// per task keyed by the zero-padded task ID, next to the nextid
// counter row.
type PostgresTaskStore struct {
	db     store.DBTX
	kv     store.NamespaceStore
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgresTaskStore. The DBTX is
// needed alongside the namespace store because ID allocation requires
// a single read-and-increment statement that the generic key-value
// interface cannot express.
func NewPostgresTaskStore(db store.DBTX, kv store.NamespaceStore, logger *slog.Logger) *PostgresTaskStore {
	return &PostgresTaskStore{
		db:     db,
		kv:     kv,
		logger: logger.With("component", "task_store"),
	}
}

// AllocateNextID returns the next task ID in canonical string form and
// leaves the stored counter incremented by exactly one.
func (s *PostgresTaskStore) AllocateNextID(ctx context.Context) (string, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, allocateIDQuery, store.NamespaceTasks, store.KeyNextID).
		Scan(&id)
	if err != nil {
		return "", mapError("allocate task id", err)
	}

	return domain.FormatTaskID(id), nil
}

// GetTask fetches and deserializes one task record.
// Returns store.ErrTaskNotFound when the ID is unknown.
func (s *PostgresTaskStore) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	value, err := s.kv.GetKey(ctx, store.NamespaceTasks, id)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
		}
		return nil, err
	}

	var task domain.Task
	if err := json.Unmarshal(value, &task); err != nil {
		return nil, fmt.Errorf("failed to decode task %s: %w", id, err)
	}

	return &task, nil
}

// SaveTask upserts the full record for the task's ID.
func (s *PostgresTaskStore) SaveTask(ctx context.Context, task *domain.Task) error {
	value, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", task.TaskID, err)
	}

	if err := s.kv.SetKey(ctx, store.NamespaceTasks, task.TaskID, value); err != nil {
		s.logger.Error("failed to save task",
			"task_id", task.TaskID,
			"error", err)
		return err
	}

	return nil
}

// ListTasks returns all stored task records. Order is unspecified.
// Entries that fail to decode are skipped with a warning rather than
// failing the whole listing.
func (s *PostgresTaskStore) ListTasks(ctx context.Context) ([]*domain.Task, error) {
	entries, err := s.kv.ListKeys(ctx, store.NamespaceTasks)
	if err != nil {
		return nil, err
	}

	tasks := make([]*domain.Task, 0, len(entries))
	for key, value := range entries {
		// The counter shares the namespace with the task records.
		if key == store.KeyNextID {
			continue
		}
		if !isTaskKey(key) {
			continue
		}

		var task domain.Task
		if err := json.Unmarshal(value, &task); err != nil {
			s.logger.Warn("skipping undecodable task record",
				"task_id", key,
				"error", err)
			continue
		}
		tasks = append(tasks, &task)
	}

	return tasks, nil
}

// isTaskKey reports whether a namespace key names a task record.
func isTaskKey(key string) bool {
	_, err := strconv.ParseInt(key, 10, 64)
	return err == nil
}
