package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entry does not exist in
	// the store. This is the generic version of the entry-specific not
	// found errors below.
	ErrNotFound = errors.New("entry not found")

	// ErrStoreUnavailable is returned when the persistence layer cannot
	// be reached. Callers surface this as an operation failure; the
	// store never retries on its own.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrTaskNotFound indicates that the requested task does not exist.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// ErrKeyNotFound indicates that the requested namespace key does
	// not exist.
	ErrKeyNotFound = fmt.Errorf("%w: key", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
