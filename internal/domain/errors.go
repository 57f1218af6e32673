package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrEmptyTaskID is returned when an operation requires a task ID
	// but none was supplied.
	ErrEmptyTaskID = errors.New("no task specified")

	// ErrInvalidTaskID is returned when a task ID is malformed.
	ErrInvalidTaskID = errors.New("invalid task ID")

	// ErrEmptyFilename is returned when a task is created without a filename.
	ErrEmptyFilename = errors.New("filename cannot be empty")

	// ErrInvalidTaskStatus is returned when a task status is not one of
	// the known lifecycle states.
	ErrInvalidTaskStatus = errors.New("invalid task status")
)
