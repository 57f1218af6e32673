package domain

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// TaskStatus represents the lifecycle state of a print task.
type TaskStatus string

// Possible task status values. A task starts as created, moves to
// printing while the printer works on it, and ends in one of the
// terminal states when its activation finishes.
const (
	TaskStatusCreated          TaskStatus = "created"
	TaskStatusPrinting         TaskStatus = "printing"
	TaskStatusCompleted        TaskStatus = "completed"
	TaskStatusCancelled        TaskStatus = "cancelled"
	TaskStatusError            TaskStatus = "error"
	TaskStatusKlippyShutdown   TaskStatus = "klippy_shutdown"
	TaskStatusKlippyDisconnect TaskStatus = "klippy_disconnect"
)

// TaskIDWidth is the number of decimal digits in a task ID.
const TaskIDWidth = 6

// Task represents a tracked request to print a specific gcode file.
// The JSON form of this struct is both the persisted store value and
// the base of the API representation. File metadata is intentionally
// not a field here; it is joined in at read time and never persisted
// with the task record.
type Task struct {
	TaskID      string     `json:"task_id"`
	Filename    string     `json:"filename"`
	Name        string     `json:"name"`
	CreatedTime float64    `json:"created_time"`
	Status      TaskStatus `json:"status"`
	LastJobID   string     `json:"last_job_id,omitempty"`
	Jobs        []string   `json:"jobs"`
}

// NewTask creates a new Task for the given allocated ID and filename.
// The task name is derived from the filename's base name without its
// extension, status starts as created, and the job list starts empty.
func NewTask(id, filename string, now time.Time) (*Task, error) {
	t := &Task{
		TaskID:      id,
		Filename:    filename,
		Name:        taskName(filename),
		CreatedTime: float64(now.UnixMilli()) / 1000.0,
		Status:      TaskStatusCreated,
		Jobs:        []string{},
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	// IDs keep growing past the padded width once the counter exceeds
	// six digits, so only a minimum width is enforced.
	if _, err := strconv.ParseInt(t.TaskID, 10, 64); err != nil || len(t.TaskID) < TaskIDWidth {
		return fmt.Errorf("%w: %q", ErrInvalidTaskID, t.TaskID)
	}

	if t.Filename == "" {
		return ErrEmptyFilename
	}

	if !isValidTaskStatus(t.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidTaskStatus, t.Status)
	}

	return nil
}

// AppendJob records a printer job against the task: the job ID is
// appended to the job history and becomes the last job ID.
func (t *Task) AppendJob(jobID string) {
	t.Jobs = append(t.Jobs, jobID)
	t.LastJobID = jobID
}

// IsTerminal reports whether the status ends a task activation.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusCancelled, TaskStatusError,
		TaskStatusKlippyShutdown, TaskStatusKlippyDisconnect:
		return true
	default:
		return false
	}
}

// FormatTaskID renders a numeric task ID in its canonical zero-padded
// fixed-width string form.
func FormatTaskID(n int64) string {
	return fmt.Sprintf("%0*d", TaskIDWidth, n)
}

// NormalizeTaskID converts a caller-supplied task ID, which may be a
// bare integer or an already padded string, into the canonical form.
// Returns ErrEmptyTaskID when no ID was supplied. Non-numeric input is
// passed through unchanged; lookup decides whether it names a task.
func NormalizeTaskID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyTaskID
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n >= 0 {
		return FormatTaskID(n), nil
	}

	return raw, nil
}

// taskName derives the display name from a filename: the base name
// with the extension stripped.
func taskName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// isValidTaskStatus checks if the given status is a known TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusCreated, TaskStatusPrinting, TaskStatusCompleted,
		TaskStatusCancelled, TaskStatusError, TaskStatusKlippyShutdown,
		TaskStatusKlippyDisconnect:
		return true
	default:
		return false
	}
}
