package task

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/printtrack/printtrack/internal/domain"
)

// Errors reported by manager operations.
var (
	// ErrFileNotFound is returned by Create when the requested file is
	// not present in the gcode repository.
	ErrFileNotFound = errors.New("file does not exist")

	// ErrPrintStartRejected is returned by Start when the printer
	// refuses the print command. Manager state is left unchanged.
	ErrPrintStartRejected = errors.New("printer rejected print start")
)

// PrinterGateway issues commands to the printer host.
type PrinterGateway interface {
	// StartPrint asks the printer to begin printing the named file.
	StartPrint(ctx context.Context, filename string) error
}

// GCodeRepository answers file existence checks against the gcode
// file repository.
type GCodeRepository interface {
	FileExists(ctx context.Context, filename string) (bool, error)
}

// View is the caller-facing representation of a task: the persisted
// record plus the metadata document joined in at read time. Metadata
// is null when the provider has no entry for the task's filename.
type View struct {
	domain.Task
	Metadata json.RawMessage `json:"metadata"`
}
