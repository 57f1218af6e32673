package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/printtrack/printtrack/internal/domain"
	"github.com/printtrack/printtrack/internal/events"
	"github.com/printtrack/printtrack/internal/store"
)

// Printer states reported in the print_stats object.
const (
	printStatePrinting = "printing"
	printStateComplete = "complete"
	printStateStandby  = "standby"
	printStateError    = "error"
)

// Manager tracks the lifecycle of print tasks for one printer. All
// client-facing operations and all printer event handlers are
// serialized by a single mutex, so no two of them ever mutate the
// current pointer or a task record concurrently.
type Manager struct {
	mu       sync.Mutex
	tasks    store.TaskStore
	metadata store.MetadataStore
	gateway  PrinterGateway
	files    GCodeRepository
	logger   *slog.Logger

	// current is the ID of the task bound to the active print, or
	// empty when no task is current. It is a pointer held by the
	// manager, not a field on the task record.
	current string

	// printStats is the last observed print_stats snapshot, merged
	// from the initial subscription result and subsequent updates.
	printStats map[string]any
}

// NewManager creates a new Manager.
func NewManager(
	tasks store.TaskStore,
	metadata store.MetadataStore,
	gateway PrinterGateway,
	files GCodeRepository,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for Manager")
	}

	return &Manager{
		tasks:      tasks,
		metadata:   metadata,
		gateway:    gateway,
		files:      files,
		logger:     logger.With(slog.String("component", "task_manager")),
		printStats: map[string]any{},
	}
}

// Create allocates a new task for the given filename, persists it with
// status created, and returns it with metadata joined in. The file
// must exist in the gcode repository; the existence check precedes ID
// allocation so a failed create burns no ID.
func (m *Manager) Create(ctx context.Context, filename string) (*View, error) {
	if filename == "" {
		return nil, domain.ErrEmptyFilename
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	exists, err := m.files.FileExists(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to check gcode file: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
	}

	id, err := m.tasks.AllocateNextID(ctx)
	if err != nil {
		return nil, err
	}

	task, err := domain.NewTask(id, filename, time.Now())
	if err != nil {
		return nil, err
	}

	if err := m.tasks.SaveTask(ctx, task); err != nil {
		return nil, err
	}

	m.logger.Info("task created",
		"task_id", task.TaskID,
		"filename", filename)

	return m.newView(ctx, task), nil
}

// Start binds the named task to the printer's active print. The task
// must exist; the printer must accept the start command. The current
// pointer is assigned only after the printer accepts, so a status
// event arriving while the command is in flight observes no current
// task. A rejected start leaves all manager state unchanged.
//
// Start does not change the task's status; the status moves to
// printing only when the printer reports it.
func (m *Manager) Start(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrEmptyTaskID
	}

	m.mu.Lock()
	task, err := m.tasks.GetTask(ctx, id)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	if err := m.gateway.StartPrint(ctx, task.Filename); err != nil {
		return fmt.Errorf("%w: %v", ErrPrintStartRejected, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != "" && m.current != id {
		// A second start replaces the current pointer without
		// finishing the previous task; the replaced task keeps its
		// last status.
		m.logger.Warn("replacing current task without finishing it",
			"previous_task_id", m.current,
			"task_id", id)
	}
	m.current = id

	m.logger.Info("task started",
		"task_id", id,
		"filename", task.Filename)

	return nil
}

// GetCurrent returns the current task with metadata joined in, or nil
// when no task is current.
func (m *Manager) GetCurrent(ctx context.Context) (*View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == "" {
		return nil, nil
	}

	task, err := m.tasks.GetTask(ctx, m.current)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return m.newView(ctx, task), nil
}

// List returns every stored task with metadata joined in per task. The
// metadata join is recomputed on every call; it is never cached in the
// store.
func (m *Manager) List(ctx context.Context) ([]*View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks, err := m.tasks.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]*View, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, m.newView(ctx, task))
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].TaskID < views[j].TaskID
	})

	return views, nil
}

// HandleEvent dispatches a printer event to the matching handler,
// implementing events.Handler. Unknown event types are ignored.
func (m *Manager) HandleEvent(ctx context.Context, event *events.Event) error {
	switch event.Type {
	case events.TypePrinterReady:
		var payload struct {
			PrintStats map[string]any `json:"print_stats"`
		}
		if err := event.UnmarshalPayload(&payload); err != nil {
			return fmt.Errorf("failed to unmarshal ready payload: %w", err)
		}
		m.installSnapshot(payload.PrintStats)
		return nil

	case events.TypeStatusUpdate:
		var printStats map[string]any
		if err := event.UnmarshalPayload(&printStats); err != nil {
			return fmt.Errorf("failed to unmarshal status update payload: %w", err)
		}
		return m.HandleStatusUpdate(ctx, printStats)

	case events.TypePrinterDisconnected:
		return m.HandleDisconnect(ctx)

	case events.TypePrinterShutdown:
		return m.HandleShutdown(ctx)

	case events.TypeHistoryChanged:
		var payload struct {
			Action string `json:"action"`
			Job    struct {
				JobID string `json:"job_id"`
			} `json:"job"`
		}
		if err := event.UnmarshalPayload(&payload); err != nil {
			return fmt.Errorf("failed to unmarshal history payload: %w", err)
		}
		return m.HandleJobRecorded(ctx, payload.Action, payload.Job.JobID)

	default:
		return nil
	}
}

// HandleStatusUpdate merges a partial print_stats report into the
// snapshot and reacts to a change of its state field. Reports whose
// state equals the last observed state produce no task mutation, and
// nothing happens without a current task.
func (m *Manager) HandleStatusUpdate(ctx context.Context, printStats map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldState, _ := m.printStats["state"].(string)
	stateField, hasState := printStats["state"]

	// Merge before acting so the next report is compared against this one.
	merged := make(map[string]any, len(m.printStats)+len(printStats))
	for k, v := range m.printStats {
		merged[k] = v
	}
	for k, v := range printStats {
		merged[k] = v
	}
	m.printStats = merged

	if !hasState {
		return nil
	}
	newState, ok := stateField.(string)
	if !ok || newState == oldState || m.current == "" {
		return nil
	}

	switch newState {
	case printStatePrinting:
		return m.setTaskState(ctx, domain.TaskStatusPrinting)
	case printStateComplete:
		return m.finish(ctx, domain.TaskStatusCompleted)
	case printStateStandby:
		return m.finish(ctx, domain.TaskStatusCancelled)
	case printStateError:
		return m.finish(ctx, domain.TaskStatusError)
	default:
		return nil
	}
}

// HandleDisconnect finishes the current task with klippy_disconnect,
// regardless of the last reported printer state.
func (m *Manager) HandleDisconnect(ctx context.Context) error {
	return m.finishIfCurrent(ctx, domain.TaskStatusKlippyDisconnect)
}

// HandleShutdown finishes the current task with klippy_shutdown,
// regardless of the last reported printer state.
func (m *Manager) HandleShutdown(ctx context.Context) error {
	return m.finishIfCurrent(ctx, domain.TaskStatusKlippyShutdown)
}

// HandleJobRecorded appends a printer job record to the current task.
// Only "added" actions are recorded, and only while a task is current.
func (m *Manager) HandleJobRecorded(ctx context.Context, action, jobID string) error {
	if action != "added" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == "" {
		return nil
	}

	task, err := m.tasks.GetTask(ctx, m.current)
	if err != nil {
		return err
	}

	task.AppendJob(jobID)
	if err := m.tasks.SaveTask(ctx, task); err != nil {
		return err
	}

	m.logger.Debug("job recorded against current task",
		"task_id", task.TaskID,
		"job_id", jobID)

	return nil
}

// installSnapshot replaces the print_stats snapshot. Called when the
// printer reports ready with the initial subscription result; an empty
// map stands in when the subscription failed.
func (m *Manager) installSnapshot(printStats map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if printStats == nil {
		printStats = map[string]any{}
	}
	m.printStats = printStats

	m.logger.Debug("installed print_stats snapshot", "state", printStats["state"])
}

// finishIfCurrent finishes the current task with the given terminal
// status, or does nothing when no task is current.
func (m *Manager) finishIfCurrent(ctx context.Context, status domain.TaskStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == "" {
		return nil
	}

	return m.finish(ctx, status)
}

// finish sets the current task's status, persists it, and clears the
// current pointer. Callers hold the mutex, so no reader ever observes
// the status set with the pointer still in place, or vice versa.
func (m *Manager) finish(ctx context.Context, status domain.TaskStatus) error {
	if err := m.setTaskState(ctx, status); err != nil {
		return err
	}

	m.logger.Info("task finished", "task_id", m.current, "status", status)
	m.current = ""

	return nil
}

// setTaskState updates the current task's status in the store.
// Callers hold the mutex.
func (m *Manager) setTaskState(ctx context.Context, status domain.TaskStatus) error {
	task, err := m.tasks.GetTask(ctx, m.current)
	if err != nil {
		m.logger.Error("failed to load current task for state change",
			"task_id", m.current,
			"status", status,
			"error", err)
		return err
	}

	task.Status = status
	if err := m.tasks.SaveTask(ctx, task); err != nil {
		return err
	}

	return nil
}

// newView joins the metadata document for the task's filename into a
// caller-facing view. Missing metadata leaves the field null; other
// lookup failures are logged and degrade to a null field rather than
// failing the operation.
func (m *Manager) newView(ctx context.Context, task *domain.Task) *View {
	view := &View{Task: *task}

	metadata, err := m.metadata.GetMetadata(ctx, task.Filename)
	switch {
	case err == nil:
		view.Metadata = metadata
	case !store.IsNotFoundError(err):
		m.logger.Warn("failed to load gcode metadata",
			"filename", task.Filename,
			"error", err)
	}

	return view
}
