// Package api provides HTTP handlers for the API.
package api

import (
	"log/slog"
	"net/http"

	"github.com/printtrack/printtrack/internal/api/shared"
	"github.com/printtrack/printtrack/internal/domain"
	"github.com/printtrack/printtrack/internal/platform/logger"
	"github.com/printtrack/printtrack/internal/task"
)

// StartResponse is the response body for a successful start request.
type StartResponse struct {
	OK bool `json:"ok"`
}

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	manager *task.Manager
	logger  *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(manager *task.Manager, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		manager: manager,
		logger:  logger.With(slog.String("component", "task_handler")),
	}
}

// ListTasks handles GET /server/tasks/list requests.
// It returns every stored task with metadata joined in.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	views, err := h.manager.List(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("listed tasks", slog.Int("count", len(views)))
	shared.RespondWithJSON(w, r, http.StatusOK, views)
}

// CreateTask handles GET /server/tasks/create requests.
// The file query parameter names a gcode file that must exist in the
// repository; the created task is returned with metadata joined in.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	filename := r.URL.Query().Get("file")

	view, err := h.manager.Create(r.Context(), filename)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("created task",
		slog.String("task_id", view.TaskID),
		slog.String("filename", filename))
	shared.RespondWithJSON(w, r, http.StatusOK, view)
}

// StartTask handles GET /server/tasks/start requests.
// The id query parameter names the task to bind to the printer's active
// print. Numeric ids are accepted and normalized to the padded form.
func (h *TaskHandler) StartTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, err := domain.NormalizeTaskID(r.URL.Query().Get("id"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if err := h.manager.Start(r.Context(), id); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("started task", slog.String("task_id", id))
	shared.RespondWithJSON(w, r, http.StatusOK, StartResponse{OK: true})
}

// GetCurrentTask handles GET /server/tasks/current requests.
// The body is the current task with metadata joined in, or null when no
// task is current.
func (h *TaskHandler) GetCurrentTask(w http.ResponseWriter, r *http.Request) {
	view, err := h.manager.GetCurrent(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	// view is nil when no task is current; the client sees JSON null.
	shared.RespondWithJSON(w, r, http.StatusOK, view)
}
