package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printtrack/printtrack/internal/domain"
	"github.com/printtrack/printtrack/internal/store"
	"github.com/printtrack/printtrack/internal/task"
)

// In-memory collaborators backing a real manager for handler tests.

type memTaskStore struct {
	next  int64
	tasks map[string]domain.Task
}

func (s *memTaskStore) AllocateNextID(ctx context.Context) (string, error) {
	id := domain.FormatTaskID(s.next)
	s.next++
	return id, nil
}

func (s *memTaskStore) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	copied := t
	return &copied, nil
}

func (s *memTaskStore) SaveTask(ctx context.Context, t *domain.Task) error {
	s.tasks[t.TaskID] = *t
	return nil
}

func (s *memTaskStore) ListTasks(ctx context.Context) ([]*domain.Task, error) {
	out := make([]*domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		copied := t
		out = append(out, &copied)
	}
	return out, nil
}

type memMetadataStore struct {
	docs map[string]json.RawMessage
}

func (s *memMetadataStore) GetMetadata(ctx context.Context, filename string) (json.RawMessage, error) {
	doc, ok := s.docs[filename]
	if !ok {
		return nil, store.ErrKeyNotFound
	}
	return doc, nil
}

type stubGateway struct {
	err error
}

func (g *stubGateway) StartPrint(ctx context.Context, filename string) error {
	return g.err
}

type stubFiles struct {
	present map[string]bool
}

func (f *stubFiles) FileExists(ctx context.Context, filename string) (bool, error) {
	return f.present[filename], nil
}

type handlerFixture struct {
	router  chi.Router
	gateway *stubGateway
	files   *stubFiles
	meta    *memMetadataStore
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	f := &handlerFixture{
		gateway: &stubGateway{},
		files:   &stubFiles{present: map[string]bool{"benchy.gcode": true}},
		meta:    &memMetadataStore{docs: map[string]json.RawMessage{}},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := task.NewManager(
		&memTaskStore{tasks: map[string]domain.Task{}},
		f.meta,
		f.gateway,
		f.files,
		logger,
	)
	handler := NewTaskHandler(manager, logger)

	r := chi.NewRouter()
	r.Route("/server/tasks", func(r chi.Router) {
		r.Get("/list", handler.ListTasks)
		r.Get("/create", handler.CreateTask)
		r.Get("/start", handler.StartTask)
		r.Get("/current", handler.GetCurrentTask)
	})
	f.router = r
	return f
}

func (f *handlerFixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestCreateTaskEndpoint(t *testing.T) {
	t.Run("creates a task for an existing file", func(t *testing.T) {
		f := newHandlerFixture(t)
		rec := f.get(t, "/server/tasks/create?file=benchy.gcode")
		require.Equal(t, http.StatusOK, rec.Code)

		var view struct {
			TaskID   string          `json:"task_id"`
			Filename string          `json:"filename"`
			Status   string          `json:"status"`
			Jobs     []string        `json:"jobs"`
			Metadata json.RawMessage `json:"metadata"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		assert.Equal(t, "000000", view.TaskID)
		assert.Equal(t, "benchy.gcode", view.Filename)
		assert.Equal(t, "created", view.Status)
		assert.NotNil(t, view.Jobs)
		assert.Equal(t, "null", string(view.Metadata))
	})

	t.Run("404 with exact message for a missing file", func(t *testing.T) {
		f := newHandlerFixture(t)
		rec := f.get(t, "/server/tasks/create?file=ghost.gcode")
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "File does not exist", decodeError(t, rec))
	})

	t.Run("400 when no file given", func(t *testing.T) {
		f := newHandlerFixture(t)
		rec := f.get(t, "/server/tasks/create")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No filename specified", decodeError(t, rec))
	})

	t.Run("metadata present when known", func(t *testing.T) {
		f := newHandlerFixture(t)
		f.meta.docs["benchy.gcode"] = json.RawMessage(`{"object_height":48.0}`)

		rec := f.get(t, "/server/tasks/create?file=benchy.gcode")
		require.Equal(t, http.StatusOK, rec.Code)

		var view struct {
			Metadata json.RawMessage `json:"metadata"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		assert.JSONEq(t, `{"object_height":48.0}`, string(view.Metadata))
	})
}

func TestStartTaskEndpoint(t *testing.T) {
	t.Run("starts with a bare numeric id", func(t *testing.T) {
		f := newHandlerFixture(t)
		require.Equal(t, http.StatusOK, f.get(t, "/server/tasks/create?file=benchy.gcode").Code)

		rec := f.get(t, "/server/tasks/start?id=0")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	})

	t.Run("400 with exact message when no id given", func(t *testing.T) {
		f := newHandlerFixture(t)
		rec := f.get(t, "/server/tasks/start")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No task specified", decodeError(t, rec))
	})

	t.Run("404 with exact message for an unknown task", func(t *testing.T) {
		f := newHandlerFixture(t)
		rec := f.get(t, "/server/tasks/start?id=99")
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Task does not exist", decodeError(t, rec))
	})

	t.Run("502 when the printer rejects the start", func(t *testing.T) {
		f := newHandlerFixture(t)
		require.Equal(t, http.StatusOK, f.get(t, "/server/tasks/create?file=benchy.gcode").Code)
		f.gateway.err = errors.New("SD busy")

		rec := f.get(t, "/server/tasks/start?id=000000")
		require.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "Printer rejected print start", decodeError(t, rec))
	})
}

func TestCurrentTaskEndpoint(t *testing.T) {
	t.Run("null when nothing is current", func(t *testing.T) {
		f := newHandlerFixture(t)
		rec := f.get(t, "/server/tasks/current")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "null", rec.Body.String())
	})

	t.Run("returns the started task", func(t *testing.T) {
		f := newHandlerFixture(t)
		require.Equal(t, http.StatusOK, f.get(t, "/server/tasks/create?file=benchy.gcode").Code)
		require.Equal(t, http.StatusOK, f.get(t, "/server/tasks/start?id=000000").Code)

		rec := f.get(t, "/server/tasks/current")
		require.Equal(t, http.StatusOK, rec.Code)

		var view struct {
			TaskID string `json:"task_id"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
		assert.Equal(t, "000000", view.TaskID)
	})
}

func TestListTasksEndpoint(t *testing.T) {
	t.Run("empty list", func(t *testing.T) {
		f := newHandlerFixture(t)
		rec := f.get(t, "/server/tasks/list")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("all created tasks in id order", func(t *testing.T) {
		f := newHandlerFixture(t)
		require.Equal(t, http.StatusOK, f.get(t, "/server/tasks/create?file=benchy.gcode").Code)
		require.Equal(t, http.StatusOK, f.get(t, "/server/tasks/create?file=benchy.gcode").Code)

		rec := f.get(t, "/server/tasks/list")
		require.Equal(t, http.StatusOK, rec.Code)

		var views []struct {
			TaskID string `json:"task_id"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
		require.Len(t, views, 2)
		assert.Equal(t, "000000", views[0].TaskID)
		assert.Equal(t, "000001", views[1].TaskID)
	})
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{task.ErrFileNotFound, http.StatusNotFound, "File does not exist"},
		{store.ErrTaskNotFound, http.StatusNotFound, "Task does not exist"},
		{domain.ErrEmptyTaskID, http.StatusBadRequest, "No task specified"},
		{domain.ErrEmptyFilename, http.StatusBadRequest, "No filename specified"},
		{task.ErrPrintStartRejected, http.StatusBadGateway, "Printer rejected print start"},
		{store.ErrStoreUnavailable, http.StatusServiceUnavailable, "Service temporarily unavailable"},
		{errors.New("surprise"), http.StatusInternalServerError, "An unexpected error occurred"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.status, MapErrorToStatusCode(tc.err), "error %v", tc.err)
		assert.Equal(t, tc.message, GetSafeErrorMessage(tc.err), "error %v", tc.err)

		// Wrapped errors map the same way.
		wrapped := errors.Join(errors.New("context"), tc.err)
		assert.Equal(t, tc.status, MapErrorToStatusCode(wrapped), "wrapped %v", tc.err)
	}

	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
}
