package klippy

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printtrack/printtrack/internal/events"
)

// chanEmitter delivers emitted events to a channel so tests can wait
// for them without polling.
type chanEmitter struct {
	ch chan *events.Event
}

func newChanEmitter() *chanEmitter {
	return &chanEmitter{ch: make(chan *events.Event, 16)}
}

func (e *chanEmitter) Emit(ctx context.Context, event *events.Event) error {
	e.ch <- event
	return nil
}

func (e *chanEmitter) next(t *testing.T) *events.Event {
	t.Helper()
	select {
	case event := <-e.ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// startServer runs a websocket server whose connection handler drives
// one test scenario.
func startServer(t *testing.T, handle func(ctx context.Context, conn *websocket.Conn)) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept failed: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		handle(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)

	return srv.URL
}

// readRequest reads and decodes one request frame from the client.
func readRequest(ctx context.Context, t *testing.T, conn *websocket.Conn) Request {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var req Request
	require.NoError(t, json.Unmarshal(data, &req))
	return req
}

func writeJSON(ctx context.Context, t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

// holdOpen keeps the server side of the connection alive until the
// client closes it.
func holdOpen(ctx context.Context, conn *websocket.Conn) {
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func dialTestClient(t *testing.T, url string, emitter events.Emitter) *Client {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, url, emitter, 2*time.Second, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClientStartPrint(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		url := startServer(t, func(ctx context.Context, conn *websocket.Conn) {
			req := readRequest(ctx, t, conn)
			assert.Equal(t, methodPrintStart, req.Method)
			assert.JSONEq(t, `{"filename":"benchy.gcode"}`, string(req.Params))

			writeJSON(ctx, t, conn, map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result":  map[string]any{},
			})
		})

		client := dialTestClient(t, url, newChanEmitter())
		assert.NoError(t, client.StartPrint(context.Background(), "benchy.gcode"))
	})

	t.Run("rejected with a jsonrpc error", func(t *testing.T) {
		url := startServer(t, func(ctx context.Context, conn *websocket.Conn) {
			req := readRequest(ctx, t, conn)
			writeJSON(ctx, t, conn, map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]any{"code": 400, "message": "SD busy"},
			})
		})

		client := dialTestClient(t, url, newChanEmitter())
		err := client.StartPrint(context.Background(), "benchy.gcode")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SD busy")
	})
}

func TestClientNotifications(t *testing.T) {
	t.Run("status update", func(t *testing.T) {
		url := startServer(t, func(ctx context.Context, conn *websocket.Conn) {
			writeJSON(ctx, t, conn, map[string]any{
				"jsonrpc": "2.0",
				"method":  notifyStatusUpdate,
				"params": []any{
					map[string]any{"print_stats": map[string]any{"state": "printing"}},
					8834.5,
				},
			})
			holdOpen(ctx, conn)
		})

		emitter := newChanEmitter()
		dialTestClient(t, url, emitter)

		event := emitter.next(t)
		assert.Equal(t, events.TypeStatusUpdate, event.Type)

		var printStats map[string]any
		require.NoError(t, event.UnmarshalPayload(&printStats))
		assert.Equal(t, "printing", printStats["state"])
	})

	t.Run("shutdown and disconnect", func(t *testing.T) {
		url := startServer(t, func(ctx context.Context, conn *websocket.Conn) {
			writeJSON(ctx, t, conn, map[string]any{
				"jsonrpc": "2.0",
				"method":  notifyKlippyShutdown,
			})
			writeJSON(ctx, t, conn, map[string]any{
				"jsonrpc": "2.0",
				"method":  notifyKlippyDisconnected,
			})
			holdOpen(ctx, conn)
		})

		emitter := newChanEmitter()
		dialTestClient(t, url, emitter)

		assert.Equal(t, events.TypePrinterShutdown, emitter.next(t).Type)
		assert.Equal(t, events.TypePrinterDisconnected, emitter.next(t).Type)
	})

	t.Run("history changed", func(t *testing.T) {
		url := startServer(t, func(ctx context.Context, conn *websocket.Conn) {
			writeJSON(ctx, t, conn, map[string]any{
				"jsonrpc": "2.0",
				"method":  notifyHistoryChanged,
				"params": []any{
					map[string]any{
						"action": "added",
						"job":    map[string]any{"job_id": "00000A"},
					},
				},
			})
			holdOpen(ctx, conn)
		})

		emitter := newChanEmitter()
		dialTestClient(t, url, emitter)

		event := emitter.next(t)
		assert.Equal(t, events.TypeHistoryChanged, event.Type)

		var payload struct {
			Action string `json:"action"`
			Job    struct {
				JobID string `json:"job_id"`
			} `json:"job"`
		}
		require.NoError(t, event.UnmarshalPayload(&payload))
		assert.Equal(t, "added", payload.Action)
		assert.Equal(t, "00000A", payload.Job.JobID)
	})
}

func TestClientReadySubscribes(t *testing.T) {
	url := startServer(t, func(ctx context.Context, conn *websocket.Conn) {
		writeJSON(ctx, t, conn, map[string]any{
			"jsonrpc": "2.0",
			"method":  notifyKlippyReady,
		})

		// The ready notification must trigger a print_stats subscription.
		req := readRequest(ctx, t, conn)
		assert.Equal(t, methodSubscribeObjects, req.Method)

		writeJSON(ctx, t, conn, map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]any{
				"status": map[string]any{
					"print_stats": map[string]any{"state": "standby"},
				},
			},
		})
		holdOpen(ctx, conn)
	})

	emitter := newChanEmitter()
	dialTestClient(t, url, emitter)

	event := emitter.next(t)
	require.Equal(t, events.TypePrinterReady, event.Type)

	var payload struct {
		PrintStats map[string]any `json:"print_stats"`
	}
	require.NoError(t, event.UnmarshalPayload(&payload))
	assert.Equal(t, "standby", payload.PrintStats["state"])
}

func TestClientConnectionDropEmitsDisconnect(t *testing.T) {
	url := startServer(t, func(ctx context.Context, conn *websocket.Conn) {
		// Drop the connection immediately.
		_ = conn.Close(websocket.StatusGoingAway, "restarting")
	})

	emitter := newChanEmitter()
	dialTestClient(t, url, emitter)

	assert.Equal(t, events.TypePrinterDisconnected, emitter.next(t).Type)
}
