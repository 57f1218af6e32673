// Package klippy maintains the JSON-RPC websocket connection to the
// printer host. It issues print commands, subscribes to print_stats,
// and translates server notifications into events for the task
// lifecycle manager. A single read loop dispatches notifications, so
// events are emitted in arrival order.
package klippy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/printtrack/printtrack/internal/events"
)

// readLimit caps inbound frame size.
const readLimit = 1 << 20

// Client is a JSON-RPC client for the printer host websocket.
type Client struct {
	conn    *websocket.Conn
	emitter events.Emitter
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan Message

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Dial connects to the printer host websocket and starts the read
// loop. The dial context only bounds connection establishment; the
// client runs until Close is called or the connection drops.
func Dial(
	ctx context.Context,
	url string,
	emitter events.Emitter,
	requestTimeout time.Duration,
	logger *slog.Logger,
) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial printer websocket: %w", err)
	}
	conn.SetReadLimit(readLimit)

	clientCtx, cancel := context.WithCancel(context.Background())

	c := &Client{
		conn:    conn,
		emitter: emitter,
		logger:  logger.With(slog.String("component", "klippy_client")),
		timeout: requestTimeout,
		pending: make(map[int64]chan Message),
		ctx:     clientCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go c.readLoop()

	return c, nil
}

// StartPrint asks the printer to begin printing the named file. A
// JSON-RPC error from the printer is returned to the caller.
func (c *Client) StartPrint(ctx context.Context, filename string) error {
	_, err := c.Call(ctx, methodPrintStart, map[string]string{"filename": filename})
	return err
}

// Call sends one JSON-RPC request and waits for its response, bounded
// by the configured request timeout.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan Message, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	req, err := NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.conn.Write(callCtx, websocket.MessageText, data); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}

	select {
	case msg := <-ch:
		if msg.Error != nil {
			return nil, fmt.Errorf("%s: %w", method, msg.Error)
		}
		return msg.Result, nil
	case <-callCtx.Done():
		return nil, fmt.Errorf("%s: %w", method, callCtx.Err())
	case <-c.done:
		return nil, fmt.Errorf("%s: connection closed", method)
	}
}

// Close shuts down the client and its websocket connection.
func (c *Client) Close() error {
	c.cancel()
	return c.conn.Close(websocket.StatusNormalClosure, "shutting down")
}

// readLoop receives frames until the connection drops or the client
// is closed. Responses are routed to their pending call; notifications
// are translated into events.
func (c *Client) readLoop() {
	defer close(c.done)

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Warn("printer websocket read failed", "error", err)
				c.emit(events.TypePrinterDisconnected, nil)
			}
			return
		}

		msg, err := UnmarshalMessage(data)
		if err != nil {
			c.logger.Warn("discarding unparseable frame", "error", err)
			continue
		}

		if msg.ID != nil {
			c.mu.Lock()
			ch, ok := c.pending[*msg.ID]
			c.mu.Unlock()
			if ok {
				ch <- msg
			} else {
				c.logger.Debug("dropping response with no pending call", "id", *msg.ID)
			}
			continue
		}

		c.handleNotification(msg.Method, msg.Params)
	}
}

// handleNotification maps one server notification onto an emitted
// event. Unrecognized notifications are ignored.
func (c *Client) handleNotification(method string, params json.RawMessage) {
	switch method {
	case notifyKlippyReady:
		// Subscribing is a blocking call that needs the read loop, so
		// it runs on its own goroutine.
		go c.subscribeAndAnnounce()

	case notifyStatusUpdate:
		printStats, ok := extractObjectStatus(params, "print_stats")
		if !ok {
			return
		}
		c.emit(events.TypeStatusUpdate, printStats)

	case notifyKlippyDisconnected:
		c.emit(events.TypePrinterDisconnected, nil)

	case notifyKlippyShutdown:
		c.emit(events.TypePrinterShutdown, nil)

	case notifyHistoryChanged:
		var items []json.RawMessage
		if err := json.Unmarshal(params, &items); err != nil || len(items) == 0 {
			c.logger.Warn("malformed history notification", "error", err)
			return
		}
		c.emit(events.TypeHistoryChanged, items[0])

	default:
		c.logger.Debug("ignoring notification", "method", method)
	}
}

// subscribeAndAnnounce subscribes to print_stats and emits the ready
// event carrying the initial snapshot. A failed subscription is logged
// and the ready event goes out with an empty snapshot; the connection
// stays up.
func (c *Client) subscribeAndAnnounce() {
	params := map[string]any{
		"objects": map[string]any{"print_stats": nil},
	}
	payload := map[string]any{
		"print_stats": map[string]any{},
	}

	result, err := c.Call(c.ctx, methodSubscribeObjects, params)
	if err != nil {
		c.logger.Info("error subscribing to print_stats", "error", err)
	} else {
		var res struct {
			Status map[string]map[string]any `json:"status"`
		}
		if err := json.Unmarshal(result, &res); err != nil {
			c.logger.Warn("malformed subscription result", "error", err)
		} else if printStats, ok := res.Status["print_stats"]; ok {
			payload["print_stats"] = printStats
		}
	}

	c.emit(events.TypePrinterReady, payload)
}

// emit publishes one event. Handler errors are logged here; the read
// loop never stops because a handler failed.
func (c *Client) emit(eventType events.EventType, payload any) {
	event, err := events.New(eventType, payload)
	if err != nil {
		c.logger.Error("failed to build event",
			"event_type", eventType,
			"error", err)
		return
	}

	if err := c.emitter.Emit(c.ctx, event); err != nil {
		c.logger.Error("event handler error",
			"event_type", eventType,
			"event_id", event.ID,
			"error", err)
	}
}

// extractObjectStatus pulls one object's partial status out of a
// notify_status_update params array, which has the shape
// [{object: {...}, ...}, eventtime].
func extractObjectStatus(params json.RawMessage, object string) (json.RawMessage, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(params, &items); err != nil || len(items) == 0 {
		return nil, false
	}

	var status map[string]json.RawMessage
	if err := json.Unmarshal(items[0], &status); err != nil {
		return nil, false
	}

	raw, ok := status[object]
	return raw, ok
}
