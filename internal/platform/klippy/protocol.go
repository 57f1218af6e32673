package klippy

import (
	"encoding/json"
	"fmt"
)

// jsonrpcVersion is the protocol version tag on every frame.
const jsonrpcVersion = "2.0"

// RPC methods issued to the printer host.
const (
	methodSubscribeObjects = "printer.objects.subscribe"
	methodPrintStart       = "printer.print.start"
)

// Notification methods received from the printer host.
const (
	notifyKlippyReady        = "notify_klippy_ready"
	notifyKlippyDisconnected = "notify_klippy_disconnected"
	notifyKlippyShutdown     = "notify_klippy_shutdown"
	notifyStatusUpdate       = "notify_status_update"
	notifyHistoryChanged     = "notify_history_changed"
)

// Request is an outbound JSON-RPC request frame.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      int64           `json:"id"`
}

// Message is an inbound JSON-RPC frame: a response to one of our
// requests (ID set) or a server-initiated notification (Method set,
// no ID).
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// IsNotification reports whether the frame is a server notification.
func (m *Message) IsNotification() bool {
	return m.ID == nil && m.Method != ""
}

// RPCError is the error object of a failed JSON-RPC request.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface for RPCError.
func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewRequest builds a request frame, serializing params to JSON.
func NewRequest(id int64, method string, params any) (Request, error) {
	req := Request{
		JSONRPC: jsonrpcVersion,
		Method:  method,
		ID:      id,
	}

	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return Request{}, fmt.Errorf("failed to marshal params for %s: %w", method, err)
		}
		req.Params = data
	}

	return req, nil
}

// UnmarshalMessage parses an inbound frame.
func UnmarshalMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to parse jsonrpc frame: %w", err)
	}
	return msg, nil
}
