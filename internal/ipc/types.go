package ipc

import (
	"encoding/json"
	"time"

	"fictionbridge/internal/events"
)

// StartRequest launches the worker.
type StartRequest struct{}

// StartResponse indicates whether the worker was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the worker.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse combines daemon and worker status.
type StatusResponse struct {
	Running     bool      `json:"running"`
	PID         int       `json:"pid"`
	State       string    `json:"state"`
	Connected   bool      `json:"connected"`
	WorkerPID   int       `json:"worker_pid"`
	Command     string    `json:"command"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	LastError   string    `json:"last_error"`
	Pending     int       `json:"pending"`
	Malformed   uint64    `json:"malformed"`
	EventSeq    uint64    `json:"event_seq"`
	LockPath    string    `json:"lock_path"`
	ArchivePath string    `json:"archive_path"`
}

// InvokeRequest forwards one call to the worker.
type InvokeRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// WorkerError mirrors a JSON-RPC error object reported by the worker.
type WorkerError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// InvokeResponse carries either the worker result or the worker's error.
// Transport failures (not connected, timeout, closed channel) are returned
// as RPC errors instead.
type InvokeResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *WorkerError    `json:"error,omitempty"`
}

// EventsRequest fetches hub events newer than Since. A positive WaitMillis
// long-polls until an event arrives or the wait elapses.
type EventsRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	WaitMillis int    `json:"wait_millis"`
}

// EventsResponse returns events and the cursor for the next request.
type EventsResponse struct {
	Events []events.Event `json:"events"`
	Next   uint64         `json:"next"`
}

// HistoryRequest reads the event archive. Empty Name matches every event.
type HistoryRequest struct {
	Name  string `json:"name"`
	Limit int    `json:"limit"`
}

// HistoryResponse lists archived events, newest first.
type HistoryResponse struct {
	Events []events.ArchivedEvent `json:"events"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
