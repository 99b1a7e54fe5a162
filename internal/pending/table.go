// Package pending tracks in-flight calls awaiting a worker response.
package pending

import (
	"encoding/json"
	"sync"

	"fictionbridge/internal/jsonrpc"
)

// Outcome is the completion value delivered to a waiting caller. Err is set
// when the worker reported an error; otherwise Result holds the raw result,
// which is JSON null when the worker returned neither field.
type Outcome struct {
	Result json.RawMessage
	Err    *jsonrpc.Error
}

// Table maps request identifiers to single-use completion channels.
type Table struct {
	mu      sync.Mutex
	entries map[uint64]chan Outcome
	closed  bool
}

// New returns an empty, open table.
func New() *Table {
	return &Table{entries: make(map[uint64]chan Outcome)}
}

// Register inserts a fresh entry and returns its receive end. When the table
// has been closed the returned channel is already closed, so the caller
// observes the same condition as a transport teardown.
func (t *Table) Register(id uint64) <-chan Outcome {
	ch := make(chan Outcome, 1)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		close(ch)
		return ch
	}
	if prev, ok := t.entries[id]; ok {
		close(prev)
	}
	t.entries[id] = ch
	return ch
}

// Resolve removes and completes the entry for id. It reports false, and does
// nothing else, when no entry exists (late, duplicate, or expired response).
func (t *Table) Resolve(id uint64, outcome Outcome) bool {
	t.mu.Lock()
	ch, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	ch <- outcome
	return true
}

// Expire removes the entry for id without completing it.
func (t *Table) Expire(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[id]; !ok {
		return false
	}
	delete(t.entries, id)
	return true
}

// CloseAll closes every outstanding channel and rejects further registrations
// until Reset. It returns the number of callers released.
func (t *Table) CloseAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	n := len(t.entries)
	for id, ch := range t.entries {
		close(ch)
		delete(t.entries, id)
	}
	return n
}

// Reset reopens a closed table for a new transport.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = false
	if t.entries == nil {
		t.entries = make(map[uint64]chan Outcome)
	}
}

// Len reports the number of outstanding entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Closed reports whether CloseAll has run since the last Reset.
func (t *Table) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
