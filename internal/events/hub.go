package events

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// StatusEvent is emitted whenever the worker connection changes.
const StatusEvent = "sidecar:status"

// Event is a named payload published to the hub. Notification names have
// already been translated (see TranslateMethod).
type Event struct {
	Sequence  uint64          `json:"seq"`
	Timestamp time.Time       `json:"ts"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
}

// StatusPayload is the body of a sidecar:status event.
type StatusPayload struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// DecodeStatus extracts a StatusPayload from a sidecar:status event.
func DecodeStatus(evt Event) (StatusPayload, bool) {
	if evt.Name != StatusEvent {
		return StatusPayload{}, false
	}
	var payload StatusPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return StatusPayload{}, false
	}
	return payload, true
}

// TranslateMethod maps a worker notification method onto the host event
// namespace by replacing every '.' with ':'.
func TranslateMethod(method string) string {
	return strings.ReplaceAll(method, ".", ":")
}

// Sink receives every published event (for persistence, etc.). Append runs
// synchronously on the publishing goroutine, after the hub lock is released.
type Sink interface {
	Append(Event)
}

var nullPayload = json.RawMessage("null")

// Hub stores recent events, fans them out to live subscribers, and wakes
// long-poll waiters when new events arrive. Publishing never blocks on a
// slow consumer.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	sinks    []Sink
	subs     map[*Subscription]struct{}
}

// NewHub constructs a bounded in-memory event buffer.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 512
	}
	h := &Hub{capacity: capacity, subs: make(map[*Subscription]struct{})}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// AddSink wires an additional sink that receives every published event.
func (h *Hub) AddSink(sink Sink) {
	if h == nil || sink == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

// Notify publishes a worker notification under its translated name. Missing
// params are published as JSON null.
func (h *Hub) Notify(method string, params json.RawMessage) {
	h.Emit(TranslateMethod(method), params)
}

// Emit publishes an already-named event.
func (h *Hub) Emit(name string, payload json.RawMessage) {
	if h == nil {
		return
	}
	if len(payload) == 0 {
		payload = nullPayload
	}
	evt := Event{Name: name, Payload: append(json.RawMessage(nil), payload...)}

	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	evt.Timestamp = time.Now().UTC()

	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	sinks := append([]Sink(nil), h.sinks...)
	for sub := range h.subs {
		sub.deliver(evt)
	}
	h.cond.Broadcast()
	h.mu.Unlock()

	for _, sink := range sinks {
		sink.Append(evt)
	}
}

// Subscribe registers a live listener. Only events published after the call
// are delivered; when the buffer is full the event is dropped for that
// subscriber.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 64
	}
	sub := &Subscription{hub: h, ch: make(chan Event, buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Fetch returns all events with sequence greater than since. When wait is true,
// Fetch blocks until at least one event is available or the context ends.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		events, next := h.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
	}
}

// Tail returns the most recent limit events without blocking, along with the
// latest sequence number.
func (h *Hub) Tail(limit int) ([]Event, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return nil, h.nextSeq
	}
	start := max(len(h.buffer)-limit, 0)
	out := make([]Event, len(h.buffer)-start)
	copy(out, h.buffer[start:])
	return out, h.nextSeq
}

// Sequence reports the most recently assigned sequence number.
func (h *Hub) Sequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextSeq
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	if len(h.buffer) == 0 {
		return nil, h.nextSeq
	}
	startIdx := -1
	for i, evt := range h.buffer {
		if evt.Sequence > since {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return nil, h.nextSeq
	}
	end := min(startIdx+limit, len(h.buffer))
	out := make([]Event, end-startIdx)
	copy(out, h.buffer[startIdx:end])
	return out, out[len(out)-1].Sequence
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

// Subscription is a live event feed created by Hub.Subscribe.
type Subscription struct {
	hub     *Hub
	ch      chan Event
	dropped uint64
	closed  bool
}

// C returns the receive end of the feed. It is closed by Close.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Dropped reports how many events were discarded because the feed was full.
func (s *Subscription) Dropped() uint64 {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.dropped
}

// Close detaches the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(s.hub.subs, s)
	close(s.ch)
}

// deliver runs with the hub lock held.
func (s *Subscription) deliver(evt Event) {
	select {
	case s.ch <- evt:
	default:
		s.dropped++
	}
}
