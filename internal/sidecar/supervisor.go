package sidecar

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"fictionbridge/internal/events"
	"fictionbridge/internal/jsonrpc"
	"fictionbridge/internal/logging"
	"fictionbridge/internal/pending"
	"fictionbridge/internal/services"
)

// DefaultCallTimeout bounds how long Call waits for a response.
const DefaultCallTimeout = 120 * time.Second

// reapTimeout bounds how long Stop waits for the pipes to drain after the
// worker was killed before closing them itself.
const reapTimeout = 5 * time.Second

// orphanGrace is how long a worker may keep running after its stdout closed
// before the supervisor kills it.
const orphanGrace = 2 * time.Second

var nullResult = json.RawMessage("null")

// EventSink receives worker notifications and connection changes. Delivery
// runs on the stdout reader goroutine, so a slow sink delays every response
// queued behind a notification; implementations should return quickly.
type EventSink interface {
	// Notify receives a worker notification with its original method name.
	Notify(method string, params json.RawMessage)
	// Emit receives an already-named host event.
	Emit(name string, payload json.RawMessage)
}

// State is the supervisor lifecycle state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// MarshalText renders the state label for JSON status payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state label.
func (s *State) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "stopped", "":
		*s = StateStopped
	case "starting":
		*s = StateStarting
	case "running":
		*s = StateRunning
	case "stopping":
		*s = StateStopping
	default:
		return fmt.Errorf("unknown sidecar state %q", text)
	}
	return nil
}

// Status is a point-in-time snapshot of the supervisor.
type Status struct {
	State     State     `json:"state"`
	Connected bool      `json:"connected"`
	PID       int       `json:"pid,omitempty"`
	Command   string    `json:"command,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	LastError string    `json:"last_error,omitempty"`
	Pending   int       `json:"pending"`
	Malformed uint64    `json:"malformed"`
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.baseLogger = logger
		}
	}
}

// WithSink routes notifications and connection events to sink.
func WithSink(sink EventSink) Option {
	return func(s *Supervisor) { s.sink = sink }
}

// WithCallTimeout overrides DefaultCallTimeout.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// WithStopGrace makes Stop send SIGTERM and wait up to d before killing the
// worker. Zero kills immediately.
func WithStopGrace(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.stopGrace = d
		}
	}
}

// Supervisor owns one worker process and multiplexes calls over its stdio.
type Supervisor struct {
	// mu serializes Start, Stop, and the register+write step of Call.
	mu   sync.Mutex
	conn *connection

	stateMu   sync.RWMutex
	state     State
	connected bool
	activeGen uint64
	pid       int
	command   string
	startedAt time.Time
	lastError string

	gen       uint64
	encoder   *jsonrpc.Encoder
	pending   *pending.Table
	malformed atomic.Uint64

	sink        EventSink
	baseLogger  *slog.Logger
	logger      *slog.Logger
	callTimeout time.Duration
	stopGrace   time.Duration
}

// New constructs a stopped supervisor.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		encoder:     jsonrpc.NewEncoder(),
		pending:     pending.New(),
		callTimeout: DefaultCallTimeout,
		baseLogger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.baseLogger, "sidecar")
	return s
}

// Start launches the worker described by spec. It fails with
// ErrAlreadyRunning while a previous worker is still alive and connected. A
// worker that lost its stdout is killed and replaced.
func (s *Supervisor) Start(ctx context.Context, spec LaunchSpec) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		if !s.conn.exited() && s.IsConnected() {
			return ErrAlreadyRunning
		}
		s.release(s.conn)
		s.conn = nil
	}
	if strings.TrimSpace(spec.Executable) == "" {
		return services.Wrap(ErrSpawn, "sidecar", "start", "executable is required", nil)
	}

	s.setState(StateStarting)
	s.logger.Info("starting worker",
		logging.String("command", spec.String()),
		logging.String("dir", spec.Dir),
	)

	conn, err := spawn(spec)
	if err != nil {
		s.stateMu.Lock()
		s.state = StateStopped
		s.lastError = err.Error()
		s.stateMu.Unlock()
		logging.ErrorWithContext(s.logger, "worker launch failed", "sidecar_spawn_failed",
			logging.String("command", spec.String()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check sidecar.mode and that the worker executable exists"),
		)
		return err
	}

	s.gen++
	conn.gen = s.gen
	s.pending.Reset()

	s.stateMu.Lock()
	s.state = StateRunning
	s.connected = true
	s.activeGen = conn.gen
	s.pid = conn.pid()
	s.command = spec.String()
	s.startedAt = time.Now().UTC()
	s.lastError = ""
	s.stateMu.Unlock()
	s.conn = conn

	s.emitStatus(events.StatusPayload{Connected: true})

	conn.readers.Add(2)
	go s.readStdout(conn)
	go s.readStderr(conn)
	go s.reap(conn)

	s.logger.Info("worker started", logging.Int(logging.FieldPID, conn.pid()))
	return nil
}

// Call sends method with params and waits for the matching response, the
// call timeout, or ctx cancellation. A worker-reported failure is returned
// as *jsonrpc.Error.
func (s *Supervisor) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.IsConnected() {
		return nil, services.Wrap(ErrNotConnected, "sidecar", "call", method, nil)
	}

	s.mu.Lock()
	conn := s.conn
	if conn == nil || !s.IsConnected() {
		s.mu.Unlock()
		return nil, services.Wrap(ErrNotConnected, "sidecar", "call", method, nil)
	}
	id, line, err := s.encoder.Encode(method, params)
	if err != nil {
		s.mu.Unlock()
		return nil, services.Wrap(services.ErrValidation, "sidecar", "call", "", err)
	}
	ch := s.pending.Register(id)
	if err := conn.writeLine(line); err != nil {
		s.pending.Expire(id)
		s.mu.Unlock()
		return nil, services.Wrap(ErrChannelClosed, "sidecar", "call", "write "+method, err)
	}
	s.mu.Unlock()

	logger := s.logger.With(logging.Args(logging.ContextFields(ctx)...)...)
	logger.Debug("call sent",
		logging.String(logging.FieldMethod, method),
		logging.Uint64(logging.FieldRequestID, id),
	)

	timer := time.NewTimer(s.callTimeout)
	defer timer.Stop()

	select {
	case outcome, ok := <-ch:
		return s.complete(method, id, outcome, ok)
	case <-timer.C:
		if !s.pending.Expire(id) {
			// The response raced the deadline and is already in flight.
			outcome, ok := <-ch
			return s.complete(method, id, outcome, ok)
		}
		logging.WarnWithContext(logger, "call timed out", "sidecar_call_timeout",
			logging.String(logging.FieldMethod, method),
			logging.Uint64(logging.FieldRequestID, id),
			logging.Duration("timeout", s.callTimeout),
			logging.String(logging.FieldErrorHint, "the worker may be busy or hung; check sidecar.stderr output"),
			logging.String(logging.FieldImpact, "a late response for this call will be discarded"),
		)
		return nil, services.Wrap(ErrTimeout, "sidecar", "call",
			fmt.Sprintf("%s after %s", method, s.callTimeout), nil)
	case <-ctx.Done():
		if !s.pending.Expire(id) {
			outcome, ok := <-ch
			return s.complete(method, id, outcome, ok)
		}
		return nil, ctx.Err()
	}
}

func (s *Supervisor) complete(method string, id uint64, outcome pending.Outcome, ok bool) (json.RawMessage, error) {
	if !ok {
		return nil, services.Wrap(ErrChannelClosed, "sidecar", "call", method, nil)
	}
	if outcome.Err != nil {
		s.logger.Debug("call failed",
			logging.String(logging.FieldMethod, method),
			logging.Uint64(logging.FieldRequestID, id),
			logging.Int64("code", outcome.Err.Code),
			logging.String("error_message", outcome.Err.Message),
		)
		return nil, outcome.Err
	}
	if len(outcome.Result) == 0 {
		return nullResult, nil
	}
	return outcome.Result, nil
}

// Stop terminates the worker and releases every waiting caller. Calling Stop
// when nothing is running is a no-op.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn := s.conn
	if conn == nil {
		s.setState(StateStopped)
		return nil
	}
	s.setState(StateStopping)
	pid := conn.pid()

	if !conn.exited() && s.stopGrace > 0 {
		if err := terminateProcess(pid); err != nil {
			s.logger.Debug("graceful termination unavailable", logging.Error(err))
		} else {
			select {
			case <-conn.done:
			case <-time.After(s.stopGrace):
				s.logger.Info("worker ignored SIGTERM; killing",
					logging.Int(logging.FieldPID, pid),
					logging.Duration("grace", s.stopGrace),
				)
			}
		}
	}
	s.release(conn)

	s.markDisconnected(conn, nil)
	s.pending.CloseAll()
	s.conn = nil

	s.stateMu.Lock()
	s.state = StateStopped
	s.connected = false
	s.pid = 0
	s.stateMu.Unlock()

	s.logger.Info("worker stopped", logging.Int(logging.FieldPID, pid))
	return nil
}

// release kills conn's process group if it is still alive, waits for the
// reaper, and closes stdin. Safe to call more than once.
func (s *Supervisor) release(conn *connection) {
	if !conn.exited() {
		if err := killProcess(conn.cmd); err != nil {
			s.logger.Debug("kill worker", logging.Int(logging.FieldPID, conn.pid()), logging.Error(err))
		}
	}
	select {
	case <-conn.done:
	case <-time.After(reapTimeout):
		conn.closeReaders()
		<-conn.done
	}
	_ = conn.stdin.Close()
}

// reclaim kills a worker that closed stdout but kept running, so the reaper
// can move the supervisor to Stopped.
func (s *Supervisor) reclaim(conn *connection) {
	select {
	case <-conn.done:
		return
	case <-time.After(orphanGrace):
	}
	if conn.exited() {
		return
	}
	logging.WarnWithContext(s.logger, "worker closed stdout but kept running; killing", "sidecar_orphaned",
		logging.Int(logging.FieldPID, conn.pid()),
		logging.Duration("grace", orphanGrace),
		logging.String(logging.FieldErrorHint, "the worker must keep stdout open for its whole lifetime"),
		logging.String(logging.FieldImpact, "calls fail with not connected until the worker is restarted"),
	)
	s.release(conn)
}

// IsConnected reports whether a live worker is attached.
func (s *Supervisor) IsConnected() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.connected && s.state == StateRunning
}

// Status returns a snapshot of the supervisor.
func (s *Supervisor) Status() Status {
	s.stateMu.RLock()
	status := Status{
		State:     s.state,
		Connected: s.connected,
		PID:       s.pid,
		Command:   s.command,
		StartedAt: s.startedAt,
		LastError: s.lastError,
	}
	s.stateMu.RUnlock()
	status.Pending = s.pending.Len()
	status.Malformed = s.malformed.Load()
	return status
}

func (s *Supervisor) setState(state State) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
}

// markDisconnected runs once per connection: it drops the connected flag,
// releases pending callers, and emits the disconnect event.
func (s *Supervisor) markDisconnected(conn *connection, cause error) {
	conn.disconnectOnce.Do(func() {
		s.stateMu.Lock()
		current := s.activeGen == conn.gen
		if current {
			s.connected = false
			if cause != nil {
				s.lastError = cause.Error()
			}
		}
		s.stateMu.Unlock()
		if !current {
			return
		}

		released := s.pending.CloseAll()
		payload := events.StatusPayload{Connected: false}
		if cause != nil {
			payload.Error = cause.Error()
		}
		s.emitStatus(payload)
		s.logger.Info("worker disconnected",
			logging.Int(logging.FieldPID, conn.pid()),
			logging.Int("released_calls", released),
		)
	})
}

func (s *Supervisor) emitStatus(payload events.StatusPayload) {
	if s.sink == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	s.sink.Emit(events.StatusEvent, data)
}
