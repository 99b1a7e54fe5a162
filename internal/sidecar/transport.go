package sidecar

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"sync"

	"fictionbridge/internal/jsonrpc"
	"fictionbridge/internal/logging"
	"fictionbridge/internal/pending"
	"fictionbridge/internal/services"
)

const (
	initialLineBuffer = 64 * 1024
	maxLineBuffer     = 16 * 1024 * 1024
)

// connection is one spawned worker and its three pipes.
type connection struct {
	gen  uint64
	cmd  *exec.Cmd
	spec LaunchSpec

	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	writeMu sync.Mutex
	writer  *bufio.Writer

	readers        sync.WaitGroup
	disconnectOnce sync.Once

	// done is closed by the reaper once the process has been waited on.
	done    chan struct{}
	waitErr error
}

func spawn(spec LaunchSpec) (*connection, error) {
	cmd := exec.Command(spec.Executable, spec.Args...) //nolint:gosec
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	configureProcess(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, services.Wrap(ErrStreamCapture, "sidecar", "start", "stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, services.Wrap(ErrStreamCapture, "sidecar", "start", "stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, services.Wrap(ErrStreamCapture, "sidecar", "start", "stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %w", ErrExecutableNotFound, err)
		}
		return nil, services.Wrap(ErrSpawn, "sidecar", "start", "launch "+spec.Executable, err)
	}

	return &connection{
		cmd:    cmd,
		spec:   spec,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		writer: bufio.NewWriter(stdin),
		done:   make(chan struct{}),
	}, nil
}

// writeLine writes one framed line and flushes it. Concurrent writers are
// serialized so lines never interleave.
func (c *connection) writeLine(line []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.writer.Write(line); err != nil {
		return err
	}
	return c.writer.Flush()
}

func (c *connection) exited() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *connection) pid() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// closeReaders unblocks the read loops when a descendant still holds the
// worker's output pipes open.
func (c *connection) closeReaders() {
	_ = c.stdout.Close()
	_ = c.stderr.Close()
}

// readStdout dispatches every inbound line until EOF, then marks the
// connection down and reclaims a worker that outlives its stdout.
func (s *Supervisor) readStdout(conn *connection) {
	defer conn.readers.Done()

	scanner := bufio.NewScanner(conn.stdout)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), maxLineBuffer)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		s.dispatch(line)
	}
	err := scanner.Err()
	if err != nil {
		s.logger.Error("worker stdout read failed",
			logging.Int(logging.FieldPID, conn.pid()),
			logging.Error(err),
			logging.String(logging.FieldEventType, "sidecar_stdout_failed"),
		)
	}
	s.markDisconnected(conn, err)
	go s.reclaim(conn)
}

// readStderr forwards worker diagnostics to the log. Lines are never parsed.
func (s *Supervisor) readStderr(conn *connection) {
	defer conn.readers.Done()

	logger := logging.NewComponentLogger(s.baseLogger, "sidecar.stderr").With(logging.Int(logging.FieldPID, conn.pid()))
	scanner := bufio.NewScanner(conn.stderr)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), maxLineBuffer)
	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}
		logger.Info(string(line))
	}
}

func (s *Supervisor) dispatch(line []byte) {
	msg, err := jsonrpc.Classify(line)
	if err != nil {
		s.malformed.Add(1)
		s.logger.Debug("discarding malformed worker line",
			logging.Error(err),
			logging.Int("bytes", len(line)),
		)
		return
	}

	switch msg.Kind {
	case jsonrpc.KindResponse:
		resp := msg.Response
		if resp.ID == nil {
			s.malformed.Add(1)
			s.logger.Debug("discarding response without id")
			return
		}
		outcome := pending.Outcome{Result: resp.Result, Err: resp.Error}
		if outcome.Err == nil && len(outcome.Result) == 0 {
			outcome.Result = nullResult
		}
		if !s.pending.Resolve(*resp.ID, outcome) {
			s.logger.Debug("discarding response for unknown or expired call",
				logging.Uint64(logging.FieldRequestID, *resp.ID),
			)
		}
	case jsonrpc.KindNotification:
		n := msg.Notification
		if s.sink != nil {
			s.sink.Notify(n.Method, n.Params)
		}
	}
}

// reap waits for the read loops to drain, then collects the exit status.
func (s *Supervisor) reap(conn *connection) {
	conn.readers.Wait()
	conn.waitErr = conn.cmd.Wait()
	close(conn.done)

	s.stateMu.Lock()
	unexpected := s.activeGen == conn.gen && s.state == StateRunning
	if unexpected {
		s.state = StateStopped
		s.connected = false
		s.pid = 0
		if conn.waitErr != nil {
			s.lastError = conn.waitErr.Error()
		} else if s.lastError == "" {
			s.lastError = "worker exited"
		}
	}
	s.stateMu.Unlock()

	attrs := []logging.Attr{logging.Int(logging.FieldPID, conn.pid())}
	if conn.waitErr != nil {
		attrs = append(attrs, logging.Error(conn.waitErr))
	}
	if unexpected {
		logging.WarnWithContext(s.logger, "worker exited unexpectedly", "sidecar_exited",
			append(attrs,
				logging.String(logging.FieldErrorHint, "check the sidecar.stderr log lines; restart with fictionbridge restart"),
				logging.String(logging.FieldImpact, "calls fail with not connected until the worker is restarted"),
			)...)
		return
	}
	s.logger.Info("worker exited", logging.Args(attrs...)...)
}
