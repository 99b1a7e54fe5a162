package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"fictionbridge/internal/config"
	"fictionbridge/internal/events"
	"fictionbridge/internal/jsonrpc"
	"fictionbridge/internal/logging"
	"fictionbridge/internal/notifications"
	"fictionbridge/internal/services"
	"fictionbridge/internal/sidecar"
)

// ProgressEvent is the translated name of the worker's pipeline progress
// notification.
const ProgressEvent = "pipeline:progress"

// Daemon owns the worker supervisor, the event hub, and the single-instance
// lock.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	hub        *events.Hub
	archive    *events.Archive
	supervisor *sidecar.Supervisor
	notifier   notifications.Service
	resolve    func(*config.Config) (sidecar.LaunchSpec, error)
	sessionID  string

	lockPath string
	lock     *flock.Flock

	// mu serializes Start and Stop.
	mu       sync.Mutex
	running  atomic.Bool
	stopping atomic.Bool

	progressMu sync.Mutex
	progress   *logging.ProgressSampler

	notifyWG sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Sidecar      sidecar.Status
	LockFilePath string
	ArchivePath  string
	EventSeq     uint64
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithNotifier replaces the ntfy service built from config.
func WithNotifier(svc notifications.Service) Option {
	return func(d *Daemon) {
		if svc != nil {
			d.notifier = svc
		}
	}
}

// WithSessionID tags archived events with id instead of a fresh uuid.
func WithSessionID(id string) Option {
	return func(d *Daemon) {
		if strings.TrimSpace(id) != "" {
			d.sessionID = id
		}
	}
}

// WithLaunchResolver replaces sidecar.ResolveLaunch.
func WithLaunchResolver(fn func(*config.Config) (sidecar.LaunchSpec, error)) Option {
	return func(d *Daemon) {
		if fn != nil {
			d.resolve = fn
		}
	}
}

// New constructs a daemon. A nil hub is replaced by one sized from
// events.buffer_size. The event archive is opened when events.archive is set.
func New(cfg *config.Config, logger *slog.Logger, hub *events.Hub, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	if hub == nil {
		hub = events.NewHub(cfg.Events.BufferSize)
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		hub:       hub,
		notifier:  notifications.NewService(cfg),
		resolve:   sidecar.ResolveLaunch,
		sessionID: uuid.NewString(),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
		progress:  logging.NewProgressSampler(10),
	}
	for _, opt := range opts {
		opt(d)
	}

	if cfg.Events.Archive {
		archive, err := events.OpenArchive(cfg.ArchivePath(), d.sessionID, logger)
		if err != nil {
			return nil, fmt.Errorf("open event archive: %w", err)
		}
		d.archive = archive
		hub.AddSink(archive)
	}

	d.supervisor = sidecar.New(
		sidecar.WithLogger(logger),
		sidecar.WithSink(d),
		sidecar.WithCallTimeout(cfg.CallTimeout()),
		sidecar.WithStopGrace(cfg.StopGrace()),
	)
	return d, nil
}

// Start acquires the daemon lock, launches the worker, and probes it with the
// configured health method.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		if d.supervisor.IsConnected() {
			return sidecar.ErrAlreadyRunning
		}
		// The worker exited or lost its stdout; relaunch under the lock we
		// already hold.
		return d.launch(ctx)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fictionbridge daemon instance is already running")
	}
	if err := d.launch(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}
	d.running.Store(true)
	d.logger.Info("fictionbridge daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) launch(ctx context.Context) error {
	spec, err := d.resolve(d.cfg)
	if err != nil {
		return err
	}
	d.progressMu.Lock()
	d.progress.Reset()
	d.progressMu.Unlock()

	if err := d.supervisor.Start(ctx, spec); err != nil {
		return err
	}
	d.probe(ctx)
	return nil
}

// probe calls the health method once. A failure is reported, never fatal.
func (d *Daemon) probe(ctx context.Context) {
	method := strings.TrimSpace(d.cfg.Sidecar.HealthMethod)
	if method == "" {
		return
	}
	probeCtx, cancel := context.WithTimeout(ctx, d.cfg.HealthTimeout())
	defer cancel()

	result, err := d.supervisor.Call(probeCtx, method, nil)
	if err != nil {
		logging.WarnWithContext(d.logger, "worker health check failed", "health_check_failed",
			logging.String("health_method", method),
			logging.Error(err),
			logging.String(logging.FieldImpact, "worker calls may fail until it recovers"),
			logging.String(logging.FieldErrorHint, "check the worker log output and sidecar settings"),
		)
		d.publish(notifications.EventHealthCheckFailed, notifications.Payload{
			"method": method,
			"error":  err.Error(),
		})
		return
	}
	d.logger.Info("worker health check passed",
		logging.String("health_method", method),
		logging.String("result", compact(result)),
	)
}

// Stop stops the worker and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return
	}
	d.stopping.Store(true)
	if err := d.supervisor.Stop(); err != nil {
		d.logger.Warn("failed to stop worker", logging.Error(err))
	}
	d.stopping.Store(false)

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("fictionbridge daemon stopped")
}

// Close stops the daemon, waits for in-flight notifications, and closes the
// event archive.
func (d *Daemon) Close() error {
	d.Stop()
	d.notifyWG.Wait()
	if d.archive != nil {
		return d.archive.Close()
	}
	return nil
}

// Invoke forwards one call to the worker. The context is tagged with a fresh
// request id and the method so log lines can be correlated.
func (d *Daemon) Invoke(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	ctx = services.WithMethod(ctx, method)

	var payload any
	if len(params) > 0 {
		payload = params
	}
	result, err := d.supervisor.Call(ctx, method, payload)
	if err != nil {
		var workerErr *jsonrpc.Error
		if !errors.As(err, &workerErr) {
			logging.WarnWithContext(logging.WithContext(ctx, d.logger), "worker call failed", "invoke_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "the caller receives the error"),
			)
		}
		return nil, err
	}
	return result, nil
}

// Events returns the hub so callers can fetch or subscribe.
func (d *Daemon) Events() *events.Hub {
	return d.hub
}

// History returns archived events, newest first. It fails when the archive is
// disabled.
func (d *Daemon) History(ctx context.Context, name string, limit int) ([]events.ArchivedEvent, error) {
	if d.archive == nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "history", "event archive disabled", nil)
	}
	return d.archive.Recent(ctx, name, limit)
}

// PruneHistory removes archived events older than the configured retention.
func (d *Daemon) PruneHistory(ctx context.Context) (int64, error) {
	if d.archive == nil || d.cfg.Events.ArchiveRetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -d.cfg.Events.ArchiveRetentionDays)
	return d.archive.Prune(ctx, cutoff)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		Sidecar:      d.supervisor.Status(),
		LockFilePath: d.lockPath,
		EventSeq:     d.hub.Sequence(),
	}
	if d.archive != nil {
		status.ArchivePath = d.archive.Path()
	}
	return status
}

// Notify implements sidecar.EventSink.
func (d *Daemon) Notify(method string, params json.RawMessage) {
	d.hub.Notify(method, params)
	if events.TranslateMethod(method) == ProgressEvent {
		d.logProgress(params)
	}
}

// Emit implements sidecar.EventSink. Connection losses that were not caused
// by Stop are reported through the notifier.
func (d *Daemon) Emit(name string, payload json.RawMessage) {
	d.hub.Emit(name, payload)
	status, ok := events.DecodeStatus(events.Event{Name: name, Payload: payload})
	if !ok || status.Connected || d.stopping.Load() {
		return
	}
	snapshot := d.supervisor.Status()
	reason := status.Error
	if reason == "" {
		reason = "worker exited"
	}
	d.logger.Warn("worker disconnected unexpectedly",
		logging.String("reason", reason),
		logging.String(logging.FieldEventType, "sidecar_disconnected"),
		logging.String(logging.FieldImpact, "calls fail with not connected until the worker is restarted"),
		logging.String(logging.FieldErrorHint, "run fictionbridge restart"),
	)
	fields := notifications.Payload{"reason": reason}
	if snapshot.PID > 0 {
		fields["pid"] = strconv.Itoa(snapshot.PID)
	}
	d.publish(notifications.EventSidecarDisconnected, fields)
}

func (d *Daemon) publish(event notifications.Event, payload notifications.Payload) {
	d.notifyWG.Add(1)
	go func() {
		defer d.notifyWG.Done()
		timeout := time.Duration(d.cfg.Notifications.RequestTimeout)*time.Second + time.Second
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := d.notifier.Publish(ctx, event, payload); err != nil {
			d.logger.Warn("notification failed",
				logging.String("notification", string(event)),
				logging.Error(err),
				logging.String(logging.FieldEventType, "notification_failed"),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			)
		}
	}()
}

type progressPayload struct {
	Stage    string  `json:"stage"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

func (d *Daemon) logProgress(params json.RawMessage) {
	var p progressPayload
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	percent := p.Progress * 100
	d.progressMu.Lock()
	emit := d.progress.ShouldLog(percent, p.Stage)
	d.progressMu.Unlock()
	if !emit {
		return
	}
	d.logger.Info("pipeline progress",
		logging.String("stage", p.Stage),
		logging.String("percent", strconv.FormatFloat(percent, 'f', 0, 64)),
		logging.String("message", p.Message),
	)
}

func compact(raw json.RawMessage) string {
	text := strings.TrimSpace(string(raw))
	if len(text) > 200 {
		return text[:200] + "..."
	}
	return text
}
