package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"fictionbridge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The worker defaults to the stub worker in echo mode; tests that spawn it
// must define TestHelperProcess calling MaybeRunStubWorker.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Sidecar.ProjectDir = filepath.Join(base, "sidecar")
	cfgVal.Events.Archive = false
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	WithStubWorker(StubModeEcho)(builder)

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStubWorker points the sidecar at this test binary running in mode.
func WithStubWorker(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sidecar.Mode = config.ModeCustom
		b.cfg.Sidecar.Executable = os.Args[0]
		b.cfg.Sidecar.Args = StubWorkerArgs()
		b.cfg.Sidecar.Workdir = b.baseDir
		b.cfg.Sidecar.Env = StubWorkerEnv(mode)
	}
}

// WithArchive enables the SQLite event archive under the state directory.
func WithArchive() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Events.Archive = true
	}
}

// WithNtfyTopic sets the notification endpoint, typically an httptest URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithCallTimeout overrides sidecar.call_timeout_seconds.
func WithCallTimeout(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sidecar.CallTimeoutSeconds = seconds
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
