package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"fictionbridge/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv(config.ModeEnv, "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "fictionbridge", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "state", "fictionbridge")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.SocketPath() != filepath.Join(wantState, "fictionbridge.sock") {
		t.Fatalf("unexpected socket path %q", cfg.SocketPath())
	}
	if cfg.Sidecar.Mode != config.ModeDev {
		t.Fatalf("expected dev mode by default, got %q", cfg.Sidecar.Mode)
	}
	if cfg.CallTimeout() != 120*time.Second {
		t.Fatalf("expected 120s call timeout, got %s", cfg.CallTimeout())
	}
	if cfg.StopGrace() != 0 {
		t.Fatalf("expected no stop grace by default, got %s", cfg.StopGrace())
	}
	if cfg.Sidecar.HealthMethod != "health.check" {
		t.Fatalf("unexpected health method %q", cfg.Sidecar.HealthMethod)
	}
	if !strings.HasSuffix(cfg.Sidecar.ProjectDir, "sidecar") || !filepath.IsAbs(cfg.Sidecar.ProjectDir) {
		t.Fatalf("expected absolute ../sidecar project dir, got %q", cfg.Sidecar.ProjectDir)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv(config.ModeEnv, "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `[paths]
state_dir = "~/state"

[sidecar]
mode = "Custom"
executable = "~/bin/worker"
args = ["--stdio"]
log_level = "debug"
call_timeout_seconds = 5
stop_grace_seconds = 2

[sidecar.env]
PYTHONUNBUFFERED = "1"

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, "state") {
		t.Fatalf("unexpected state dir %q", cfg.Paths.StateDir)
	}
	if cfg.Sidecar.Mode != config.ModeCustom {
		t.Fatalf("expected custom mode, got %q", cfg.Sidecar.Mode)
	}
	if cfg.Sidecar.Executable != filepath.Join(tempHome, "bin", "worker") {
		t.Fatalf("unexpected executable %q", cfg.Sidecar.Executable)
	}
	if cfg.Sidecar.LogLevel != "DEBUG" {
		t.Fatalf("expected worker log level upper-cased, got %q", cfg.Sidecar.LogLevel)
	}
	if cfg.CallTimeout() != 5*time.Second || cfg.StopGrace() != 2*time.Second {
		t.Fatalf("unexpected timeouts call=%s grace=%s", cfg.CallTimeout(), cfg.StopGrace())
	}
	if cfg.Sidecar.Env["PYTHONUNBUFFERED"] != "1" {
		t.Fatalf("expected env entry, got %v", cfg.Sidecar.Env)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
}

func TestModeEnvironmentOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.ModeEnv, "packaged")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[sidecar]\nresource_dir = \"/opt/ft\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Sidecar.Mode != config.ModePackaged {
		t.Fatalf("expected env override to select packaged mode, got %q", cfg.Sidecar.Mode)
	}
}

func TestValidateRejectsBadSidecarSettings(t *testing.T) {
	cases := map[string]func(*config.Config){
		"unknown mode":      func(c *config.Config) { c.Sidecar.Mode = "remote" },
		"packaged no dir":   func(c *config.Config) { c.Sidecar.Mode = config.ModePackaged; c.Sidecar.ResourceDir = "" },
		"custom no exe":     func(c *config.Config) { c.Sidecar.Mode = config.ModeCustom; c.Sidecar.Executable = "" },
		"zero call timeout": func(c *config.Config) { c.Sidecar.CallTimeoutSeconds = 0 },
		"bad env key":       func(c *config.Config) { c.Sidecar.Env = map[string]string{"A=B": "x"} },
		"zero buffer":       func(c *config.Config) { c.Events.BufferSize = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadRejectsMalformedToml(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[sidecar\nmode = "), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestCreateSampleProducesValidConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.ModeEnv, "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	if decoded.Sidecar.CallTimeoutSeconds != 120 {
		t.Fatalf("expected sample to document the default timeout, got %d", decoded.Sidecar.CallTimeoutSeconds)
	}

	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
