package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains state and log directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Sidecar describes how the worker process is launched and supervised.
type Sidecar struct {
	// Mode selects the launch strategy: dev, packaged, or custom.
	Mode string `toml:"mode"`

	// dev mode
	Python     string `toml:"python"`
	Module     string `toml:"module"`
	ProjectDir string `toml:"project_dir"`

	// packaged mode
	ResourceDir string `toml:"resource_dir"`

	// custom mode
	Executable string   `toml:"executable"`
	Args       []string `toml:"args"`
	Workdir    string   `toml:"workdir"`

	Env                  map[string]string `toml:"env"`
	LogLevel             string            `toml:"log_level"`
	CallTimeoutSeconds   int               `toml:"call_timeout_seconds"`
	StopGraceSeconds     int               `toml:"stop_grace_seconds"`
	HealthMethod         string            `toml:"health_method"`
	HealthTimeoutSeconds int               `toml:"health_timeout_seconds"`
}

// Events configures the in-memory event buffer and the on-disk archive.
type Events struct {
	BufferSize           int  `toml:"buffer_size"`
	Archive              bool `toml:"archive"`
	ArchiveRetentionDays int  `toml:"archive_retention_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Disconnect     bool   `toml:"disconnect"`
}

// Config encapsulates all configuration values for fictionbridge.
//
// Configuration sections by subsystem:
//   - Paths: state directory (socket, lock, pid, archive) and log directory
//   - Sidecar: worker launch mode, timeouts, and environment
//   - Events: event buffer and SQLite archive
//   - Logging: log format, level, and retention
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Sidecar       Sidecar       `toml:"sidecar"`
	Events        Events        `toml:"events"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("fictionbridge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "fictionbridge.sock")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "fictionbridge.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "fictionbridge.pid")
}

// ArchivePath returns the SQLite event archive location.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.Paths.StateDir, "events.db")
}

// CallTimeout returns the per-call deadline applied by the supervisor.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Sidecar.CallTimeoutSeconds) * time.Second
}

// StopGrace returns how long Stop waits after SIGTERM before killing the worker.
func (c *Config) StopGrace() time.Duration {
	return time.Duration(c.Sidecar.StopGraceSeconds) * time.Second
}

// HealthTimeout returns the deadline for the post-start health probe.
func (c *Config) HealthTimeout() time.Duration {
	return time.Duration(c.Sidecar.HealthTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
