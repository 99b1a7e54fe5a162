package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ModeEnv overrides sidecar.mode when set.
const ModeEnv = "FICTIONBRIDGE_SIDECAR_MODE"

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSidecar(); err != nil {
		return err
	}
	c.normalizeEvents()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSidecar() error {
	if value, ok := os.LookupEnv(ModeEnv); ok && strings.TrimSpace(value) != "" {
		c.Sidecar.Mode = value
	}
	c.Sidecar.Mode = strings.ToLower(strings.TrimSpace(c.Sidecar.Mode))
	if c.Sidecar.Mode == "" {
		c.Sidecar.Mode = defaultSidecarMode
	}

	c.Sidecar.Python = strings.TrimSpace(c.Sidecar.Python)
	if c.Sidecar.Python == "" {
		c.Sidecar.Python = defaultPython
	}
	c.Sidecar.Module = strings.TrimSpace(c.Sidecar.Module)
	if c.Sidecar.Module == "" {
		c.Sidecar.Module = defaultModule
	}

	var err error
	if strings.TrimSpace(c.Sidecar.ProjectDir) == "" {
		// The worker project sits next to the working directory during development.
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("sidecar.project_dir: %w", err)
		}
		c.Sidecar.ProjectDir = filepath.Join(cwd, "..", "sidecar")
	}
	if c.Sidecar.ProjectDir, err = expandPath(c.Sidecar.ProjectDir); err != nil {
		return fmt.Errorf("sidecar.project_dir: %w", err)
	}
	if c.Sidecar.ResourceDir, err = expandPath(strings.TrimSpace(c.Sidecar.ResourceDir)); err != nil {
		return fmt.Errorf("sidecar.resource_dir: %w", err)
	}
	if c.Sidecar.Workdir, err = expandPath(strings.TrimSpace(c.Sidecar.Workdir)); err != nil {
		return fmt.Errorf("sidecar.workdir: %w", err)
	}
	c.Sidecar.Executable = strings.TrimSpace(c.Sidecar.Executable)
	if strings.HasPrefix(c.Sidecar.Executable, "~") || strings.ContainsRune(c.Sidecar.Executable, filepath.Separator) {
		if c.Sidecar.Executable, err = expandPath(c.Sidecar.Executable); err != nil {
			return fmt.Errorf("sidecar.executable: %w", err)
		}
	}

	c.Sidecar.LogLevel = strings.ToUpper(strings.TrimSpace(c.Sidecar.LogLevel))
	if c.Sidecar.LogLevel == "" {
		c.Sidecar.LogLevel = defaultSidecarLogLevel
	}
	c.Sidecar.HealthMethod = strings.TrimSpace(c.Sidecar.HealthMethod)
	if c.Sidecar.HealthTimeoutSeconds <= 0 {
		c.Sidecar.HealthTimeoutSeconds = defaultHealthTimeoutSeconds
	}
	if c.Sidecar.StopGraceSeconds < 0 {
		c.Sidecar.StopGraceSeconds = 0
	}
	return nil
}

func (c *Config) normalizeEvents() {
	if c.Events.BufferSize <= 0 {
		c.Events.BufferSize = defaultEventBufferSize
	}
	if c.Events.ArchiveRetentionDays < 0 {
		c.Events.ArchiveRetentionDays = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
