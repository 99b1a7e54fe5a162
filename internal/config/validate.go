package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSidecar(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSidecar() error {
	switch c.Sidecar.Mode {
	case ModeDev:
		if c.Sidecar.Python == "" || c.Sidecar.Module == "" {
			return errors.New("sidecar.python and sidecar.module must be set in dev mode")
		}
	case ModePackaged:
		if c.Sidecar.ResourceDir == "" {
			return errors.New("sidecar.resource_dir must be set in packaged mode")
		}
	case ModeCustom:
		if c.Sidecar.Executable == "" {
			return errors.New("sidecar.executable must be set in custom mode")
		}
	default:
		return fmt.Errorf("sidecar.mode: unsupported value %q (want dev, packaged, or custom)", c.Sidecar.Mode)
	}
	if c.Sidecar.CallTimeoutSeconds <= 0 {
		return errors.New("sidecar.call_timeout_seconds must be positive")
	}
	for key := range c.Sidecar.Env {
		if strings.TrimSpace(key) == "" || strings.ContainsRune(key, '=') {
			return fmt.Errorf("sidecar.env: invalid variable name %q", key)
		}
	}
	return nil
}

func (c *Config) validateEvents() error {
	if c.Events.BufferSize < 1 {
		return errors.New("events.buffer_size must be >= 1")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be >= 0")
	}
	return nil
}
