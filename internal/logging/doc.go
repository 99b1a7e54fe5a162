// Package logging assembles structured slog loggers and formatting helpers used
// across the bridge.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so calls into the worker are
// tagged with their method and correlation ID. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
