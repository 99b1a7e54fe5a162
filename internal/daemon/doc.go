// Package daemon coordinates the long-running fictionbridge process.
//
// It wires configuration, the worker supervisor, the event hub, and the
// optional SQLite event archive into a single lifecycle with flock-based
// locking to prevent multiple instances. The daemon is the supervisor's event
// sink: it forwards every notification to the hub, samples pipeline progress
// into the log, and raises ntfy alerts when the worker disconnects without a
// stop request or fails its post-start health probe.
//
// Keep orchestration here; protocol handling belongs to internal/sidecar and
// the control socket to internal/ipc.
package daemon
