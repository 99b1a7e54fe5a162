// Package logs tails the daemon's log files for the CLI.
//
// Tail reads the last N lines (negative offset) or everything after a saved
// offset, optionally waiting for new output. Worker stderr is logged by the
// supervisor under the sidecar.stderr component, so matching on
// WorkerComponent isolates it.
package logs
