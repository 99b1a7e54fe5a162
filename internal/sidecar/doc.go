// Package sidecar supervises a long-lived worker process and speaks
// newline-delimited JSON-RPC 2.0 with it over stdin and stdout.
//
// A Supervisor owns at most one worker. Start spawns it with three pipes and
// launches a stdout reader (responses and notifications), a stderr reader
// (forwarded to the log), and a reaper that collects the exit status. Call
// may be used from many goroutines: each call gets a fresh identifier, is
// written as one flushed line, and waits for its own response, the call
// timeout, or context cancellation. When stdout closes, every waiting caller
// is released with ErrChannelClosed and a sidecar:status event is emitted.
//
// ResolveLaunch turns the [sidecar] configuration section into a LaunchSpec
// for the dev, packaged, or custom launch modes.
package sidecar
