// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// The server registers a single net/rpc service, Bridge, whose methods map
// onto daemon operations: worker lifecycle, status, call forwarding, event
// polling, and archive history. Worker-reported errors travel inside
// InvokeResponse so the CLI can show the worker's code and message; every
// other failure is an RPC error string.
//
// Reuse these types when adding new RPC endpoints to keep the protocol stable
// and compatible with existing command implementations.
package ipc
