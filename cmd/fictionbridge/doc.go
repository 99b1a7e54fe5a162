// Command fictionbridge runs and controls the daemon that supervises the
// translator worker process.
//
// The daemon subcommand is what `fictionbridge start` launches in the
// background. Every other subcommand talks to that daemon over its Unix
// socket: start and stop the worker, forward JSON-RPC calls with invoke,
// follow worker notifications with events, and read the SQLite event archive
// with history.
package main
