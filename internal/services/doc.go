// Package services defines shared utilities consumed by the sidecar
// supervisor, the daemon, and the control channel.
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers and worker method
//     names for logging.
//   - Structured error markers plus the Wrap helper so failures keep a
//     classifiable sentinel while carrying component and operation context.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across the bridge.
package services
