// Package config loads, normalizes, and validates fictionbridge configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the FICTIONBRIDGE_SIDECAR_MODE
// override. The Config type centralizes every knob the daemon and CLI need:
// where state and logs live, how the worker is launched, and how long calls
// may wait.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
