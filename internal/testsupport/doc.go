// Package testsupport holds shared test fixtures: temp-dir configs and a stub
// worker that test binaries re-execute as the sidecar.
package testsupport
