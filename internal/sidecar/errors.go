package sidecar

import (
	"errors"

	"fictionbridge/internal/services"
)

var (
	// ErrSpawn reports that the worker executable could not be launched.
	ErrSpawn = errors.New("sidecar spawn failed")
	// ErrExecutableNotFound accompanies ErrSpawn when the executable does
	// not exist. It also matches services.ErrNotFound.
	ErrExecutableNotFound = services.Marker("sidecar executable not found", services.ErrNotFound)
	// ErrStreamCapture reports that a stdio pipe could not be attached.
	ErrStreamCapture = errors.New("sidecar stream capture failed")
	// ErrNotConnected is returned by Call when no live worker is attached.
	ErrNotConnected = errors.New("sidecar not connected")
	// ErrTimeout is returned when a call receives no response within the
	// call timeout. It also matches services.ErrTimeout.
	ErrTimeout = services.Marker("sidecar call timed out", services.ErrTimeout)
	// ErrChannelClosed is returned when the transport tore down before the
	// call completed, or the request could not be written.
	ErrChannelClosed = errors.New("sidecar response channel closed")
	// ErrAlreadyRunning is returned by Start while a live worker exists.
	ErrAlreadyRunning = errors.New("sidecar already running")
)
