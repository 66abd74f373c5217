package telemetry

import "errors"

var (
	// ErrDisabled is returned by Connect when telemetry is switched off
	// in configuration.
	ErrDisabled = errors.New("telemetry: disabled in configuration")

	// ErrConnectionFailed wraps failures to reach the server at startup.
	ErrConnectionFailed = errors.New("telemetry: connection failed")

	// ErrNotConnected reports use of a client after Close.
	ErrNotConnected = errors.New("telemetry: not connected")
)
