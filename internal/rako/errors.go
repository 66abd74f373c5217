package rako

import "errors"

// Domain errors for the Rako protocol package.
// Use errors.Is() to classify failures in calling code.
var (
	// ErrCommandFailed is returned when the bridge rejects a command or
	// the UDP exchange fails at the transport level.
	ErrCommandFailed = errors.New("rako: command failed")

	// ErrCommandTimeout is returned when a command exchange exceeds its
	// deadline. It wraps context.DeadlineExceeded where applicable.
	ErrCommandTimeout = errors.New("rako: command timed out")

	// ErrMalformedResponse is returned when the bridge returns a document
	// or datagram that cannot be parsed. Discovery treats this as
	// transient: the bridge produces truncated XML under concurrent load.
	ErrMalformedResponse = errors.New("rako: malformed response")

	// ErrNotFound is returned when no bridge could be located on the
	// local network.
	ErrNotFound = errors.New("rako: no bridge found")

	// ErrInvalidBrightness is returned when a brightness value is outside 0-255.
	ErrInvalidBrightness = errors.New("rako: brightness out of range (0-255)")

	// ErrInvalidScene is returned when a scene number is outside 0-4.
	ErrInvalidScene = errors.New("rako: scene number out of range (0-4)")
)
