package mqtt

import "errors"

// Sentinel errors for broker operations. Match with errors.Is.
var (
	// ErrConnectionFailed wraps failures of the initial broker dial.
	ErrConnectionFailed = errors.New("mqtt: connect failed")

	// ErrNotConnected is returned for operations attempted while the
	// client has no broker connection.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrInvalidTopic is returned for an empty topic string.
	ErrInvalidTopic = errors.New("mqtt: empty topic")

	// ErrInvalidQoS is returned for QoS levels other than 0, 1 or 2.
	ErrInvalidQoS = errors.New("mqtt: qos must be 0, 1 or 2")

	// ErrPublishFailed wraps publish errors, including oversized payloads
	// and missing broker acknowledgements.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps subscribe errors.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed wraps unsubscribe errors.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")
)
