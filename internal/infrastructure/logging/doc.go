// Package logging wraps log/slog for the daemon. Records are JSON or
// key=value text depending on configuration, filtered by level, and
// always carry the service name and daemon version. Never log bridge
// credentials or MQTT passwords.
package logging
