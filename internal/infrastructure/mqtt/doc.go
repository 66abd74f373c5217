// Package mqtt connects the daemon to the host platform's message
// broker.
//
// It wraps paho.mqtt.golang with the behaviour the daemon depends on:
// connection state tracking, subscription replay after a reconnect,
// panic recovery around message handlers, and an optional last-will
// message so the platform notices an unclean exit.
//
// Topic names are owned by the entity layer; this package only moves
// bytes between the daemon and the broker.
package mqtt
