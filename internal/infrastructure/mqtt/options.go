package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-rako/internal/infrastructure/config"
)

const (
	// connectTimeout bounds the initial broker dial.
	connectTimeout = 10 * time.Second

	// tokenTimeout bounds the wait for broker acknowledgement of a
	// publish, subscribe or unsubscribe.
	tokenTimeout = 5 * time.Second

	// disconnectQuiesceMS is how long Close lets in-flight messages
	// drain before dropping the connection.
	disconnectQuiesceMS = 1000

	// keepAlive is the PINGREQ interval; the broker uses it to detect
	// dead connections.
	keepAlive = 60 * time.Second

	// maxQoS is the highest QoS level MQTT defines.
	maxQoS = 2

	// maxPayloadBytes caps outgoing payloads. Entity state and health
	// messages are a few hundred bytes; anything near this limit is a bug.
	maxPayloadBytes = 1 << 20
)

// will describes the last-will message registered with the broker.
type will struct {
	topic   string
	payload []byte
}

// connectOptions collects per-connection settings that do not belong
// in config.yaml.
type connectOptions struct {
	will *will
}

// Option adjusts how Connect sets up the broker session.
type Option func(*connectOptions)

// WithWill registers a last-will message, published by the broker
// (QoS 1, retained) if the client disappears without a clean
// disconnect. Retained subscribers then see the loss instead of a
// stale status.
func WithWill(topic string, payload []byte) Option {
	return func(o *connectOptions) {
		o.will = &will{topic: topic, payload: payload}
	}
}

// buildClientOptions translates daemon config and connect options into
// paho client options: broker URL, identity, credentials, keepalive,
// reconnect cadence and the optional last will.
func buildClientOptions(cfg config.MQTTConfig, co connectOptions) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Start each session clean; retained messages carry the state new
	// sessions need.
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)

	// Paho backs off between the configured initial and maximum delays.
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	if co.will != nil {
		opts.SetBinaryWill(co.will.topic, co.will.payload, 1, true)
	}

	return opts
}
