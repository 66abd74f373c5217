package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-rako/internal/infrastructure/config"
)

// MessageHandler receives messages delivered on a subscription. Paho
// invokes handlers on its own goroutines, so they should return
// quickly. A returned error is logged and otherwise ignored; MQTT has
// no per-message nack.
type MessageHandler func(topic string, payload []byte) error

// Logger is the subset of the logging package the client uses.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// subscription records what was subscribed so it can be replayed after
// a reconnect, keyed by topic in Client.subs.
type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client is the daemon's broker connection. It tracks subscriptions
// across reconnects and shields the paho router from handler panics.
// Safe for concurrent use.
type Client struct {
	paho pahomqtt.Client

	subMu sync.RWMutex
	subs  map[string]subscription

	stateMu      sync.RWMutex
	connected    bool
	onConnect    func()
	onDisconnect func(error)
	logger       Logger
}

// Connect dials the broker and blocks until the first connection
// attempt resolves. After that, paho reconnects on its own and the
// client replays its subscriptions on every reconnect.
func Connect(cfg config.MQTTConfig, opts ...Option) (*Client, error) {
	var co connectOptions
	for _, opt := range opts {
		opt(&co)
	}

	c := &Client{subs: make(map[string]subscription)}

	pahoOpts := buildClientOptions(cfg, co)
	pahoOpts.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	pahoOpts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleConnectionLost(err) })

	c.paho = pahomqtt.NewClient(pahoOpts)
	token := c.paho.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: no response within %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect handler runs on a paho goroutine and may not have
	// fired yet; mark connected so IsConnected holds as soon as
	// Connect returns.
	c.setConnected(true)

	return c, nil
}

// Close disconnects from the broker after letting in-flight messages
// drain. A clean disconnect does not trigger the registered will.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	c.paho.Disconnect(disconnectQuiesceMS)
	c.setConnected(false)
	return nil
}

// HealthCheck reports whether the broker connection is usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt: health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.connected && c.paho != nil && c.paho.IsConnected()
}

// SetOnConnect registers a callback invoked on the initial connect and
// on every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.stateMu.Lock()
	c.onConnect = callback
	c.stateMu.Unlock()
}

// SetOnDisconnect registers a callback invoked when the connection
// drops, with the error that ended it.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.stateMu.Lock()
	c.onDisconnect = callback
	c.stateMu.Unlock()
}

// SetLogger wires in structured logging for handler errors and
// resubscribe failures. Without it they are dropped silently.
func (c *Client) SetLogger(logger Logger) {
	c.stateMu.Lock()
	c.logger = logger
	c.stateMu.Unlock()
}

// handleConnect runs on every (re)connect: restores subscriptions and
// notifies the registered callback.
func (c *Client) handleConnect() {
	c.setConnected(true)
	c.resubscribe()

	c.stateMu.RLock()
	callback := c.onConnect
	c.stateMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleConnectionLost runs when paho loses the connection.
func (c *Client) handleConnectionLost(err error) {
	c.setConnected(false)

	c.stateMu.RLock()
	callback := c.onDisconnect
	c.stateMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// resubscribe replays tracked subscriptions after a reconnect.
// Failures are logged; the next reconnect retries them.
func (c *Client) resubscribe() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for topic, sub := range c.subs {
		token := c.paho.Subscribe(topic, sub.qos, c.dispatch(sub.handler))
		if token.WaitTimeout(tokenTimeout) && token.Error() != nil {
			c.logWarn("resubscribe failed", "topic", topic, "error", token.Error())
		}
	}
}

// dispatch adapts a MessageHandler to paho's callback shape. Panics
// are recovered so a malformed payload cannot take down the paho
// message router.
func (c *Client) dispatch(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logError("message handler panicked", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logWarn("message handler failed", "topic", msg.Topic(), "error", err)
		}
	}
}

func (c *Client) setConnected(connected bool) {
	c.stateMu.Lock()
	c.connected = connected
	c.stateMu.Unlock()
}

func (c *Client) logWarn(msg string, args ...any) {
	c.stateMu.RLock()
	logger := c.logger
	c.stateMu.RUnlock()
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

func (c *Client) logError(msg string, args ...any) {
	c.stateMu.RLock()
	logger := c.logger
	c.stateMu.RUnlock()
	if logger != nil {
		logger.Error(msg, args...)
	}
}
