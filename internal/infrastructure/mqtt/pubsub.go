package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publish sends payload to topic and waits for broker acknowledgement
// at QoS 1 and above. Retained messages replace the broker's stored
// copy for the topic.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validateTopicQoS(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadBytes {
		return fmt.Errorf("%w: payload is %d bytes, limit %d", ErrPublishFailed, len(payload), maxPayloadBytes)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return waitToken(c.paho.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

// Subscribe registers handler for topic, which may contain + and #
// wildcards. The subscription is tracked and replayed whenever the
// connection is re-established.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := validateTopicQoS(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.subMu.Unlock()

	if err := waitToken(c.paho.Subscribe(topic, qos, c.dispatch(handler)), ErrSubscribeFailed); err != nil {
		// Forget the subscription so a failed attempt is not replayed.
		c.subMu.Lock()
		delete(c.subs, topic)
		c.subMu.Unlock()
		return err
	}
	return nil
}

// Unsubscribe stops delivery for a topic. The argument must be the
// exact pattern passed to Subscribe.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	delete(c.subs, topic)
	c.subMu.Unlock()

	return waitToken(c.paho.Unsubscribe(topic), ErrUnsubscribeFailed)
}

// validateTopicQoS rejects arguments the broker would refuse anyway.
func validateTopicQoS(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}

// waitToken blocks on a paho token and folds its outcome into the
// given sentinel error.
func waitToken(token pahomqtt.Token, sentinel error) error {
	if !token.WaitTimeout(tokenTimeout) {
		return fmt.Errorf("%w: no acknowledgement within %v", sentinel, tokenTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
