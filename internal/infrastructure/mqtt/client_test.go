package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-rako/internal/infrastructure/config"
)

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, msg)
}

// stubMessage implements paho's Message interface for handler tests.
type stubMessage struct {
	topic   string
	payload []byte
}

func (m stubMessage) Duplicate() bool   { return false }
func (m stubMessage) Qos() byte         { return 1 }
func (m stubMessage) Retained() bool    { return false }
func (m stubMessage) Topic() string     { return m.topic }
func (m stubMessage) MessageID() uint16 { return 0 }
func (m stubMessage) Payload() []byte   { return m.payload }
func (m stubMessage) Ack()              {}

// disconnectedClient builds a client that never connected, for
// exercising validation paths.
func disconnectedClient() *Client {
	return &Client{subs: make(map[string]subscription)}
}

func TestPublishValidation(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{
			name:    "empty topic",
			topic:   "",
			qos:     1,
			wantErr: ErrInvalidTopic,
		},
		{
			name:    "qos too high",
			topic:   "graylogic/state/rako/rako_112233445566_r1_c1",
			qos:     3,
			wantErr: ErrInvalidQoS,
		},
		{
			name:    "oversized payload",
			topic:   "graylogic/state/rako/rako_112233445566_r1_c1",
			payload: make([]byte, maxPayloadBytes+1),
			qos:     1,
			wantErr: ErrPublishFailed,
		},
		{
			name:    "not connected",
			topic:   "graylogic/state/rako/rako_112233445566_r1_c1",
			payload: []byte(`{"on":true}`),
			qos:     1,
			wantErr: ErrNotConnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := disconnectedClient()
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{
			name:    "empty topic",
			topic:   "",
			qos:     1,
			handler: handler,
			wantErr: ErrInvalidTopic,
		},
		{
			name:    "qos too high",
			topic:   "graylogic/command/rako/#",
			qos:     5,
			handler: handler,
			wantErr: ErrInvalidQoS,
		},
		{
			name:    "nil handler",
			topic:   "graylogic/command/rako/#",
			qos:     1,
			handler: nil,
			wantErr: ErrSubscribeFailed,
		},
		{
			name:    "not connected",
			topic:   "graylogic/command/rako/#",
			qos:     1,
			handler: handler,
			wantErr: ErrNotConnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := disconnectedClient()
			err := c.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe error = %v, want %v", err, tt.wantErr)
			}
			if len(c.subs) != 0 {
				t.Errorf("failed subscribe left %d tracked subscriptions", len(c.subs))
			}
		})
	}
}

func TestUnsubscribeValidation(t *testing.T) {
	c := disconnectedClient()

	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want %v", err, ErrInvalidTopic)
	}
	if err := c.Unsubscribe("graylogic/command/rako/#"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe while disconnected error = %v, want %v", err, ErrNotConnected)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	c := disconnectedClient()

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck error = %v, want %v", err, ErrNotConnected)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck with cancelled context = %v, want context.Canceled", err)
	}
}

func TestCloseWithoutConnect(t *testing.T) {
	c := disconnectedClient()
	if err := c.Close(); err != nil {
		t.Errorf("Close on never-connected client = %v, want nil", err)
	}
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	c := disconnectedClient()
	logger := &recordingLogger{}
	c.SetLogger(logger)

	wrapped := c.dispatch(func(string, []byte) error {
		panic("corrupt payload")
	})

	// Must not propagate the panic.
	wrapped(nil, stubMessage{topic: "graylogic/command/rako/rako_112233445566_r1_c1"})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.errs) != 1 {
		t.Fatalf("recovered panic logged %d errors, want 1", len(logger.errs))
	}
}

func TestDispatchLogsHandlerError(t *testing.T) {
	c := disconnectedClient()
	logger := &recordingLogger{}
	c.SetLogger(logger)

	wrapped := c.dispatch(func(string, []byte) error {
		return fmt.Errorf("unmarshal failed")
	})
	wrapped(nil, stubMessage{topic: "graylogic/command/rako/rako_112233445566_r1_c1"})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.warns) != 1 {
		t.Fatalf("handler error logged %d warnings, want 1", len(logger.warns))
	}
}

func TestDispatchDeliversTopicAndPayload(t *testing.T) {
	c := disconnectedClient()

	var gotTopic string
	var gotPayload []byte
	wrapped := c.dispatch(func(topic string, payload []byte) error {
		gotTopic = topic
		gotPayload = payload
		return nil
	})

	wrapped(nil, stubMessage{
		topic:   "graylogic/command/rako/rako_112233445566_r1_c1",
		payload: []byte(`{"command":"turn_on"}`),
	})

	if gotTopic != "graylogic/command/rako/rako_112233445566_r1_c1" {
		t.Errorf("handler topic = %q", gotTopic)
	}
	if string(gotPayload) != `{"command":"turn_on"}` {
		t.Errorf("handler payload = %q", gotPayload)
	}
}

func TestConnectionCallbacks(t *testing.T) {
	c := disconnectedClient()

	var connects int
	var lostErr error
	c.SetOnConnect(func() { connects++ })
	c.SetOnDisconnect(func(err error) { lostErr = err })

	// handleConnect would also resubscribe; with no subscriptions and a
	// nil paho client that is a no-op loop.
	c.handleConnect()
	if connects != 1 {
		t.Errorf("connect callback ran %d times, want 1", connects)
	}

	wantErr := errors.New("broker went away")
	c.handleConnectionLost(wantErr)
	if !errors.Is(lostErr, wantErr) {
		t.Errorf("disconnect callback error = %v, want %v", lostErr, wantErr)
	}
	if c.connected {
		t.Error("client still marked connected after connection lost")
	}
}

func testConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}
