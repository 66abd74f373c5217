package mqtt

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"
)

// connectToLocalBroker skips the test when no broker listens on the
// default port, so the suite passes on machines without Mosquitto.
func connectToLocalBroker(t *testing.T, clientID string, opts ...Option) *Client {
	t.Helper()

	conn, err := net.DialTimeout("tcp", "127.0.0.1:1883", time.Second)
	if err != nil {
		t.Skipf("no MQTT broker on 127.0.0.1:1883: %v", err)
	}
	conn.Close()

	client, err := Connect(testConfig(clientID), opts...)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIntegrationPublishSubscribeRoundTrip(t *testing.T) {
	client := connectToLocalBroker(t, "rakobridge-test-roundtrip")

	topic := fmt.Sprintf("graylogic/state/rako/rako_test_%d", time.Now().UnixNano())
	received := make(chan []byte, 1)

	err := client.Subscribe(topic, 1, func(_ string, payload []byte) error {
		received <- payload
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := client.Publish(topic, []byte(`{"on":true,"brightness":192}`), 1, false); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case payload := <-received:
		if string(payload) != `{"on":true,"brightness":192}` {
			t.Errorf("received %q", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered within 5s")
	}
}

func TestIntegrationWildcardSubscription(t *testing.T) {
	client := connectToLocalBroker(t, "rakobridge-test-wildcard")

	base := fmt.Sprintf("graylogic/command/rako%d", time.Now().UnixNano())
	received := make(chan string, 2)

	err := client.Subscribe(base+"/#", 1, func(topic string, _ []byte) error {
		received <- topic
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	for _, id := range []string{"rako_test_r1_c1", "rako_test_r2_s3"} {
		if err := client.Publish(base+"/"+id, []byte(`{"command":"turn_on"}`), 1, false); err != nil {
			t.Fatalf("Publish %s: %v", id, err)
		}
	}

	got := make(map[string]bool)
	for i := 0; i < 2; i++ {
		select {
		case topic := <-received:
			got[topic] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of 2 messages delivered within 5s", len(got))
		}
	}
}

func TestIntegrationRetainedMessage(t *testing.T) {
	publisher := connectToLocalBroker(t, "rakobridge-test-retain-pub")

	topic := fmt.Sprintf("graylogic/health/rako_test_%d", time.Now().UnixNano())
	if err := publisher.Publish(topic, []byte(`{"status":"healthy"}`), 1, true); err != nil {
		t.Fatalf("Publish retained: %v", err)
	}

	// A later subscriber must still see the retained payload.
	subscriber := connectToLocalBroker(t, "rakobridge-test-retain-sub")
	received := make(chan []byte, 1)
	err := subscriber.Subscribe(topic, 1, func(_ string, payload []byte) error {
		received <- payload
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case payload := <-received:
		if string(payload) != `{"status":"healthy"}` {
			t.Errorf("retained payload = %q", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retained message not delivered within 5s")
	}

	// Clear the retained message.
	_ = publisher.Publish(topic, nil, 1, true)
}

func TestIntegrationUnsubscribeStopsDelivery(t *testing.T) {
	client := connectToLocalBroker(t, "rakobridge-test-unsub")

	topic := fmt.Sprintf("graylogic/state/rako/rako_unsub_%d", time.Now().UnixNano())
	received := make(chan struct{}, 1)

	err := client.Subscribe(topic, 1, func(string, []byte) error {
		received <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := client.Unsubscribe(topic); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}

	if err := client.Publish(topic, []byte(`{}`), 1, false); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-received:
		t.Error("message delivered after unsubscribe")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestIntegrationHealthCheck(t *testing.T) {
	client := connectToLocalBroker(t, "rakobridge-test-health")

	if !client.IsConnected() {
		t.Error("IsConnected = false after Connect")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected = true after Close")
	}
}
