package mqtt

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// connectOrSkip connects to the local test broker, skipping when none is running.
func connectOrSkip(t *testing.T) *Client {
	t.Helper()
	client, err := Connect(testConfig())
	if err != nil {
		t.Skipf("no MQTT broker at 127.0.0.1:1883: %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

func TestPublish_Validation(t *testing.T) {
	c := &Client{cfg: testConfig()}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "graypersist/x", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "graypersist/x", []byte(strings.Repeat("x", maxPayloadSize+1)), 1, ErrPublishFailed},
		{"not connected", "graypersist/x", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPublishJSON_EncodingError(t *testing.T) {
	c := &Client{cfg: testConfig()}
	err := c.PublishJSON("graypersist/x", map[string]any{"ch": make(chan int)})
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := &Client{cfg: testConfig()}

	if c.IsConnected() {
		t.Error("zero client should not be connected")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() with cancelled ctx error = %v", err)
	}
}

func TestConnectInvalidBroker(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19999

	_, err := Connect(cfg)
	if err == nil {
		t.Skip("something is listening on 127.0.0.1:19999")
	}
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestBroker_PublishRetained(t *testing.T) {
	client := connectOrSkip(t)

	if !client.IsConnected() {
		t.Fatal("IsConnected() = false after Connect")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := client.PublishRetained(Topics{}.SchemaStatus("test_table"), []byte(`{"kind":"wrong_version"}`)); err != nil {
		t.Errorf("PublishRetained() error = %v", err)
	}
	if err := client.PublishJSON(Topics{}.SystemStats(), map[string]int{"runs": 1}); err != nil {
		t.Errorf("PublishJSON() error = %v", err)
	}
}
