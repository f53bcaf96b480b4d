//go:build integration

package mqtt

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nerrad567/mqtt-samples/internal/infrastructure/config"
)

// Integration tests against an external broker.
// The broker URL is read from MQTTSAMPLES_MQTT_URL (default tcp://127.0.0.1:1883).
//
// Run with:
//   go test -tags=integration -count=1 -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	url := os.Getenv("MQTTSAMPLES_MQTT_URL")
	if url == "" {
		url = "tcp://127.0.0.1:1883"
	}
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			URL:      url,
			ClientID: clientID,
		},
		Auth: config.MQTTAuthConfig{
			Username: os.Getenv("MQTTSAMPLES_MQTT_USERNAME"),
			Password: os.Getenv("MQTTSAMPLES_MQTT_PASSWORD"),
		},
		QoS: 1,
	}
}

// TestIntegration_Presence verifies the retained online status is visible
// to other clients.
func TestIntegration_Presence(t *testing.T) {
	cfg := integrationConfig(NewClientID("int-presence"))
	cfg.Presence = true

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	watcher, err := Connect(integrationConfig(NewClientID("int-watcher")))
	if err != nil {
		t.Fatalf("Connect() watcher error = %v", err)
	}
	defer watcher.Close()

	received := make(chan map[string]any, 1)
	err = watcher.Subscribe(Topics{}.ClientStatus(client.ClientID()), 1, func(_ string, p []byte) error {
		var status map[string]any
		if err := json.Unmarshal(p, &status); err != nil {
			return err
		}
		select {
		case received <- status:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case status := <-received:
		if status["status"] != "online" {
			t.Errorf("status = %v, want online", status["status"])
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for presence status")
	}
}

// TestIntegration_ConfirmedRoundtrip verifies a QoS 1 message is confirmed
// and delivered.
func TestIntegration_ConfirmedRoundtrip(t *testing.T) {
	pub, err := Connect(integrationConfig(NewClientID("int-pub")))
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pub.Close()

	sub, err := Connect(integrationConfig(NewClientID("int-sub")))
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer sub.Close()

	topic := "mqttsamples/int/" + sub.ClientID()
	received := make(chan string, 1)

	granted, err := sub.SubscribeGranted(topic, 1, func(_ string, p []byte) error {
		received <- string(p)
		return nil
	})
	if err != nil {
		t.Fatalf("SubscribeGranted() error = %v", err)
	}
	if granted != 1 {
		t.Errorf("granted QoS = %d, want 1", granted)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pub.PublishConfirmed(ctx, topic, []byte("confirmed"), 1); err != nil {
		t.Fatalf("PublishConfirmed() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg != "confirmed" {
			t.Errorf("Received = %q, want %q", msg, "confirmed")
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for message")
	}
}

// TestIntegration_ReplyToControl checks whether the broker announces
// reply addresses. Brokers without the convention are skipped.
func TestIntegration_ReplyToControl(t *testing.T) {
	client, err := Connect(integrationConfig(NewClientID("int-replyto")))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	received := make(chan string, 1)
	err = client.Subscribe(TopicReplyToControl, 1, func(_ string, p []byte) error {
		received <- string(p)
		return nil
	})
	if err != nil {
		t.Skipf("broker rejected %s: %v", TopicReplyToControl, err)
	}

	select {
	case addr := <-received:
		if err := ValidateTopicName(addr); err != nil {
			t.Errorf("announced reply address %q is not a topic name: %v", addr, err)
		}
	case <-time.After(3 * time.Second):
		t.Skip("broker does not announce reply addresses")
	}
}
