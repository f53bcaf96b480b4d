package mqtt

import (
	"context"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a message to the specified MQTT topic.
//
// QoS Levels:
//   - 0: At most once (fire and forget, "direct" messaging)
//   - 1: At least once (broker acknowledges with PUBACK, may duplicate)
//   - 2: Exactly once (guaranteed, no duplicates, higher overhead)
//
// Publish waits up to the default publish timeout for the acknowledgement
// appropriate to the QoS level.
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
//
// Example:
//
//	err := client.Publish("Q/tutorial", []byte("Hello world from MQTT!"), 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	token, err := c.startPublish(topic, payload, qos, retained)
	if err != nil {
		return err
	}

	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishConfirmed publishes and blocks until the broker confirms
// delivery or ctx is done.
//
// For QoS 1 the confirmation is the PUBACK, for QoS 2 the PUBCOMP. For
// QoS 0 there is no confirmation and the call returns once the message
// has been written to the network.
//
// Returns:
//   - error: nil once delivery is confirmed; ErrPublishFailed (wrapped)
//     on failure; ErrTimeout (wrapped with ctx.Err()) when ctx ends first
func (c *Client) PublishConfirmed(ctx context.Context, topic string, payload []byte, qos byte) error {
	token, err := c.startPublish(topic, payload, qos, false)
	if err != nil {
		return err
	}

	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for delivery confirmation: %w", ErrTimeout, ctx.Err())
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishString is a convenience method that publishes a string payload.
func (c *Client) PublishString(topic string, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// startPublish validates the request and hands it to paho.
func (c *Client) startPublish(topic string, payload []byte, qos byte, retained bool) (pahomqtt.Token, error) {
	if err := ValidateTopicName(topic); err != nil {
		return nil, err
	}
	if qos > maxQoS {
		return nil, ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return nil, fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	return c.client.Publish(topic, qos, retained, payload), nil
}
