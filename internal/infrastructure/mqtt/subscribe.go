package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// subscribeFailure is the SUBACK return code for a rejected subscription.
const subscribeFailure = 0x80

// Subscribe registers a handler for messages on the specified topic filter.
//
// Filters can include MQTT wildcards:
//   - + (single-level): "solace/samples/+/direct/#"
//   - # (multi-level): "solace/samples/#"
//
// The handler is called in a separate goroutine for each received message.
// Subscriptions are tracked and restored on reconnect.
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
//
// Example:
//
//	err := client.Subscribe("solace/samples/+/direct/#", 0,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	_, err := c.SubscribeGranted(topic, qos, handler)
	return err
}

// SubscribeGranted subscribes like Subscribe and additionally returns the
// QoS level granted by the broker, which may be lower than requested.
//
// A SUBACK failure code (0x80) is reported as ErrSubscribeFailed.
func (c *Client) SubscribeGranted(topic string, qos byte, handler MessageHandler) (byte, error) {
	if err := ValidateTopicFilter(topic); err != nil {
		return 0, err
	}
	if qos > maxQoS {
		return 0, ErrInvalidQoS
	}
	if handler == nil {
		return 0, fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	if !c.IsConnected() {
		return 0, ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{
		topic:   topic,
		qos:     qos,
		handler: handler,
	}
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		c.forget(topic)
		return 0, fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		c.forget(topic)
		return 0, fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	granted := qos
	if st, ok := token.(*pahomqtt.SubscribeToken); ok {
		if code, found := st.Result()[topic]; found {
			granted = code
		}
	}
	if granted == subscribeFailure {
		c.forget(topic)
		return 0, fmt.Errorf("%w: broker rejected subscription to %q", ErrSubscribeFailed, topic)
	}

	return granted, nil
}

// forget removes a topic from subscription tracking.
func (c *Client) forget(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}

// Unsubscribe removes a subscription and stops receiving messages for a topic.
//
// Messages already in flight may still be delivered to the old handler.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.forget(topic)

	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}

	return nil
}

// SubscriptionCount returns the number of active subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription checks if a subscription exists for the given filter.
//
// Note: This checks only the exact filter string, not pattern matching.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, exists := c.subscriptions[topic]
	return exists
}
