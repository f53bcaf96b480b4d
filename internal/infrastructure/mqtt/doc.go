// Package mqtt provides the MQTT client shared by the samples.
//
// This package manages:
//   - Connection to any MQTT 3.1.1 broker (tcp, ssl, ws, wss)
//   - Message publishing, optionally waiting for delivery confirmation
//   - Topic subscriptions with wildcard support and granted-QoS reporting
//   - Optional presence publishing with a Last Will and Testament
//   - Topic name and filter validation, and local filter matching
//
// Auto-reconnect is off unless configured. A sample whose connection is
// lost is expected to report it and exit.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.DirectFilter(), 0,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	err = client.PublishConfirmed(ctx, mqtt.Topics{}.Queue(), []byte("hi"), 1)
package mqtt
