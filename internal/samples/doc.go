// Package samples contains the MQTT sample programs as functions.
//
// Each sample performs one messaging pattern over an already connected
// client and returns when the pattern completes, the context is
// cancelled, or the connection is lost:
//
//   - topic-publisher: direct (QoS 0) publishing on a fixed interval
//   - topic-subscriber: direct subscription with a wildcard filter
//   - qos1-producer / qos1-consumer: at-least-once delivery
//   - confirmed-publish: publish and wait for the delivery confirmation
//   - basic-requestor / basic-replier: one correlated request/reply exchange
//
// The command-line shell in cmd/mqttsamples looks samples up with Lookup
// and runs them through a Runner.
package samples
