package samples

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/mqtt-samples/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-samples/internal/infrastructure/mqtt"
)

// sent is a message recorded by fakeClient.
type sent struct {
	topic     string
	payload   string
	qos       byte
	confirmed bool
}

// fakeClient is an in-memory Client.
type fakeClient struct {
	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	sent         []sent
	unsubscribed []string
	onDisconnect func(error)

	granted    byte
	grantSet   bool
	publishErr error

	// onPublish runs synchronously after a recorded publish; n counts
	// publishes so far.
	onPublish func(msg sent, n int)
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeClient) Publish(topic string, payload []byte, qos byte, _ bool) error {
	return f.record(topic, payload, qos, false)
}

func (f *fakeClient) PublishConfirmed(ctx context.Context, topic string, payload []byte, qos byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.record(topic, payload, qos, true)
}

func (f *fakeClient) record(topic string, payload []byte, qos byte, confirmed bool) error {
	f.mu.Lock()
	if f.publishErr != nil {
		err := f.publishErr
		f.mu.Unlock()
		return err
	}
	msg := sent{topic: topic, payload: string(payload), qos: qos, confirmed: confirmed}
	f.sent = append(f.sent, msg)
	n := len(f.sent)
	hook := f.onPublish
	f.mu.Unlock()

	if hook != nil {
		hook(msg, n)
	}
	return nil
}

func (f *fakeClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	_, err := f.SubscribeGranted(topic, qos, handler)
	return err
}

func (f *fakeClient) SubscribeGranted(topic string, qos byte, handler mqtt.MessageHandler) (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.handlers[topic] = handler
	if f.grantSet {
		return f.granted, nil
	}
	return qos, nil
}

func (f *fakeClient) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.handlers, topic)
	f.unsubscribed = append(f.unsubscribed, topic)
	return nil
}

func (f *fakeClient) ClientID() string { return "fake" }

func (f *fakeClient) SetOnDisconnect(callback func(error)) {
	f.mu.Lock()
	f.onDisconnect = callback
	f.mu.Unlock()
}

// grant makes every subscription report qos as granted.
func (f *fakeClient) grant(qos byte) {
	f.mu.Lock()
	f.granted, f.grantSet = qos, true
	f.mu.Unlock()
}

// deliver hands a message to every handler whose filter matches topic.
func (f *fakeClient) deliver(topic, payload string) {
	f.mu.Lock()
	var matched []mqtt.MessageHandler
	for filter, h := range f.handlers {
		if mqtt.MatchTopic(filter, topic) {
			matched = append(matched, h)
		}
	}
	f.mu.Unlock()

	for _, h := range matched {
		_ = h(topic, []byte(payload))
	}
}

// disconnect simulates the broker dropping the connection.
func (f *fakeClient) disconnect(cause error) {
	f.mu.Lock()
	cb := f.onDisconnect
	f.mu.Unlock()
	if cb != nil {
		cb(cause)
	}
}

func (f *fakeClient) Sent() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func (f *fakeClient) Unsubscribed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unsubscribed...)
}

var errBoom = errors.New("boom")

// testConfig returns the default configuration tuned for fast tests.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Default()
	require.NoError(t, err)

	cfg.MQTT.QoS = 0
	cfg.Samples.PublishCount = 3
	cfg.Samples.PublishInterval = 0
	cfg.Exchange.Timeout = 2
	cfg.Exchange.ReplyAddressTimeout = 2
	return cfg
}
