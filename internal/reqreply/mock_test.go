package reqreply

import (
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/mqtt-samples/internal/infrastructure/mqtt"
)

// published is a message recorded by mockTransport.
type published struct {
	topic   string
	payload []byte
	qos     byte
}

// mockTransport is an in-memory Transport. Handlers registered through
// Subscribe receive messages injected with SimulateMessage.
type mockTransport struct {
	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	published    []published
	unsubscribed []string
	subscribes   map[string]int

	subscribeErr map[string]error
	publishErr   error

	// onSubscribe runs after a successful Subscribe, in its own goroutine.
	onSubscribe func(topic string)

	// onPublish runs after a successful Publish, in its own goroutine.
	onPublish func(topic string, payload []byte)
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		handlers:     make(map[string]mqtt.MessageHandler),
		subscribes:   make(map[string]int),
		subscribeErr: make(map[string]error),
	}
}

func (m *mockTransport) Publish(topic string, payload []byte, qos byte, _ bool) error {
	m.mu.Lock()
	if m.publishErr != nil {
		err := m.publishErr
		m.mu.Unlock()
		return err
	}
	m.published = append(m.published, published{topic: topic, payload: payload, qos: qos})
	hook := m.onPublish
	m.mu.Unlock()

	if hook != nil {
		go hook(topic, payload)
	}
	return nil
}

func (m *mockTransport) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	if err := m.subscribeErr[topic]; err != nil {
		m.mu.Unlock()
		return err
	}
	m.handlers[topic] = handler
	m.subscribes[topic]++
	hook := m.onSubscribe
	m.mu.Unlock()

	if hook != nil {
		go hook(topic)
	}
	return nil
}

func (m *mockTransport) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	m.unsubscribed = append(m.unsubscribed, topic)
	return nil
}

// SimulateMessage delivers payload to every handler whose filter matches
// topic. It reports whether any handler received it.
func (m *mockTransport) SimulateMessage(topic string, payload []byte) bool {
	m.mu.Lock()
	var targets []mqtt.MessageHandler
	for filter, h := range m.handlers {
		if mqtt.MatchTopic(filter, topic) {
			targets = append(targets, h)
		}
	}
	m.mu.Unlock()

	for _, h := range targets {
		_ = h(topic, payload)
	}
	return len(targets) > 0
}

func (m *mockTransport) Published() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published(nil), m.published...)
}

func (m *mockTransport) SubscribeCount(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribes[topic]
}

func (m *mockTransport) Unsubscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.unsubscribed...)
}

func (m *mockTransport) setPublishErr(err error) {
	m.mu.Lock()
	m.publishErr = err
	m.mu.Unlock()
}

// announceOnSubscribe makes the mock behave like a broker that answers a
// control-topic subscription with address.
func (m *mockTransport) announceOnSubscribe(address string) {
	m.onSubscribe = func(topic string) {
		if topic == mqtt.TopicReplyToControl {
			m.SimulateMessage(topic, []byte(address))
		}
	}
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}
