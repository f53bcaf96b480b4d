package reqreply

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/mqtt-samples/internal/devbroker"
	"github.com/nerrad567/mqtt-samples/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-samples/internal/infrastructure/mqtt"
)

// End-to-end tests against the embedded broker.

func startBroker(t *testing.T) *devbroker.Broker {
	t.Helper()

	b, err := devbroker.New(config.DevBrokerConfig{Address: "127.0.0.1:0", ReplyPrefix: "_reply"}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Start())
	t.Cleanup(func() { _ = b.Close() })

	return b
}

func connectClient(t *testing.T, b *devbroker.Broker, clientID string) *mqtt.Client {
	t.Helper()

	c, err := mqtt.Connect(config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{URL: b.URL(), ClientID: clientID},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestEndToEnd_RequestReply(t *testing.T) {
	b := startBroker(t)
	replierClient := connectClient(t, b, "e2e_replier")
	requestorClient := connectClient(t, b, "e2e_requestor")

	replier, err := NewReplier(ReplierOptions{
		Transport:          replierClient,
		AllowedReplyTopics: []string{"_reply/+"},
	})
	require.NoError(t, err)
	require.NoError(t, replier.Start(context.Background()))
	defer replier.Stop()

	requester, err := NewRequester(Options{Transport: requestorClient, Timeout: 2 * time.Second})
	require.NoError(t, err)
	defer requester.Close()
	requestorClient.SetOnDisconnect(requester.ConnectionLost)

	addr, err := requester.AcquireReplyAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "_reply/e2e_requestor", addr)

	id, err := requester.SendRequest(context.Background(), mqtt.TopicRequest, "Sample Request")
	require.NoError(t, err)

	reply, err := requester.AwaitReply(context.Background(), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, id, reply.CorrelationID)
	assert.Equal(t, "Sample Response", reply.Message)
	assert.Equal(t, uint64(1), replier.Stats().Handled)
}

func TestEndToEnd_ReplierAnswersFixedRequest(t *testing.T) {
	b := startBroker(t)
	replierClient := connectClient(t, b, "e2e_fixed_replier")
	client := connectClient(t, b, "e2e_fixed_requestor")

	replier, err := NewReplier(ReplierOptions{Transport: replierClient})
	require.NoError(t, err)
	require.NoError(t, replier.Start(context.Background()))
	defer replier.Stop()

	replies := make(chan []byte, 1)
	require.NoError(t, client.Subscribe("reply/abc", 0, func(_ string, payload []byte) error {
		replies <- payload
		return nil
	}))

	require.NoError(t, client.PublishString(mqtt.TopicRequest,
		`{"correlationId":"abc-123","replyTo":"reply/abc","message":"Sample Request"}`, 0, false))

	select {
	case payload := <-replies:
		reply, err := DecodeReply(payload)
		require.NoError(t, err)
		assert.Equal(t, "abc-123", reply.CorrelationID)
		assert.Equal(t, "Sample Response", reply.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reply")
	}
}

func TestEndToEnd_UnansweredControlChannel(t *testing.T) {
	b := startBroker(t)
	client := connectClient(t, b, "e2e_unanswered")

	watcher := connectClient(t, b, "e2e_watcher")
	requests := make(chan struct{}, 1)
	require.NoError(t, watcher.Subscribe(mqtt.TopicRequest, 0, func(string, []byte) error {
		requests <- struct{}{}
		return nil
	}))

	requester, err := NewRequester(Options{
		Transport:           client,
		ControlTopic:        "samples/control/unanswered",
		ReplyAddressTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	defer requester.Close()

	_, err = requester.Request(context.Background(), mqtt.TopicRequest, "Sample Request")
	assert.ErrorIs(t, err, ErrNoReplyAddressAssigned)

	select {
	case <-requests:
		t.Fatal("a request was published without a reply address")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEndToEnd_BrokerShutdownReleasesWaiter(t *testing.T) {
	b := startBroker(t)
	client := connectClient(t, b, "e2e_lost")

	requester, err := NewRequester(Options{Transport: client})
	require.NoError(t, err)
	defer requester.Close()
	client.SetOnDisconnect(requester.ConnectionLost)

	_, err = requester.AcquireReplyAddress(context.Background())
	require.NoError(t, err)
	_, err = requester.SendRequest(context.Background(), mqtt.TopicRequest, "nobody is listening")
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = b.Close()
	}()

	_, err = requester.AwaitReply(context.Background(), 10*time.Second)
	assert.ErrorIs(t, err, ErrConnectionLost)
}
