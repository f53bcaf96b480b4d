package samples

import (
	"context"
	"fmt"
	"sync"
)

// QoS1Producer publishes the sample message once at QoS 1 to the queue
// topic and waits for the broker's acknowledgement.
func (r *Runner) QoS1Producer(ctx context.Context) error {
	topic := r.cfg.Topics.Queue
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := r.client.Publish(topic, []byte(r.cfg.Samples.Message), 1, false); err != nil {
		return err
	}
	r.logger.Info("message published", "sample", "qos1-producer", "topic", topic, "qos", 1)
	return nil
}

// QoS1Consumer subscribes to the queue topic at QoS 1 and waits for one
// message.
//
// Returns:
//   - string: the payload of the first message received
//   - error: ErrQoSNotGranted if the broker granted less than QoS 1,
//     ErrConnectionLost (wrapped), a subscribe failure, or ctx.Err()
func (r *Runner) QoS1Consumer(ctx context.Context) (string, error) {
	topic := r.cfg.Topics.Queue
	log := r.logger.With("sample", "qos1-consumer", "topic", topic)

	received := make(chan string, 1)
	var once sync.Once

	granted, err := r.client.SubscribeGranted(topic, 1, func(_ string, payload []byte) error {
		once.Do(func() { received <- string(payload) })
		return nil
	})
	if err != nil {
		return "", err
	}
	defer func() {
		if err := r.client.Unsubscribe(topic); err != nil {
			log.Debug("unsubscribe failed", "error", err)
		}
	}()

	if granted != 1 {
		return "", fmt.Errorf("%w: requested 1, granted %d", ErrQoSNotGranted, granted)
	}

	r.ready("qos1-consumer")

	select {
	case msg := <-received:
		log.Info("received a message", "payload", msg)
		return msg, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-r.lost:
		return "", r.lostError()
	}
}

// ConfirmedPublish publishes the sample message at QoS 1 to the queue
// topic and blocks until the broker confirms delivery, bounded by the
// exchange timeout.
func (r *Runner) ConfirmedPublish(ctx context.Context) error {
	topic := r.cfg.Topics.Queue

	ctx, cancel := context.WithTimeout(ctx, r.cfg.GetExchangeTimeout())
	defer cancel()

	if err := r.client.PublishConfirmed(ctx, topic, []byte(r.cfg.Samples.Message), 1); err != nil {
		return err
	}
	r.logger.Info("delivery confirmed", "sample", "confirmed-publish", "topic", topic)
	return nil
}
