package samples

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// TopicPublisher publishes the sample message at QoS 0 to the direct
// publish topic, PublishCount times, waiting PublishInterval between
// messages.
//
// Cancelling ctx stops it early without an error.
//
// Returns:
//   - int: the number of messages published
//   - error: a publish failure or ErrConnectionLost (wrapped)
func (r *Runner) TopicPublisher(ctx context.Context) (int, error) {
	topic := r.cfg.Topics.DirectPublish
	count := r.cfg.Samples.PublishCount
	interval := r.cfg.GetPublishInterval()
	payload := []byte(r.cfg.Samples.Message)

	log := r.logger.With("sample", "topic-publisher", "topic", topic)

	sent := 0
	for sent < count {
		if err := r.client.Publish(topic, payload, 0, false); err != nil {
			return sent, err
		}
		sent++
		log.Info("message published", "n", sent, "of", count)

		if sent == count {
			break
		}

		if err := r.pause(ctx, interval); err != nil {
			if errors.Is(err, ErrConnectionLost) {
				return sent, err
			}
			log.Info("publisher interrupted", "sent", sent)
			return sent, nil
		}
	}

	return sent, nil
}

// TopicSubscriber subscribes to the direct filter at QoS 0 and logs every
// message received. It returns after limit messages (0 means no limit),
// when ctx is cancelled, or when the connection is lost.
//
// Returns:
//   - int: the number of messages received
//   - error: a subscribe failure or ErrConnectionLost (wrapped)
func (r *Runner) TopicSubscriber(ctx context.Context, limit int) (int, error) {
	filter := r.cfg.Topics.DirectFilter
	log := r.logger.With("sample", "topic-subscriber", "filter", filter)

	var (
		received  atomic.Int64
		enough    = make(chan struct{})
		closeOnce sync.Once
	)

	err := r.client.Subscribe(filter, 0, func(topic string, payload []byte) error {
		n := received.Add(1)
		log.Info("received a message", "topic", topic, "payload", string(payload), "n", n)
		if limit > 0 && n >= int64(limit) {
			closeOnce.Do(func() { close(enough) })
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := r.client.Unsubscribe(filter); err != nil {
			log.Debug("unsubscribe failed", "error", err)
		}
	}()

	r.ready("topic-subscriber")

	select {
	case <-enough:
	case <-ctx.Done():
	case <-r.lost:
		return int(received.Load()), r.lostError()
	}

	n := int(received.Load())
	if limit > 0 && n > limit {
		n = limit
	}
	log.Info("subscriber finished", "received", n)
	return n, nil
}

// pause waits for d, returning early with ctx.Err() or the connection-lost
// error. A zero d only checks for those.
func (r *Runner) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.lost:
			return r.lostError()
		default:
			return nil
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.lost:
		return r.lostError()
	}
}
