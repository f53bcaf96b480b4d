package samples

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/nerrad567/mqtt-samples/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-samples/internal/infrastructure/logging"
	"github.com/nerrad567/mqtt-samples/internal/infrastructure/mqtt"
)

// Client is the connected MQTT client a sample runs over.
// *mqtt.Client implements it.
type Client interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishConfirmed(ctx context.Context, topic string, payload []byte, qos byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	SubscribeGranted(topic string, qos byte, handler mqtt.MessageHandler) (byte, error)
	Unsubscribe(topic string) error
	ClientID() string
	SetOnDisconnect(callback func(err error))
}

// Runner runs samples over one client.
//
// It installs itself as the client's disconnect callback so every sample
// can stop when the connection is lost.
type Runner struct {
	client Client
	cfg    *config.Config
	logger *logging.Logger

	lostOnce sync.Once
	lost     chan struct{}
	lostErr  error

	mu        sync.Mutex
	lostHooks []func(error)
	onReady   func(sample string)
}

// NewRunner creates a Runner for client using cfg.
func NewRunner(client Client, cfg *config.Config, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}

	r := &Runner{
		client: client,
		cfg:    cfg,
		logger: logger,
		lost:   make(chan struct{}),
	}
	client.SetOnDisconnect(r.connectionLost)

	return r
}

// SetOnReady registers a callback run once a long-running sample has
// subscribed and is waiting for messages.
func (r *Runner) SetOnReady(fn func(sample string)) {
	r.mu.Lock()
	r.onReady = fn
	r.mu.Unlock()
}

// Lost is closed when the connection has been lost.
func (r *Runner) Lost() <-chan struct{} {
	return r.lost
}

func (r *Runner) ready(sample string) {
	r.mu.Lock()
	fn := r.onReady
	r.mu.Unlock()

	r.logger.Info("waiting for messages", "sample", sample)
	if fn != nil {
		fn(sample)
	}
}

// onLost registers fn to run when the connection is lost. It returns a
// function that unregisters it.
func (r *Runner) onLost(fn func(error)) func() {
	r.mu.Lock()
	r.lostHooks = append(r.lostHooks, fn)
	idx := len(r.lostHooks) - 1
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		r.lostHooks[idx] = nil
		r.mu.Unlock()
	}
}

// connectionLost is the client's disconnect callback.
func (r *Runner) connectionLost(cause error) {
	r.lostOnce.Do(func() {
		r.lostErr = ErrConnectionLost
		if cause != nil {
			r.lostErr = fmt.Errorf("%w: %w", ErrConnectionLost, cause)
		}
		close(r.lost)
	})

	r.mu.Lock()
	hooks := slices.Clone(r.lostHooks)
	r.mu.Unlock()

	for _, fn := range hooks {
		if fn != nil {
			fn(cause)
		}
	}
}

// lostError returns the connection-lost error. Only valid once Lost is closed.
func (r *Runner) lostError() error {
	<-r.lost
	return r.lostErr
}

func (r *Runner) qos() byte {
	return byte(r.cfg.MQTT.QoS)
}
