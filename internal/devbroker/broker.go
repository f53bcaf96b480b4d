package devbroker

import (
	"fmt"
	"net"
	"sync"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/nerrad567/mqtt-samples/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-samples/internal/infrastructure/logging"
)

// ReplyToControlTopic is the topic a client subscribes to in order to be
// told its reply address.
const ReplyToControlTopic = "$SYS/client/reply-to"

// listenerID names the broker's single TCP listener.
const listenerID = "devbroker-tcp"

// Broker is an embedded MQTT broker.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Broker struct {
	server *mochi.Server
	cfg    config.DevBrokerConfig
	logger *logging.Logger
	hook   *replyToHook

	mu      sync.Mutex
	addr    string
	started bool

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a broker from cfg. The listener is not bound until Start.
//
// An address with port 0 ("127.0.0.1:0") is resolved to a free port on
// Start; Addr reports the port chosen.
//
// Parameters:
//   - cfg: listen address and reply-address prefix
//   - logger: receives broker and hook logs; nil discards them
//
// Returns:
//   - *Broker: ready to Start
//   - error: ErrInvalidConfig (wrapped) if cfg cannot be used
func New(cfg config.DevBrokerConfig, logger *logging.Logger) (*Broker, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidConfig)
	}
	if _, _, err := net.SplitHostPort(cfg.Address); err != nil {
		return nil, fmt.Errorf("%w: address %q: %w", ErrInvalidConfig, cfg.Address, err)
	}
	if cfg.ReplyPrefix == "" {
		return nil, fmt.Errorf("%w: reply prefix is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.Component("devbroker")

	server := mochi.New(&mochi.Options{
		Logger: logger.Logger,
	})

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("adding allow hook: %w", err)
	}

	hook := &replyToHook{prefix: cfg.ReplyPrefix, logger: logger}
	if err := server.AddHook(hook, nil); err != nil {
		return nil, fmt.Errorf("adding reply-to hook: %w", err)
	}

	return &Broker{
		server: server,
		cfg:    cfg,
		logger: logger,
		hook:   hook,
		addr:   cfg.Address,
		done:   make(chan struct{}),
	}, nil
}

// Start binds the TCP listener and begins accepting clients. Clients may
// connect as soon as Start returns.
func (b *Broker) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return ErrAlreadyStarted
	}

	addr, err := resolveAddress(b.cfg.Address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrListenFailed, err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      listenerID,
		Address: addr,
	})
	if err := b.server.AddListener(tcp); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrListenFailed, addr, err)
	}

	// Serve starts the listener goroutines and returns; Close must not
	// run before it has.
	if err := b.server.Serve(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrListenFailed, addr, err)
	}

	b.addr = addr
	b.started = true
	b.logger.Info("broker listening", "address", addr, "reply_prefix", b.cfg.ReplyPrefix)

	return nil
}

// Close disconnects every client and stops the listener. It is safe to
// call more than once.
func (b *Broker) Close() error {
	var err error
	b.stopOnce.Do(func() {
		err = b.server.Close()
		close(b.done)
		b.logger.Info("broker stopped")
	})
	return err
}

// Done is closed once the broker has been closed.
func (b *Broker) Done() <-chan struct{} {
	return b.done
}

// Addr returns the host:port the broker listens on.
func (b *Broker) Addr() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addr
}

// URL returns the broker URL a paho client should dial.
func (b *Broker) URL() string {
	return "tcp://" + b.Addr()
}

// ReplyAddress returns the reply address the broker assigns to clientID.
func (b *Broker) ReplyAddress(clientID string) string {
	return b.cfg.ReplyPrefix + "/" + clientID
}

// AssignedCount returns how many reply addresses have been handed out.
func (b *Broker) AssignedCount() int64 {
	return b.hook.assigned.Load()
}

// resolveAddress replaces port 0 with a currently free port.
func resolveAddress(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	if port != "0" {
		return addr, nil
	}

	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return "", err
	}
	defer l.Close()

	return l.Addr().String(), nil
}
