package reqreply

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/mqtt-samples/internal/infrastructure/mqtt"
)

// defaultResponseMessage is the reply text when no Respond func is set.
const defaultResponseMessage = "Sample Response"

// Stats holds message counters.
type Stats struct {
	// Handled is the number of requests answered (Replier) or replies
	// matched (Requester).
	Handled uint64

	// Dropped is the number of malformed, disallowed or unmatched messages.
	Dropped uint64

	// Failed is the number of replies that could not be built or published.
	Failed uint64
}

// Responder builds the reply text for a request.
type Responder func(ctx context.Context, req Request) (string, error)

// ReplierOptions configures a Replier.
type ReplierOptions struct {
	// Transport carries requests and replies. Required.
	Transport Transport

	// RequestTopic is the channel requests arrive on. Defaults to
	// mqtt.TopicRequest.
	RequestTopic string

	// QoS for the request subscription and reply publishes.
	QoS byte

	// Respond builds reply text. Defaults to a fixed ResponseMessage.
	Respond Responder

	// ResponseMessage is the fixed reply text used without Respond.
	// Defaults to "Sample Response".
	ResponseMessage string

	// AllowedReplyTopics are topic filters a replyTo must match. Empty
	// allows any topic name. Wildcard destinations are always refused.
	AllowedReplyTopics []string

	// OnReply is called after each reply has been published.
	OnReply func(req Request, reply Reply)

	// Logger is optional.
	Logger Logger
}

// Replier answers each request on the request channel with one reply.
// It keeps no per-request state and never retries a failed publish.
//
// Thread Safety:
//   - Requests are handled on the transport's delivery goroutines; all
//     methods are safe for concurrent use.
type Replier struct {
	transport    Transport
	requestTopic string
	qos          byte
	respond      Responder
	allow        []string
	onReply      func(Request, Reply)
	logger       Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool

	handled atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewReplier creates a Replier. It does not subscribe until Start.
func NewReplier(opts ReplierOptions) (*Replier, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("%w: transport is required", ErrInvalidOptions)
	}
	if opts.RequestTopic == "" {
		opts.RequestTopic = mqtt.TopicRequest
	}
	if err := mqtt.ValidateTopicFilter(opts.RequestTopic); err != nil {
		return nil, fmt.Errorf("%w: request topic: %w", ErrInvalidOptions, err)
	}
	if opts.QoS > 2 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, mqtt.ErrInvalidQoS)
	}
	for _, filter := range opts.AllowedReplyTopics {
		if err := mqtt.ValidateTopicFilter(filter); err != nil {
			return nil, fmt.Errorf("%w: reply allowlist: %w", ErrInvalidOptions, err)
		}
	}

	respond := opts.Respond
	if respond == nil {
		message := opts.ResponseMessage
		if message == "" {
			message = defaultResponseMessage
		}
		respond = func(context.Context, Request) (string, error) {
			return message, nil
		}
	}

	return &Replier{
		transport:    opts.Transport,
		requestTopic: opts.RequestTopic,
		qos:          opts.QoS,
		respond:      respond,
		allow:        opts.AllowedReplyTopics,
		onReply:      opts.OnReply,
		logger:       loggerOrNop(opts.Logger),
	}, nil
}

// Start subscribes to the request channel. The Replier stops when ctx is
// cancelled or Stop is called.
//
// Returns:
//   - error: ErrClosed after Stop, or a wrapped mqtt.ErrSubscribeFailed
func (r *Replier) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrClosed
	}
	if r.started {
		return nil
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	if err := r.transport.Subscribe(r.requestTopic, r.qos, r.handle); err != nil {
		r.cancel()
		return fmt.Errorf("subscribing to %s: %w", r.requestTopic, err)
	}
	r.started = true

	go func() {
		<-r.ctx.Done()
		r.Stop()
	}()

	r.logger.Info("replier listening", "topic", r.requestTopic)
	return nil
}

// Stop unsubscribes from the request channel. It is safe to call more
// than once.
func (r *Replier) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	r.stopped = true

	if !r.started {
		return
	}
	r.cancel()

	if err := r.transport.Unsubscribe(r.requestTopic); err != nil {
		r.logger.Debug("unsubscribe failed", "topic", r.requestTopic, "error", err)
	}

	s := r.Stats()
	r.logger.Info("replier stopped", "handled", s.Handled, "dropped", s.Dropped, "failed", s.Failed)
}

// Stats returns the message counters.
func (r *Replier) Stats() Stats {
	return Stats{
		Handled: r.handled.Load(),
		Dropped: r.dropped.Load(),
		Failed:  r.failed.Load(),
	}
}

// handle answers one request. Failures are logged and counted, never
// returned, so the transport keeps delivering.
func (r *Replier) handle(topic string, payload []byte) error {
	req, err := DecodeRequest(payload)
	if err != nil {
		r.dropped.Add(1)
		r.logger.Warn("dropping malformed request", "topic", topic, "error", err)
		return nil
	}

	if err := r.checkReplyTo(req.ReplyTo); err != nil {
		r.dropped.Add(1)
		r.logger.Warn("dropping request", "correlation_id", req.CorrelationID, "error", err)
		return nil
	}

	message, err := r.respond(r.ctx, req)
	if err != nil {
		r.failed.Add(1)
		r.logger.Error("responder failed", "correlation_id", req.CorrelationID, "error", err)
		return nil
	}

	reply := Reply{CorrelationID: req.CorrelationID, Message: message}
	out, err := EncodeReply(reply)
	if err != nil {
		r.failed.Add(1)
		r.logger.Error("encoding reply", "correlation_id", req.CorrelationID, "error", err)
		return nil
	}

	if err := r.transport.Publish(req.ReplyTo, out, r.qos, false); err != nil {
		r.failed.Add(1)
		r.logger.Error("publishing reply", "correlation_id", req.CorrelationID, "reply_to", req.ReplyTo, "error", err)
		return nil
	}

	r.handled.Add(1)
	r.logger.Info("reply sent", "correlation_id", req.CorrelationID, "reply_to", req.ReplyTo)

	if r.onReply != nil {
		r.onReply(req, reply)
	}
	return nil
}

// checkReplyTo decides whether a reply may be published to replyTo.
func (r *Replier) checkReplyTo(replyTo string) error {
	if err := mqtt.ValidateTopicName(replyTo); err != nil {
		return fmt.Errorf("%w: %w", ErrReplyNotAllowed, err)
	}
	if len(r.allow) == 0 {
		return nil
	}
	for _, filter := range r.allow {
		if mqtt.MatchTopic(filter, replyTo) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s matches no allowed filter", ErrReplyNotAllowed, replyTo)
}
