package reqreply

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/mqtt-samples/internal/infrastructure/mqtt"
)

const (
	// defaultReplyAddressTimeout bounds AcquireReplyAddress.
	defaultReplyAddressTimeout = 5 * time.Second

	// defaultTimeout bounds the reply wait in Request.
	defaultTimeout = 10 * time.Second

	// eventBufferSize is the capacity of the transport event channel.
	eventBufferSize = 16
)

// Transport is the subset of *mqtt.Client the exchange needs.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Options configures a Requester.
type Options struct {
	// Transport carries requests and replies. Required.
	Transport Transport

	// ControlTopic is where the broker announces the reply address.
	// Defaults to mqtt.TopicReplyToControl.
	ControlTopic string

	// ReplyTopic, when set, is used as the reply address instead of asking
	// the broker for one.
	ReplyTopic string

	// QoS for the control and reply subscriptions and the request publish.
	QoS byte

	// ReplyAddressTimeout bounds AcquireReplyAddress. Defaults to 5s.
	ReplyAddressTimeout time.Duration

	// Timeout bounds the reply wait in Request, and in AwaitReply when it
	// is given a non-positive timeout. Defaults to 10s.
	Timeout time.Duration

	// NewID generates correlation IDs. Defaults to uuid.NewString.
	NewID func() string

	// Logger is optional.
	Logger Logger
}

type eventKind int

const (
	eventAddress eventKind = iota
	eventReply
	eventExpect
	eventLost
)

// event is something the event loop must act on.
type event struct {
	kind    eventKind
	payload []byte
	pending *pending
	err     error
}

// pending is the one outstanding request.
type pending struct {
	correlationID string
	reply         *future[Reply]
}

// Requester performs request/reply exchanges, one at a time.
//
// Thread Safety:
//   - All methods are safe for concurrent use, but only one request may be
//     outstanding; a second SendRequest fails with ErrRequestOutstanding.
type Requester struct {
	transport           Transport
	controlTopic        string
	staticReplyTopic    string
	qos                 byte
	replyAddressTimeout time.Duration
	timeout             time.Duration
	newID               func() string
	logger              Logger

	events            chan event
	address           *future[string]
	acquireOnce       sync.Once
	controlSubscribed atomic.Bool

	stMu    sync.Mutex
	state   State
	outcome Outcome

	// sendMu guards current and replyTopic.
	sendMu     sync.Mutex
	current    *pending
	replyTopic string

	replies atomic.Uint64
	dropped atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

// NewRequester creates a Requester and starts its event loop.
// Close must be called to stop it.
//
// Returns:
//   - *Requester: in StateIdle
//   - error: ErrInvalidOptions (wrapped) if opts cannot be used
func NewRequester(opts Options) (*Requester, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("%w: transport is required", ErrInvalidOptions)
	}
	if opts.ControlTopic == "" {
		opts.ControlTopic = mqtt.TopicReplyToControl
	}
	if err := mqtt.ValidateTopicFilter(opts.ControlTopic); err != nil {
		return nil, fmt.Errorf("%w: control topic: %w", ErrInvalidOptions, err)
	}
	if opts.ReplyTopic != "" {
		if err := mqtt.ValidateTopicName(opts.ReplyTopic); err != nil {
			return nil, fmt.Errorf("%w: reply topic: %w", ErrInvalidOptions, err)
		}
	}
	if opts.QoS > 2 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, mqtt.ErrInvalidQoS)
	}
	if opts.ReplyAddressTimeout <= 0 {
		opts.ReplyAddressTimeout = defaultReplyAddressTimeout
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	r := &Requester{
		transport:           opts.Transport,
		controlTopic:        opts.ControlTopic,
		staticReplyTopic:    opts.ReplyTopic,
		qos:                 opts.QoS,
		replyAddressTimeout: opts.ReplyAddressTimeout,
		timeout:             opts.Timeout,
		newID:               opts.NewID,
		logger:              loggerOrNop(opts.Logger),
		events:              make(chan event, eventBufferSize),
		address:             newFuture[string](),
		done:                make(chan struct{}),
		stopped:             make(chan struct{}),
	}

	go r.run()

	return r, nil
}

// AcquireReplyAddress returns the address replies must be sent to.
//
// The first call subscribes to the control topic and blocks until the
// broker announces an address, the reply-address timeout elapses, the
// connection is lost or ctx is done. Later calls return the same result.
// A static reply topic is returned without touching the transport.
//
// Returns:
//   - string: the reply address
//   - error: ErrNoReplyAddressAssigned (also matching ErrTimeout when
//     nothing was announced in time), ErrConnectionLost, a wrapped
//     mqtt.ErrSubscribeFailed, ErrClosed, or ctx.Err()
func (r *Requester) AcquireReplyAddress(ctx context.Context) (string, error) {
	if r.closed.Load() {
		return "", ErrClosed
	}

	r.acquireOnce.Do(r.startAcquire)

	waitCtx, cancel := context.WithTimeout(ctx, r.replyAddressTimeout)
	defer cancel()

	if _, err := r.address.Wait(waitCtx); err != nil && !r.address.isDone() {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		r.address.resolve("", fmt.Errorf("%w: %w: nothing announced on %s within %v",
			ErrNoReplyAddressAssigned, ErrTimeout, r.controlTopic, r.replyAddressTimeout))
	}

	addr, err := r.address.result()
	if err != nil {
		r.transition(StateResolved, OutcomeAborted)
		return "", err
	}

	r.transition(StateReplyAddressAcquired, OutcomeNone, StateAwaitingReplyAddress)
	return addr, nil
}

// startAcquire subscribes to the control topic, or resolves the address
// straight away when it is static.
func (r *Requester) startAcquire() {
	if !r.transition(StateAwaitingReplyAddress, OutcomeNone, StateIdle) {
		return
	}

	if r.staticReplyTopic != "" {
		r.address.resolve(r.staticReplyTopic, nil)
		return
	}

	err := r.transport.Subscribe(r.controlTopic, r.qos, func(_ string, payload []byte) error {
		r.post(event{kind: eventAddress, payload: payload})
		return nil
	})
	if err != nil {
		r.address.resolve("", fmt.Errorf("subscribing to %s: %w", r.controlTopic, err))
		return
	}
	r.controlSubscribed.Store(true)
	r.logger.Debug("waiting for reply address", "control_topic", r.controlTopic)
}

// SendRequest publishes message to topic as a new request and returns
// its correlation ID.
//
// The reply address must have been acquired. The reply address is
// subscribed to before the first request is published, so the reply
// cannot be missed.
//
// Returns:
//   - string: the correlation ID the reply must carry
//   - error: ErrNoReplyAddress, ErrRequestOutstanding, ErrConnectionLost,
//     ErrClosed, a wrapped mqtt.ErrInvalidTopic, mqtt.ErrSubscribeFailed
//     or mqtt.ErrPublishFailed, or ctx.Err()
func (r *Requester) SendRequest(ctx context.Context, topic, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r.closed.Load() {
		return "", ErrClosed
	}
	if err := mqtt.ValidateTopicName(topic); err != nil {
		return "", fmt.Errorf("request topic: %w", err)
	}

	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	if r.current != nil {
		return "", ErrRequestOutstanding
	}
	if _, outcome := r.snapshot(); outcome == OutcomeConnectionLost {
		return "", ErrConnectionLost
	}
	if !r.address.isDone() {
		return "", ErrNoReplyAddress
	}
	replyTo, err := r.address.result()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoReplyAddress, err)
	}

	if err := r.subscribeReplies(replyTo); err != nil {
		return "", err
	}

	req := Request{
		CorrelationID: r.newID(),
		ReplyTo:       replyTo,
		Message:       message,
	}
	payload, err := EncodeRequest(req)
	if err != nil {
		return "", err
	}

	p := &pending{
		correlationID: req.CorrelationID,
		reply:         newFuture[Reply](),
	}
	// The event loop must know the ID before any reply can arrive.
	if !r.post(event{kind: eventExpect, pending: p}) {
		return "", ErrClosed
	}

	if err := r.transport.Publish(topic, payload, r.qos, false); err != nil {
		p.reply.resolve(Reply{}, err)
		return "", fmt.Errorf("publishing request %s: %w", req.CorrelationID, err)
	}

	r.current = p
	r.transition(StateRequestSent, OutcomeNone)
	r.logger.Info("request sent",
		"correlation_id", req.CorrelationID,
		"topic", topic,
		"reply_to", replyTo,
	)

	return req.CorrelationID, nil
}

// subscribeReplies subscribes to the reply address once per Requester.
// Caller must hold sendMu.
func (r *Requester) subscribeReplies(replyTo string) error {
	if r.replyTopic != "" {
		return nil
	}

	err := r.transport.Subscribe(replyTo, r.qos, func(_ string, payload []byte) error {
		r.post(event{kind: eventReply, payload: payload})
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to reply address %s: %w", replyTo, err)
	}

	r.replyTopic = replyTo
	return nil
}

// AwaitReply blocks until the reply to the outstanding request arrives.
//
// A non-positive timeout uses the configured Timeout. Malformed replies
// and replies for other correlation IDs are dropped while waiting.
//
// Returns:
//   - Reply: the reply whose correlation ID matches the request
//   - error: ErrNoRequest, ErrTimeout, ErrConnectionLost, ErrClosed, or
//     ctx.Err()
func (r *Requester) AwaitReply(ctx context.Context, timeout time.Duration) (Reply, error) {
	r.sendMu.Lock()
	p := r.current
	r.sendMu.Unlock()

	if p == nil {
		return Reply{}, ErrNoRequest
	}
	if timeout <= 0 {
		timeout = r.timeout
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := p.reply.Wait(waitCtx); err != nil && !p.reply.isDone() {
		// Settle the future so a reply racing the deadline cannot win later.
		if ctx.Err() != nil {
			p.reply.resolve(Reply{}, ctx.Err())
		} else {
			p.reply.resolve(Reply{}, fmt.Errorf("%w: no reply to %s within %v", ErrTimeout, p.correlationID, timeout))
		}
	}
	reply, err := p.reply.result()

	r.sendMu.Lock()
	if r.current == p {
		r.current = nil
	}
	r.sendMu.Unlock()

	switch {
	case err == nil:
		r.transition(StateResolved, OutcomeSuccess)
		r.logger.Info("reply received", "correlation_id", reply.CorrelationID)
	case errors.Is(err, ErrTimeout):
		r.transition(StateResolved, OutcomeTimeout)
		r.logger.Warn("no reply received", "correlation_id", p.correlationID, "timeout", timeout)
	case errors.Is(err, ErrConnectionLost):
		// Recorded by the event loop.
	default:
		r.transition(StateResolved, OutcomeAborted)
	}

	return reply, err
}

// Request runs a whole exchange: acquire the reply address if needed,
// send message to topic, and wait up to the configured Timeout.
func (r *Requester) Request(ctx context.Context, topic, message string) (Reply, error) {
	if _, err := r.AcquireReplyAddress(ctx); err != nil {
		return Reply{}, err
	}
	if _, err := r.SendRequest(ctx, topic, message); err != nil {
		return Reply{}, err
	}
	return r.AwaitReply(ctx, r.timeout)
}

// ConnectionLost releases every waiter with ErrConnectionLost. Wire it to
// the transport's connection-lost callback. The Requester cannot be used
// for further exchanges afterwards.
func (r *Requester) ConnectionLost(cause error) {
	r.post(event{kind: eventLost, err: cause})
}

// State returns the current exchange state.
func (r *Requester) State() State {
	s, _ := r.snapshot()
	return s
}

// Outcome returns how the last exchange ended, or OutcomeNone.
func (r *Requester) Outcome() Outcome {
	_, o := r.snapshot()
	return o
}

// ReplyAddress returns the acquired reply address, if any.
func (r *Requester) ReplyAddress() (string, bool) {
	if !r.address.isDone() {
		return "", false
	}
	addr, err := r.address.result()
	return addr, err == nil
}

// Stats returns reply counters. Handled counts matched replies; Dropped
// counts malformed, mismatched and late ones.
func (r *Requester) Stats() Stats {
	return Stats{
		Handled: r.replies.Load(),
		Dropped: r.dropped.Load(),
	}
}

// Close unsubscribes from the control and reply topics, releases any
// waiter with ErrClosed and stops the event loop. It is safe to call more
// than once.
func (r *Requester) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)

		r.sendMu.Lock()
		replyTopic := r.replyTopic
		r.sendMu.Unlock()

		if r.controlSubscribed.Load() {
			r.unsubscribe(r.controlTopic)
		}
		if replyTopic != "" {
			r.unsubscribe(replyTopic)
		}

		close(r.done)
		<-r.stopped
	})
	return nil
}

func (r *Requester) unsubscribe(topic string) {
	if err := r.transport.Unsubscribe(topic); err != nil {
		r.logger.Debug("unsubscribe failed", "topic", topic, "error", err)
	}
}

// post hands ev to the event loop. It reports false once the Requester
// is closed.
func (r *Requester) post(ev event) bool {
	select {
	case r.events <- ev:
		return true
	case <-r.done:
		return false
	}
}

// run is the event loop. It alone tracks the outstanding request.
func (r *Requester) run() {
	defer close(r.stopped)

	var (
		current *pending
		lost    error
	)

	for {
		select {
		case <-r.done:
			if current != nil {
				current.reply.resolve(Reply{}, ErrClosed)
			}
			r.address.resolve("", ErrClosed)
			return

		case ev := <-r.events:
			switch ev.kind {
			case eventAddress:
				r.handleAddress(ev.payload)
			case eventExpect:
				current = ev.pending
				if lost != nil {
					current.reply.resolve(Reply{}, lost)
					current = nil
				}
			case eventReply:
				current = r.handleReply(current, ev.payload)
			case eventLost:
				lost = r.handleLost(current, ev.err)
				current = nil
			}
		}
	}
}

// handleAddress resolves the reply address from an announcement.
func (r *Requester) handleAddress(payload []byte) {
	addr := strings.TrimSpace(string(payload))

	var err error
	if addr == "" {
		err = fmt.Errorf("%w: empty announcement on %s", ErrNoReplyAddressAssigned, r.controlTopic)
	} else if verr := mqtt.ValidateTopicName(addr); verr != nil {
		err = fmt.Errorf("%w: %w", ErrNoReplyAddressAssigned, verr)
	}
	if err != nil {
		addr = ""
	}

	if !r.address.resolve(addr, err) {
		r.logger.Debug("ignoring repeated reply address announcement", "payload", string(payload))
		return
	}

	if err != nil {
		r.logger.Error("reply address rejected", "error", err)
		return
	}
	r.logger.Info("reply address assigned", "reply_to", addr)
}

// handleReply matches a reply against the outstanding request and returns
// the request still outstanding afterwards.
func (r *Requester) handleReply(current *pending, payload []byte) *pending {
	reply, err := DecodeReply(payload)
	if err != nil {
		r.dropped.Add(1)
		r.logger.Warn("dropping malformed reply", "error", err)
		return current
	}

	if current == nil {
		r.dropped.Add(1)
		r.logger.Warn("dropping reply with no request outstanding", "correlation_id", reply.CorrelationID)
		return nil
	}

	if reply.CorrelationID != current.correlationID {
		r.dropped.Add(1)
		r.logger.Warn("dropping reply",
			"error", fmt.Errorf("%w: got %s, want %s", ErrCorrelationMismatch, reply.CorrelationID, current.correlationID))
		return current
	}

	if !current.reply.resolve(reply, nil) {
		r.dropped.Add(1)
		r.logger.Warn("dropping late reply", "correlation_id", reply.CorrelationID)
		return nil
	}

	r.replies.Add(1)
	return nil
}

// handleLost marks the Requester as disconnected and releases waiters.
func (r *Requester) handleLost(current *pending, cause error) error {
	err := ErrConnectionLost
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrConnectionLost, cause)
	}

	r.transition(StateResolved, OutcomeConnectionLost)
	r.address.resolve("", err)
	if current != nil {
		current.reply.resolve(Reply{}, err)
	}

	r.logger.Warn("connection lost, releasing waiters", "error", cause)
	return err
}

// transition moves to (to, outcome) unless the connection has been lost.
// With from given, the move only happens from one of those states.
func (r *Requester) transition(to State, outcome Outcome, from ...State) bool {
	r.stMu.Lock()
	defer r.stMu.Unlock()

	if r.state == StateResolved && r.outcome == OutcomeConnectionLost {
		return false
	}
	if len(from) > 0 && !slices.Contains(from, r.state) {
		return false
	}

	r.state, r.outcome = to, outcome
	return true
}

func (r *Requester) snapshot() (State, Outcome) {
	r.stMu.Lock()
	defer r.stMu.Unlock()
	return r.state, r.outcome
}
