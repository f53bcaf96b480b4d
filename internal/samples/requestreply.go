package samples

import (
	"context"

	"github.com/nerrad567/mqtt-samples/internal/reqreply"
)

// BasicRequestor runs one request/reply exchange against the request
// topic and returns the matching reply.
//
// The reply address comes from exchange.reply_topic when set, otherwise
// from the broker's control channel.
func (r *Runner) BasicRequestor(ctx context.Context) (reqreply.Reply, error) {
	log := r.logger.Component("requestor")

	req, err := reqreply.NewRequester(reqreply.Options{
		Transport:           r.client,
		ControlTopic:        r.cfg.Topics.ReplyToControl,
		ReplyTopic:          r.cfg.Exchange.ReplyTopic,
		QoS:                 r.qos(),
		ReplyAddressTimeout: r.cfg.GetReplyAddressTimeout(),
		Timeout:             r.cfg.GetExchangeTimeout(),
		Logger:              log,
	})
	if err != nil {
		return reqreply.Reply{}, err
	}
	defer req.Close()

	unregister := r.onLost(req.ConnectionLost)
	defer unregister()

	// The connection may already be gone before the hook was in place.
	select {
	case <-r.lost:
		req.ConnectionLost(r.lostError())
	default:
	}

	reply, err := req.Request(ctx, r.cfg.Topics.Request, r.cfg.Exchange.RequestMessage)
	if err != nil {
		log.Warn("exchange failed", "state", req.State(), "outcome", req.Outcome(), "error", err)
		return reqreply.Reply{}, err
	}

	log.Info("received a reply",
		"correlation_id", reply.CorrelationID,
		"message", reply.Message,
	)
	return reply, nil
}

// BasicReplier answers requests on the request topic and returns after the
// first reply has been published.
//
// Returns:
//   - reqreply.Request: the request that was answered
//   - error: ErrConnectionLost (wrapped), a subscribe failure, or ctx.Err()
func (r *Runner) BasicReplier(ctx context.Context) (reqreply.Request, error) {
	log := r.logger.Component("replier")

	answered := make(chan reqreply.Request, 1)

	rep, err := reqreply.NewReplier(reqreply.ReplierOptions{
		Transport:          r.client,
		RequestTopic:       r.cfg.Topics.Request,
		QoS:                r.qos(),
		ResponseMessage:    r.cfg.Exchange.ResponseMessage,
		AllowedReplyTopics: r.cfg.Exchange.ReplyAllow,
		OnReply: func(req reqreply.Request, _ reqreply.Reply) {
			select {
			case answered <- req:
			default:
			}
		},
		Logger: log,
	})
	if err != nil {
		return reqreply.Request{}, err
	}

	if err := rep.Start(ctx); err != nil {
		return reqreply.Request{}, err
	}
	defer rep.Stop()

	r.ready("basic-replier")

	select {
	case req := <-answered:
		return req, nil
	case <-ctx.Done():
		return reqreply.Request{}, ctx.Err()
	case <-r.lost:
		return reqreply.Request{}, r.lostError()
	}
}
