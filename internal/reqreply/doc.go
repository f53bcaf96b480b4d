// Package reqreply implements a correlated request/reply exchange over an
// asynchronous publish/subscribe transport.
//
// A Requester learns its reply address from the broker, publishes one
// request carrying a fresh correlation ID and that reply address, and
// blocks until the reply with the same correlation ID arrives, the wait
// times out, or the connection is lost. Only one request is outstanding
// at a time.
//
// A Replier is the stateless counterpart: it answers every well-formed
// request on the request channel with one reply, published to the
// request's replyTo address and carrying the request's correlation ID.
//
// # Concurrency
//
// Transport callbacks never touch Requester state. They post events to a
// channel drained by a single goroutine, which owns the outstanding
// request and completes one-shot futures. Callers block on those futures
// together with a timer and their context, so every wait is bounded.
//
// # Wire format
//
//	{"correlationId":"abc-123","replyTo":"reply/abc","message":"Sample Request"}
//	{"correlationId":"abc-123","message":"Sample Response"}
//
// # Usage
//
//	req, err := reqreply.NewRequester(reqreply.Options{Transport: client})
//	if err != nil {
//	    return err
//	}
//	defer req.Close()
//	client.SetOnDisconnect(req.ConnectionLost)
//
//	reply, err := req.Request(ctx, "T/GettingStarted/request", "Sample Request")
package reqreply
