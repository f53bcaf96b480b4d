package reqreply

import "errors"

// Errors returned by the exchange.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMalformedPayload is returned when a request or reply cannot be
	// decoded or lacks a required field.
	ErrMalformedPayload = errors.New("reqreply: malformed payload")

	// ErrNoReplyAddressAssigned is returned when the broker announces an
	// empty or unusable reply address, or none at all in time.
	ErrNoReplyAddressAssigned = errors.New("reqreply: no reply address assigned")

	// ErrNoReplyAddress is returned when a request is sent before a reply
	// address has been acquired.
	ErrNoReplyAddress = errors.New("reqreply: reply address not acquired")

	// ErrConnectionLost is returned to every waiter once the transport
	// reports that the connection is gone.
	ErrConnectionLost = errors.New("reqreply: connection lost")

	// ErrTimeout is returned when no matching reply arrives in time.
	ErrTimeout = errors.New("reqreply: timed out")

	// ErrRequestOutstanding is returned when a request is sent while the
	// previous one has not been resolved by AwaitReply.
	ErrRequestOutstanding = errors.New("reqreply: request already outstanding")

	// ErrNoRequest is returned by AwaitReply when nothing has been sent.
	ErrNoRequest = errors.New("reqreply: no request outstanding")

	// ErrCorrelationMismatch describes a reply whose correlation ID does not
	// belong to the outstanding request. Such replies are dropped.
	ErrCorrelationMismatch = errors.New("reqreply: correlation id mismatch")

	// ErrReplyNotAllowed is returned when a request's replyTo is not a
	// destination the replier may publish to.
	ErrReplyNotAllowed = errors.New("reqreply: reply destination not allowed")

	// ErrClosed is returned by operations on a closed Requester or Replier.
	ErrClosed = errors.New("reqreply: closed")
)

// ErrInvalidOptions is returned by constructors given unusable options.
var ErrInvalidOptions = errors.New("reqreply: invalid options")
