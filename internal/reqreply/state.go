package reqreply

// State is the phase of a Requester's exchange.
type State int

const (
	// StateIdle is the state of a new Requester.
	StateIdle State = iota

	// StateAwaitingReplyAddress means the control channel has been
	// subscribed and the broker has not yet announced an address.
	StateAwaitingReplyAddress

	// StateReplyAddressAcquired means requests can be sent.
	StateReplyAddressAcquired

	// StateRequestSent means a request is outstanding.
	StateRequestSent

	// StateResolved means the last exchange finished; see Outcome.
	StateResolved
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingReplyAddress:
		return "awaiting_reply_address"
	case StateReplyAddressAcquired:
		return "reply_address_acquired"
	case StateRequestSent:
		return "request_sent"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Outcome is how a resolved exchange ended.
type Outcome int

const (
	// OutcomeNone is reported until the Requester reaches StateResolved.
	OutcomeNone Outcome = iota

	// OutcomeSuccess means the matching reply arrived.
	OutcomeSuccess

	// OutcomeTimeout means no matching reply arrived in time.
	OutcomeTimeout

	// OutcomeConnectionLost means the transport connection went away.
	// It is terminal.
	OutcomeConnectionLost

	// OutcomeAborted means reply-address acquisition failed, which is
	// terminal, or the caller cancelled the wait for a reply.
	OutcomeAborted
)

// String returns the outcome name for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeConnectionLost:
		return "connection_lost"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}
