package reqreply

import (
	"encoding/json"
	"fmt"
)

// Request is the message a requester publishes to the request channel.
type Request struct {
	CorrelationID string `json:"correlationId"`
	ReplyTo       string `json:"replyTo,omitempty"`
	Message       string `json:"message"`
}

// Reply is the message a replier publishes to the request's replyTo.
type Reply struct {
	CorrelationID string `json:"correlationId"`
	Message       string `json:"message"`
}

// EncodeRequest serialises req. Both CorrelationID and ReplyTo are required.
func EncodeRequest(req Request) ([]byte, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(req)
}

// DecodeRequest parses a request payload.
//
// Returns:
//   - Request: the decoded request
//   - error: ErrMalformedPayload (wrapped) if the payload is not JSON or
//     lacks correlationId or replyTo
func DecodeRequest(payload []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if err := req.validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// EncodeReply serialises reply. CorrelationID is required.
func EncodeReply(reply Reply) ([]byte, error) {
	if err := reply.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(reply)
}

// DecodeReply parses a reply payload.
func DecodeReply(payload []byte) (Reply, error) {
	var reply Reply
	if err := json.Unmarshal(payload, &reply); err != nil {
		return Reply{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if err := reply.validate(); err != nil {
		return Reply{}, err
	}
	return reply, nil
}

func (r Request) validate() error {
	if r.CorrelationID == "" {
		return fmt.Errorf("%w: missing correlationId", ErrMalformedPayload)
	}
	if r.ReplyTo == "" {
		return fmt.Errorf("%w: missing replyTo", ErrMalformedPayload)
	}
	return nil
}

func (r Reply) validate() error {
	if r.CorrelationID == "" {
		return fmt.Errorf("%w: missing correlationId", ErrMalformedPayload)
	}
	return nil
}
