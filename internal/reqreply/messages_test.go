package reqreply

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_RoundTrip(t *testing.T) {
	want := Request{
		CorrelationID: "abc-123",
		ReplyTo:       "reply/abc",
		Message:       "Sample Request",
	}

	payload, err := EncodeRequest(want)
	require.NoError(t, err)

	got, err := DecodeRequest(payload)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRequest_WireFormat(t *testing.T) {
	payload, err := EncodeRequest(Request{CorrelationID: "abc-123", ReplyTo: "reply/abc", Message: "Sample Request"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"correlationId":"abc-123","replyTo":"reply/abc","message":"Sample Request"}`, string(payload))
}

func TestReply_WireFormatOmitsReplyTo(t *testing.T) {
	payload, err := EncodeReply(Reply{CorrelationID: "abc-123", Message: "Sample Response"})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(payload, &fields))
	assert.NotContains(t, fields, "replyTo")
	assert.Equal(t, "abc-123", fields["correlationId"])
	assert.Equal(t, "Sample Response", fields["message"])
}

func TestDecodeRequest_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "correlationId=abc-123"},
		{"empty", ""},
		{"null", "null"},
		{"array", `["abc-123"]`},
		{"missing correlation id", `{"replyTo":"reply/abc","message":"hi"}`},
		{"missing reply to", `{"correlationId":"abc-123","message":"hi"}`},
		{"wrong type", `{"correlationId":123,"replyTo":"reply/abc"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest([]byte(tt.payload))
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestDecodeReply(t *testing.T) {
	reply, err := DecodeReply([]byte(`{"correlationId":"abc-123","message":"Sample Response"}`))
	require.NoError(t, err)
	assert.Equal(t, Reply{CorrelationID: "abc-123", Message: "Sample Response"}, reply)

	// A replyTo field in a reply is ignored.
	reply, err = DecodeReply([]byte(`{"correlationId":"abc-123","replyTo":"x","message":""}`))
	require.NoError(t, err)
	assert.Equal(t, "abc-123", reply.CorrelationID)

	for _, payload := range []string{"{", `{"message":"no id"}`, "null"} {
		_, err := DecodeReply([]byte(payload))
		assert.ErrorIs(t, err, ErrMalformedPayload, "payload %q", payload)
	}
}

func TestEncode_RequiresFields(t *testing.T) {
	_, err := EncodeRequest(Request{ReplyTo: "reply/abc"})
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = EncodeRequest(Request{CorrelationID: "abc-123"})
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = EncodeReply(Reply{Message: "no id"})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
