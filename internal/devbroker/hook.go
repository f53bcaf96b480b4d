package devbroker

import (
	"bytes"
	"sync/atomic"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/nerrad567/mqtt-samples/internal/infrastructure/logging"
)

// maxGrantedReason is the highest SUBACK code that still means success.
const maxGrantedReason = 0x02

// replyToHook answers subscriptions to ReplyToControlTopic with the
// subscriber's reply address.
type replyToHook struct {
	mochi.HookBase

	prefix   string
	logger   *logging.Logger
	assigned atomic.Int64
}

// ID returns the hook identifier.
func (h *replyToHook) ID() string {
	return "reply-to"
}

// Provides indicates which hook events this hook handles.
func (h *replyToHook) Provides(b byte) bool {
	return bytes.Contains([]byte{
		mochi.OnSubscribed,
	}, []byte{b})
}

// OnSubscribed sends the reply address to a client that has just been
// granted a subscription to the control topic.
func (h *replyToHook) OnSubscribed(cl *mochi.Client, pk packets.Packet, reasonCodes []byte) {
	for i, sub := range pk.Filters {
		if sub.Filter != ReplyToControlTopic {
			continue
		}
		if i < len(reasonCodes) && reasonCodes[i] > maxGrantedReason {
			continue
		}

		address := h.prefix + "/" + cl.ID
		err := cl.WritePacket(packets.Packet{
			FixedHeader: packets.FixedHeader{
				Type: packets.Publish,
			},
			TopicName: ReplyToControlTopic,
			Payload:   []byte(address),
		})
		if err != nil {
			h.logger.Warn("failed to send reply address", "client", cl.ID, "error", err)
			continue
		}

		h.assigned.Add(1)
		h.logger.Debug("reply address assigned", "client", cl.ID, "reply_to", address)
	}
}
