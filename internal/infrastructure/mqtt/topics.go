package mqtt

import (
	"fmt"
	"strings"
)

// Well-known topics used by the samples.
const (
	// TopicDirectPublish is where the topic publisher sample sends.
	TopicDirectPublish = "solace/samples/mqtt/direct/pub"

	// TopicDirectFilter is the filter the topic subscriber sample uses.
	TopicDirectFilter = "solace/samples/+/direct/#"

	// TopicQueue is the topic the QoS 1 samples share.
	TopicQueue = "Q/tutorial"

	// TopicRequest is the request-intake channel of the request/reply samples.
	TopicRequest = "T/GettingStarted/request"

	// TopicReplyToControl is the reserved channel on which a broker
	// announces a client's reply address once the client subscribes to it.
	TopicReplyToControl = "$SYS/client/reply-to"

	// TopicPrefixStatus is the base for presence topics.
	TopicPrefixStatus = "mqttsamples/status"
)

// maxTopicLength is the MQTT limit on encoded topic strings.
const maxTopicLength = 65535

// Topics provides builders for the topics the samples use.
//
//	topics := mqtt.Topics{}
//	replyTopic := topics.ReplyTo("_reply", "requestor_3f2a9c1d")
//	// Returns: "_reply/requestor_3f2a9c1d"
type Topics struct{}

// DirectPublish returns the topic publisher sample's topic.
func (Topics) DirectPublish() string { return TopicDirectPublish }

// DirectFilter returns the topic subscriber sample's filter.
func (Topics) DirectFilter() string { return TopicDirectFilter }

// Queue returns the topic shared by the QoS 1 producer and consumer.
func (Topics) Queue() string { return TopicQueue }

// Request returns the default request-intake channel.
func (Topics) Request() string { return TopicRequest }

// ReplyToControl returns the reserved reply-address control channel.
func (Topics) ReplyToControl() string { return TopicReplyToControl }

// ReplyTo returns the reply address a broker assigns to a client.
//
// Example: _reply/requestor_3f2a9c1d
func (Topics) ReplyTo(prefix, clientID string) string {
	return fmt.Sprintf("%s/%s", prefix, clientID)
}

// ClientStatus returns the retained presence topic for a client.
//
// Example: mqttsamples/status/publisher_3f2a9c1d
func (Topics) ClientStatus(clientID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixStatus, clientID)
}

// ValidateTopicName checks a topic a message can be published to.
// Names must be non-empty and contain neither wildcards nor NUL.
func ValidateTopicName(topic string) error {
	if err := validateTopicString(topic); err != nil {
		return err
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: %q contains wildcards", ErrInvalidTopic, topic)
	}
	return nil
}

// ValidateTopicFilter checks a subscription filter. "+" must occupy a
// whole level and "#" must occupy the whole last level.
func ValidateTopicFilter(filter string) error {
	if err := validateTopicString(filter); err != nil {
		return err
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case level == "#":
			if i != len(levels)-1 {
				return fmt.Errorf("%w: %q has '#' before the last level", ErrInvalidTopic, filter)
			}
		case level == "+":
		case strings.ContainsAny(level, "+#"):
			return fmt.Errorf("%w: %q has a wildcard inside a level", ErrInvalidTopic, filter)
		}
	}
	return nil
}

func validateTopicString(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidTopic, maxTopicLength)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: contains NUL", ErrInvalidTopic)
	}
	return nil
}

// MatchTopic reports whether topic matches the subscription filter.
//
// "+" matches exactly one level, "#" matches the parent level and any
// number of levels below it. Topics starting with '$' are not matched by
// a filter whose first level is a wildcard.
func MatchTopic(filter, topic string) bool {
	if filter == "" || topic == "" {
		return false
	}

	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")

	if strings.HasPrefix(topic, "$") && (f[0] == "+" || f[0] == "#") {
		return false
	}

	for i, level := range f {
		if level == "#" {
			return true
		}
		if i >= len(t) {
			return false
		}
		if level != "+" && level != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}
