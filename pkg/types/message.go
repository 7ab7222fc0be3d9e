package types

import (
	"maps"

	"cloud.google.com/go/pubsub/apiv1/pubsubpb"
)

// OutboundMessage is the sink-side representation of a translated record:
// an opaque payload plus a set of string attributes.
type OutboundMessage struct {
	Data       []byte
	Attributes map[string]string
}

// ToPubsub converts the message into its Pub/Sub wire form.
func (m OutboundMessage) ToPubsub() *pubsubpb.PubsubMessage {
	return &pubsubpb.PubsubMessage{
		Data:       m.Data,
		Attributes: maps.Clone(m.Attributes),
	}
}

// OutboundMessageFromPubsub keeps only the content fields of a Pub/Sub message.
// Service-assigned fields such as the message ID and publish time are dropped
// so that two deliveries of the same content compare equal.
func OutboundMessageFromPubsub(msg *pubsubpb.PubsubMessage) OutboundMessage {
	return OutboundMessage{
		Data:       msg.GetData(),
		Attributes: maps.Clone(msg.GetAttributes()),
	}
}
