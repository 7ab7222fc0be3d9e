package bridge

import (
	"strconv"

	"github.com/illmade-knight/go-pubsubbridge/pkg/types"
)

// Attribute names attached to every outbound message.
const (
	AttributeKey       = "key"
	AttributeTopic     = "kafka.topic"
	AttributePartition = "kafka.partition"
)

// Validate checks that the record carries a plain byte payload.
func Validate(rec types.InboundRecord) error {
	if rec.ValueSchema.Type != types.SchemaBytes {
		return &ValidationError{
			Topic: rec.Topic, Partition: rec.Partition, Offset: rec.Offset,
			Schema: rec.ValueSchema,
			Reason: "value schema type must be bytes",
		}
	}
	if rec.ValueSchema.Name != types.ByteStringSchemaName {
		return &ValidationError{
			Topic: rec.Topic, Partition: rec.Partition, Offset: rec.Offset,
			Schema: rec.ValueSchema,
			Reason: "value schema name must be " + types.ByteStringSchemaName,
		}
	}
	return nil
}

// Translate converts a validated record into exactly one outbound message.
// It has no side effects.
func Translate(rec types.InboundRecord) (types.OutboundMessage, error) {
	if err := Validate(rec); err != nil {
		return types.OutboundMessage{}, err
	}

	attributes := make(map[string]string, 3)
	if rec.Key != nil {
		attributes[AttributeKey] = *rec.Key
	}
	attributes[AttributeTopic] = rec.Topic
	attributes[AttributePartition] = strconv.FormatInt(int64(rec.Partition), 10)

	return types.OutboundMessage{
		Data:       rec.Value,
		Attributes: attributes,
	}, nil
}
