package kafkasource

import (
	"github.com/IBM/sarama"
	"github.com/illmade-knight/go-pubsubbridge/pkg/types"
)

// RecordFromMessage converts a consumed Kafka message into an inbound record.
// Kafka values are raw bytes, so any present value is tagged with the byte
// string schema; a tombstone (nil value) is tagged as null and will be
// rejected by validation.
func RecordFromMessage(msg *sarama.ConsumerMessage) types.InboundRecord {
	rec := types.InboundRecord{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Value:     msg.Value,
	}
	if msg.Key != nil {
		rec.Key = types.StringKey(string(msg.Key))
	}
	if msg.Value == nil {
		rec.ValueSchema = types.Schema{Type: types.SchemaNull}
	} else {
		rec.ValueSchema = types.ByteStringSchema()
	}
	return rec
}
