package kafkasource_test

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/illmade-knight/go-pubsubbridge/pkg/bridge"
	"github.com/illmade-knight/go-pubsubbridge/pkg/kafkasource"
	"github.com/illmade-knight/go-pubsubbridge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFromMessage(t *testing.T) {
	t.Run("Keyed message", func(t *testing.T) {
		msg := &sarama.ConsumerMessage{Topic: "orders", Partition: 2, Offset: 41, Key: []byte("k1"), Value: []byte("payload")}

		rec := kafkasource.RecordFromMessage(msg)

		assert.Equal(t, "orders", rec.Topic)
		assert.Equal(t, int32(2), rec.Partition)
		assert.Equal(t, int64(41), rec.Offset)
		require.NotNil(t, rec.Key)
		assert.Equal(t, "k1", *rec.Key)
		assert.Equal(t, types.ByteStringSchema(), rec.ValueSchema)

		out, err := bridge.Translate(rec)
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), out.Data)
		assert.Equal(t, "k1", out.Attributes[bridge.AttributeKey])
		assert.Equal(t, "2", out.Attributes[bridge.AttributePartition])
	})

	t.Run("Unkeyed message", func(t *testing.T) {
		rec := kafkasource.RecordFromMessage(&sarama.ConsumerMessage{Topic: "orders", Value: []byte("v")})
		assert.Nil(t, rec.Key)
	})

	t.Run("Empty key is still a key", func(t *testing.T) {
		rec := kafkasource.RecordFromMessage(&sarama.ConsumerMessage{Topic: "orders", Key: []byte{}, Value: []byte("v")})
		require.NotNil(t, rec.Key)
		assert.Equal(t, "", *rec.Key)
	})

	t.Run("Tombstone fails validation", func(t *testing.T) {
		rec := kafkasource.RecordFromMessage(&sarama.ConsumerMessage{Topic: "orders", Key: []byte("k")})
		assert.Equal(t, types.SchemaNull, rec.ValueSchema.Type)

		var vErr *bridge.ValidationError
		assert.ErrorAs(t, bridge.Validate(rec), &vErr)
	})
}
