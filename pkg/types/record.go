package types

// SchemaType identifies the wire representation of a record value.
type SchemaType string

const (
	SchemaBytes   SchemaType = "bytes"
	SchemaString  SchemaType = "string"
	SchemaBoolean SchemaType = "boolean"
	SchemaInt64   SchemaType = "int64"
	SchemaStruct  SchemaType = "struct"
	// SchemaNull marks a record without a value (a Kafka tombstone).
	SchemaNull SchemaType = "null"
)

// ByteStringSchemaName is the only schema name accepted for byte payloads.
const ByteStringSchemaName = "com.google.protobuf.ByteString"

// Schema describes how a record value was encoded by the source converter.
type Schema struct {
	Type SchemaType
	Name string
}

// ByteStringSchema is the schema of a plain, opaque byte payload.
func ByteStringSchema() Schema {
	return Schema{Type: SchemaBytes, Name: ByteStringSchemaName}
}

// TopicPartition names one partition of a source topic.
type TopicPartition struct {
	Topic     string
	Partition int32
}

// InboundRecord is one record read from the source log. It is treated as
// immutable once it has been handed to the bridge.
type InboundRecord struct {
	Topic     string
	Partition int32
	Offset    int64
	// Key is nil when the source record carried no key.
	Key         *string
	ValueSchema Schema
	Value       []byte
}

// TopicPartition returns the partition the record was read from.
func (r InboundRecord) TopicPartition() TopicPartition {
	return TopicPartition{Topic: r.Topic, Partition: r.Partition}
}

// StringKey is a small helper for building records with a key.
func StringKey(k string) *string {
	return &k
}
