package loadgen

import (
	"context"

	"github.com/illmade-knight/go-pubsubbridge/pkg/types"
)

// Message is one record to be produced to Kafka.
type Message struct {
	Topic string
	Key   string
	Value []byte
}

// Result is the outcome of one asynchronous send.
type Result struct {
	Message   Message
	Partition int32
	Offset    int64
	Err       error
}

// CompletionFunc is invoked once per published message, on a client-owned
// goroutine.
type CompletionFunc func(Result)

// Client is the interface a producer must implement to be driven by the
// Generator.
type Client interface {
	Connect() error
	Disconnect()
	// Publish enqueues msg and returns without waiting for the ack. An error
	// means the message was never enqueued and onDone will not be called.
	Publish(ctx context.Context, msg Message, onDone CompletionFunc) error
	// Flush blocks until every enqueued message has completed.
	Flush(ctx context.Context) error
}

// Recorder receives the Pub/Sub form of every message that Kafka accepted.
type Recorder interface {
	Write(msg types.OutboundMessage) error
}
