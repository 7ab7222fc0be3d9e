package bridge

import (
	"fmt"

	"github.com/illmade-knight/go-pubsubbridge/pkg/types"
)

// ValidationError reports an inbound record whose value cannot be published.
// It is local to one record and is never retried: the record will not become
// valid on redelivery.
type ValidationError struct {
	Topic     string
	Partition int32
	Offset    int64
	Schema    types.Schema
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record %s/%d@%d (schema type=%q name=%q): %s",
		e.Topic, e.Partition, e.Offset, e.Schema.Type, e.Schema.Name, e.Reason)
}

// DeliveryError is returned by a flush when at least one batch in its window
// was not acknowledged by the sink. Err is the first failure observed.
type DeliveryError struct {
	Failed int
	Window int
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed for %d of %d batches: %v", e.Failed, e.Window, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// LogicError is an internal invariant violation. It indicates a defect in the
// caller or in this package, never a runtime condition.
type LogicError struct {
	message string
}

func (e *LogicError) Error() string {
	return "bridge logic error: " + e.message
}

func (e *LogicError) Is(target error) bool {
	if t, ok := target.(*LogicError); ok {
		return e.message == t.message
	}
	return false
}

// ErrEmptyBatch is returned when an empty batch is handed to the dispatcher.
var ErrEmptyBatch = &LogicError{message: "dispatch of an empty batch"}
