package bridge

import (
	"context"
	"errors"

	"github.com/illmade-knight/go-pubsubbridge/pkg/types"
	"github.com/rs/zerolog"
)

// SinkTaskConfig holds the per-task batching configuration.
type SinkTaskConfig struct {
	MinBatchSize int
}

// SinkTask is the put/flush surface driven by an offset-commit framework.
// One task instance is driven by a single goroutine; only the resolution of
// publish handles happens elsewhere.
type SinkTask struct {
	accumulator *Accumulator
	dispatcher  *Dispatcher
	ledger      *Ledger
	logger      zerolog.Logger
}

// NewSinkTask wires an accumulator, dispatcher and ledger around publisher.
// The publisher may be shared between tasks and is not stopped by the task.
// metrics may be nil.
func NewSinkTask(publisher Publisher, cfg SinkTaskConfig, metrics *Metrics, logger zerolog.Logger) (*SinkTask, error) {
	if publisher == nil {
		return nil, errors.New("publisher cannot be nil for sink task")
	}
	logger = logger.With().Str("component", "SinkTask").Logger()
	ledger := NewLedger(metrics, logger)
	return &SinkTask{
		accumulator: NewAccumulator(cfg.MinBatchSize, logger),
		dispatcher:  NewDispatcher(publisher, ledger, metrics, logger),
		ledger:      ledger,
		logger:      logger,
	}, nil
}

// Put offers each record to the accumulator and dispatches a batch whenever
// the minimum batch size is reached. The first invalid record stops the call
// and its *ValidationError is returned; records before it have been accepted.
func (t *SinkTask) Put(_ context.Context, records []types.InboundRecord) error {
	for _, rec := range records {
		if err := t.accumulator.Offer(rec); err != nil {
			return err
		}
		if t.accumulator.IsReady() {
			if _, err := t.dispatcher.Dispatch(t.accumulator.Drain()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush publishes whatever is buffered, then blocks until every batch
// dispatched so far has resolved. The offsets are not committed here: the
// caller may commit them only when Flush returns nil.
func (t *SinkTask) Flush(ctx context.Context, offsets map[types.TopicPartition]int64) error {
	if t.accumulator.Len() > 0 {
		if _, err := t.dispatcher.Dispatch(t.accumulator.Drain()); err != nil {
			return err
		}
	}

	err := t.ledger.Flush(ctx)
	if err != nil {
		t.logger.Error().Err(err).Int("partitions", len(offsets)).Msg("Flush failed, offsets must not be committed.")
		return err
	}
	for tp, offset := range offsets {
		t.logger.Debug().Str("topic", tp.Topic).Int32("partition", tp.Partition).Int64("offset", offset).
			Msg("Records up to offset are durable in Pub/Sub.")
	}
	return nil
}

// Buffered returns the number of messages waiting for the next dispatch.
func (t *SinkTask) Buffered() int {
	return t.accumulator.Len()
}

// Outstanding returns the number of dispatched batches awaiting a flush.
func (t *SinkTask) Outstanding() int {
	return t.ledger.Outstanding()
}

// Stop abandons the task. Buffered messages and unflushed batches are
// dropped; their offsets were never committed, so they will be redelivered.
func (t *SinkTask) Stop() {
	buffered, outstanding := t.accumulator.Len(), t.ledger.Outstanding()
	if buffered > 0 || outstanding > 0 {
		t.logger.Warn().Int("buffered", buffered).Int("outstanding_batches", outstanding).
			Msg("Stopping with unflushed messages, they will be redelivered.")
	}
}
