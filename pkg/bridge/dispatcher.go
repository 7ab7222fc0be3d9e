package bridge

import (
	"github.com/rs/zerolog"
)

// Publisher is the sink transport capability. PublishAsync must not block:
// it starts delivery of the batch as a single request and later calls onDone
// exactly once, from any goroutine, with the assigned message IDs or an error.
type Publisher interface {
	PublishAsync(batch Batch, onDone func(messageIDs []string, err error))
	Stop()
}

// Dispatcher fires one asynchronous publish per batch and registers the
// resulting handle with the Ledger.
type Dispatcher struct {
	publisher Publisher
	ledger    *Ledger
	metrics   *Metrics
	logger    zerolog.Logger
}

// NewDispatcher creates a Dispatcher. metrics may be nil.
func NewDispatcher(publisher Publisher, ledger *Ledger, metrics *Metrics, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		ledger:    ledger,
		metrics:   metrics,
		logger:    logger.With().Str("component", "Dispatcher").Logger(),
	}
}

// Dispatch hands the batch to the publisher and returns immediately. Transport
// failures are only reported through the handle. An empty batch is a logic
// error.
func (d *Dispatcher) Dispatch(batch Batch) (*PublishHandle, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}

	h := d.ledger.Register(len(batch))
	d.metrics.batchDispatched(len(batch))
	d.logger.Debug().Uint64("handle_id", h.id).Int("batch_size", len(batch)).Msg("Dispatching batch.")

	d.publisher.PublishAsync(batch, func(messageIDs []string, err error) {
		if err != nil {
			d.metrics.deliveryFailed()
		}
		h.resolve(messageIDs, err)
	})
	return h, nil
}
