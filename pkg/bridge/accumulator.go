package bridge

import (
	"github.com/illmade-knight/go-pubsubbridge/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultMinBatchSize is used when no positive minimum batch size is configured.
const DefaultMinBatchSize = 5

// Batch is an ordered group of messages submitted to the sink in one call.
// It must not be modified after it has been drained from an Accumulator.
type Batch []types.OutboundMessage

// Accumulator buffers translated messages until the current batch reaches
// the configured minimum size. It holds messages only in memory and applies
// no back-pressure; it is not safe for concurrent use.
type Accumulator struct {
	minBatchSize int
	current      Batch
}

// NewAccumulator creates an Accumulator that reports ready at minBatchSize.
func NewAccumulator(minBatchSize int, logger zerolog.Logger) *Accumulator {
	if minBatchSize <= 0 {
		logger.Warn().Int("provided_min_batch_size", minBatchSize).
			Int("default", DefaultMinBatchSize).
			Msg("Minimum batch size must be positive, using default.")
		minBatchSize = DefaultMinBatchSize
	}
	return &Accumulator{
		minBatchSize: minBatchSize,
		current:      make(Batch, 0, minBatchSize),
	}
}

// Offer translates the record and appends the result to the current batch.
// A record that fails validation leaves the batch untouched.
func (a *Accumulator) Offer(rec types.InboundRecord) error {
	msg, err := Translate(rec)
	if err != nil {
		return err
	}
	a.Add(msg)
	return nil
}

// Add appends an already translated message.
func (a *Accumulator) Add(msg types.OutboundMessage) {
	a.current = append(a.current, msg)
}

// IsReady reports whether the current batch has reached the minimum size.
func (a *Accumulator) IsReady() bool {
	return len(a.current) >= a.minBatchSize
}

// Len returns the number of messages offered since the last drain.
func (a *Accumulator) Len() int {
	return len(a.current)
}

// MinBatchSize returns the effective readiness threshold.
func (a *Accumulator) MinBatchSize() int {
	return a.minBatchSize
}

// Drain detaches the current batch, in offer order, and starts an empty one.
func (a *Accumulator) Drain() Batch {
	batch := a.current
	a.current = make(Batch, 0, a.minBatchSize)
	return batch
}
