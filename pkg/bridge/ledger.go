package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Ledger tracks every handle dispatched since the last flush.
//
// Register and the window capture at the start of Flush share one mutex; the
// wait itself happens outside the lock so dispatches can continue while a
// flush is blocked.
type Ledger struct {
	mu      sync.Mutex
	nextID  uint64
	handles map[uint64]*PublishHandle

	metrics *Metrics
	logger  zerolog.Logger
}

// NewLedger creates an empty Ledger. metrics may be nil.
func NewLedger(metrics *Metrics, logger zerolog.Logger) *Ledger {
	return &Ledger{
		handles: make(map[uint64]*PublishHandle),
		metrics: metrics,
		logger:  logger.With().Str("component", "Ledger").Logger(),
	}
}

// Register creates a handle for a batch of the given size and starts tracking
// it before returning, so a concurrent flush can never miss it.
func (l *Ledger) Register(size int) *PublishHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	h := newPublishHandle(l.nextID, size)
	l.handles[h.id] = h
	l.metrics.addOutstanding(1)
	return h
}

// Outstanding returns the number of handles that the next flush would wait on.
func (l *Ledger) Outstanding() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.handles)
}

// Flush waits for every handle registered before the call and removes them
// from the Ledger. Handles registered while Flush is waiting belong to the
// next flush. If any handle in the window failed, a *DeliveryError carrying
// the first failure observed is returned; successful handles are removed
// either way.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	window := l.handles
	l.handles = make(map[uint64]*PublishHandle)
	l.metrics.addOutstanding(-len(window))
	l.mu.Unlock()

	if len(window) == 0 {
		l.logger.Debug().Msg("Flush window is empty.")
		return nil
	}

	start := time.Now()
	l.logger.Debug().Int("window", len(window)).Msg("Waiting for outstanding publishes.")

	var (
		g      errgroup.Group
		failed atomic.Int64
	)
	for _, h := range window {
		g.Go(func() error {
			ids, err := h.Get(ctx)
			if err != nil {
				failed.Add(1)
				l.logger.Error().Err(err).Uint64("handle_id", h.id).Int("batch_size", h.size).
					Msg("Batch publish failed.")
				return err
			}
			l.logger.Debug().Uint64("handle_id", h.id).Int("message_ids", len(ids)).
				Msg("Batch publish confirmed.")
			return nil
		})
	}
	err := g.Wait()
	l.metrics.observeFlush(time.Since(start), err != nil)

	if err != nil {
		return &DeliveryError{
			Failed: int(failed.Load()),
			Window: len(window),
			Err:    err,
		}
	}
	l.logger.Debug().Int("window", len(window)).Dur("took", time.Since(start)).Msg("Flush complete.")
	return nil
}
