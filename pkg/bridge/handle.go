package bridge

import (
	"context"
	"sync"
)

// PublishHandle is the asynchronous result of one dispatched batch. It is
// resolved exactly once by the sink transport and observed by the Ledger.
type PublishHandle struct {
	id   uint64
	size int
	done chan struct{}
	once sync.Once

	// Written once before done is closed.
	messageIDs []string
	err        error
}

func newPublishHandle(id uint64, size int) *PublishHandle {
	return &PublishHandle{
		id:   id,
		size: size,
		done: make(chan struct{}),
	}
}

// ID identifies the handle within its Ledger.
func (h *PublishHandle) ID() uint64 {
	return h.id
}

// Size is the number of messages in the batch behind this handle.
func (h *PublishHandle) Size() int {
	return h.size
}

// Done is closed once the handle has been resolved.
func (h *PublishHandle) Done() <-chan struct{} {
	return h.done
}

// Get blocks until the handle resolves or ctx is done. On success it returns
// the message IDs assigned by the sink.
func (h *PublishHandle) Get(ctx context.Context) ([]string, error) {
	select {
	case <-h.done:
		return h.messageIDs, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolve records the terminal result. Calls after the first are ignored.
func (h *PublishHandle) resolve(messageIDs []string, err error) {
	h.once.Do(func() {
		h.messageIDs = messageIDs
		h.err = err
		close(h.done)
	})
}
