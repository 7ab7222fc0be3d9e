package loadgen

import (
	"sync"
	"sync/atomic"
)

// StopToken is a first-error cancellation token shared by the produce loop
// and every completion handler of one run.
type StopToken struct {
	once    sync.Once
	err     error
	stopped atomic.Bool
}

// Stop trips the token. Only the first call records its error; it reports
// whether this call was the one that tripped it.
func (s *StopToken) Stop(err error) bool {
	tripped := false
	s.once.Do(func() {
		s.err = err
		s.stopped.Store(true)
		tripped = true
	})
	return tripped
}

// Stopped reports whether the token has been tripped.
func (s *StopToken) Stopped() bool {
	return s.stopped.Load()
}

// Err returns the error the token was tripped with, or nil.
func (s *StopToken) Err() error {
	if !s.stopped.Load() {
		return nil
	}
	return s.err
}
