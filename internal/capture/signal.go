package capture

import (
	"context"
	"sync"
)

// Signal is a one-shot readiness notification. Waiters that arrive after it
// resolved return immediately, so a wake-up cannot be lost.
type Signal struct {
	once sync.Once
	done chan struct{}
	err  error
}

func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Fire resolves the signal successfully. Only the first Fire or Fail counts.
func (s *Signal) Fire() { s.resolve(nil) }

// Fail resolves the signal with err.
func (s *Signal) Fail(err error) { s.resolve(err) }

func (s *Signal) resolve(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

func (s *Signal) Done() <-chan struct{} { return s.done }

// Err is nil until the signal resolved.
func (s *Signal) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Wait blocks until the signal resolves or ctx ends.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
