package index

import (
	"context"
	"time"
)

// Slots is a counting semaphore bounding how many sessions a backend hands
// out at once. Backends without a native connection pool use it to honor the
// pool size and acquire timeout.
type Slots struct {
	ch      chan struct{}
	timeout time.Duration
}

// NewSlots creates a semaphore with size slots. size < 1 is treated as 1 and
// timeout <= 0 as DefaultAcquireTimeout.
func NewSlots(size int, timeout time.Duration) *Slots {
	if size < 1 {
		size = 1
	}
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}
	return &Slots{
		ch:      make(chan struct{}, size),
		timeout: timeout,
	}
}

// Acquire takes a slot, waiting at most the configured timeout.
func (s *Slots) Acquire(ctx context.Context) error {
	select {
	case s.ch <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrPoolExhausted
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (s *Slots) Release() {
	<-s.ch
}

// InUse reports how many slots are taken.
func (s *Slots) InUse() int {
	return len(s.ch)
}

// Size reports the slot capacity.
func (s *Slots) Size() int {
	return cap(s.ch)
}

// Timeout reports the acquire timeout.
func (s *Slots) Timeout() time.Duration {
	return s.timeout
}
