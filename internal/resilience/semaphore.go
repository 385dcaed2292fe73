package resilience

import (
	"context"
	"errors"
)

// ErrSemaphoreFull is returned by TryAcquire when every permit is taken.
var ErrSemaphoreFull = errors.New("semaphore is full")

// Semaphore bounds the number of concurrent calls to a backend. Waiters are
// served in the order the runtime hands out channel slots.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore creates a semaphore with the given number of permits.
func NewSemaphore(capacity int) *Semaphore {
	if capacity <= 0 {
		capacity = 1
	}
	return &Semaphore{slots: make(chan struct{}, capacity)}
}

// TryAcquire takes a permit without blocking.
func (s *Semaphore) TryAcquire() error {
	select {
	case s.slots <- struct{}{}:
		return nil
	default:
		return ErrSemaphoreFull
	}
}

// Acquire blocks until a permit is free or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit. Releasing more than was acquired is a no-op.
func (s *Semaphore) Release() {
	select {
	case <-s.slots:
	default:
	}
}

// InUse returns the number of permits currently held.
func (s *Semaphore) InUse() int {
	return len(s.slots)
}

// Capacity returns the total number of permits.
func (s *Semaphore) Capacity() int {
	return cap(s.slots)
}
