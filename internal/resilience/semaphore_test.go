package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewSemaphore_InvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -5} {
		if got := NewSemaphore(capacity).Capacity(); got != 1 {
			t.Errorf("NewSemaphore(%d).Capacity() = %d, want 1", capacity, got)
		}
	}
}

func TestSemaphore_TryAcquire(t *testing.T) {
	s := NewSemaphore(2)

	if err := s.TryAcquire(); err != nil {
		t.Fatalf("TryAcquire() = %v, want nil", err)
	}
	if err := s.TryAcquire(); err != nil {
		t.Fatalf("TryAcquire() = %v, want nil", err)
	}
	if err := s.TryAcquire(); !errors.Is(err, ErrSemaphoreFull) {
		t.Fatalf("TryAcquire() on full semaphore = %v, want ErrSemaphoreFull", err)
	}
	if s.InUse() != 2 {
		t.Errorf("InUse() = %d, want 2", s.InUse())
	}

	s.Release()
	if s.InUse() != 1 {
		t.Errorf("InUse() after release = %d, want 1", s.InUse())
	}
}

func TestSemaphore_ReleaseWithoutAcquire(t *testing.T) {
	s := NewSemaphore(1)
	s.Release()
	if s.InUse() != 0 {
		t.Errorf("InUse() = %d, want 0", s.InUse())
	}
}

func TestSemaphore_AcquireHonorsContext(t *testing.T) {
	s := NewSemaphore(1)
	if err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire() on full semaphore = %v, want deadline exceeded", err)
	}
}

func TestSemaphore_BoundsConcurrency(t *testing.T) {
	s := NewSemaphore(3)
	var (
		wg      sync.WaitGroup
		current atomic.Int32
		peak    atomic.Int32
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Acquire(context.Background()); err != nil {
				t.Error(err)
				return
			}
			defer s.Release()

			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			current.Add(-1)
		}()
	}
	wg.Wait()

	if peak.Load() > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak.Load())
	}
	if s.InUse() != 0 {
		t.Errorf("InUse() = %d after all releases, want 0", s.InUse())
	}
}
