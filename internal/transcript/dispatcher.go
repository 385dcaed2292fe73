// Package transcript persists turn records outside the request path.
//
// The pipeline hands every completed turn to a Dispatcher, which queues it and
// fans it out to the configured sinks from background workers. A full queue
// drops records rather than slowing down conversations.
package transcript

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/blueberrycongee/supportdesk/internal/metrics"
	"github.com/blueberrycongee/supportdesk/pkg/types"
)

// Sink stores turn records.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec types.TurnRecord) error
	Close(ctx context.Context) error
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
}

// DefaultDispatcherConfig returns default settings.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:    1024,
		Workers:      2,
		WriteTimeout: 5 * time.Second,
	}
}

// Dispatcher delivers turn records to sinks asynchronously.
type Dispatcher struct {
	cfg    DispatcherConfig
	sinks  []Sink
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan types.TurnRecord
	wg     sync.WaitGroup
}

// NewDispatcher starts the workers. With no sinks every record is discarded.
func NewDispatcher(cfg DispatcherConfig, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		cfg:    cfg,
		sinks:  sinks,
		logger: logger,
		queue:  make(chan types.TurnRecord, cfg.QueueSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Emit queues rec without blocking. It returns false if the record was dropped.
func (d *Dispatcher) Emit(rec types.TurnRecord) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed || len(d.sinks) == 0 {
		return false
	}
	select {
	case d.queue <- rec:
		return true
	default:
		metrics.TranscriptDropped.Inc()
		return false
	}
}

// Pending returns the number of queued records.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for rec := range d.queue {
		d.deliver(rec)
	}
}

func (d *Dispatcher) deliver(rec types.TurnRecord) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.WriteTimeout)
		err := sink.Write(ctx, rec)
		cancel()

		metrics.RecordTranscript(sink.Name(), err)
		if err != nil {
			d.logger.Warn("transcript write failed",
				"sink", sink.Name(),
				"session_id", rec.SessionID,
				"turn", rec.TurnNumber,
				"error", err,
			)
		}
	}
}

// Close stops accepting records, drains the queue and closes every sink.
// It is safe to call more than once.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var errs []error
	for _, sink := range d.sinks {
		if err := sink.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
