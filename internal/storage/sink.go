package storage

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/xtxerr/lagmon/internal/bus"
	"github.com/xtxerr/lagmon/internal/logging"
	"github.com/xtxerr/lagmon/internal/types"
)

var log = logging.Component("sink")

// SinkOptions configures the sink's batching and retry behavior.
type SinkOptions struct {
	// BatchSize is the number of events per store insert.
	BatchSize int

	// FlushInterval bounds how long a partial batch may wait.
	FlushInterval time.Duration

	// RetryAttempts is the number of additional insert attempts after the
	// first failure. Zero retries once and then drops.
	RetryAttempts int

	// RetryBackoff is the initial retry delay; it doubles per attempt.
	RetryBackoff time.Duration
}

// Sink is the single consumer that durably records bus events. Storage
// trouble never propagates upstream: a batch whose retries are exhausted
// is dropped and logged, and the sink keeps consuming.
type Sink struct {
	store EventStore
	sub   *bus.Subscription
	opts  SinkOptions

	stored      atomic.Int64
	dropped     atomic.Int64
	writeErrors atomic.Int64
}

// NewSink creates a sink consuming from the given subscription.
func NewSink(store EventStore, sub *bus.Subscription, opts SinkOptions) *Sink {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 100 * time.Millisecond
	}
	return &Sink{store: store, sub: sub, opts: opts}
}

// Run consumes events until the subscription channel closes (graceful
// stop: buffered events are drained and flushed) or ctx is cancelled
// (forced stop: buffered events are discarded).
func (s *Sink) Run(ctx context.Context) {
	batch := make([]types.LatencyEvent, 0, s.opts.BatchSize)
	ticker := time.NewTicker(s.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("sink stopped (forced)", "discarded", len(batch))
			return

		case ev, ok := <-s.sub.Events():
			if !ok {
				s.flush(ctx, batch)
				log.Info("sink stopped (drained)",
					"stored", s.stored.Load(),
					"dropped", s.dropped.Load())
				return
			}
			batch = append(batch, ev)
			if len(batch) >= s.opts.BatchSize {
				s.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

// flush writes the batch with bounded retry and exponential backoff.
// After the attempts are exhausted the batch is dropped and logged.
func (s *Sink) flush(ctx context.Context, batch []types.LatencyEvent) {
	if len(batch) == 0 {
		return
	}

	backoff := s.opts.RetryBackoff
	attempts := s.opts.RetryAttempts + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		_, err := s.store.Insert(ctx, batch)
		if err == nil {
			s.stored.Add(int64(len(batch)))
			return
		}

		s.writeErrors.Add(1)
		log.Warn("store write failed",
			"attempt", attempt,
			"attempts", attempts,
			"batch_size", len(batch),
			"error", err)

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			s.dropped.Add(int64(len(batch)))
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	s.dropped.Add(int64(len(batch)))
	log.Error("dropping batch after exhausted retries",
		"batch_size", len(batch))
}

// Stored returns the number of events durably written.
func (s *Sink) Stored() int64 { return s.stored.Load() }

// Dropped returns the number of events dropped after exhausted retries.
func (s *Sink) Dropped() int64 { return s.dropped.Load() }

// WriteErrors returns the number of failed insert attempts.
func (s *Sink) WriteErrors() int64 { return s.writeErrors.Load() }
