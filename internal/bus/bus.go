// Package bus provides the bounded event bus connecting samplers to the
// persistence sink and the aggregator.
//
// The bus fans every published event out to a fixed set of subscribers,
// each with its own bounded buffer. Publishing never blocks: when a
// subscriber's buffer is full the incoming event is dropped for that
// subscriber and a drop counter is incremented. A slow consumer therefore
// degrades its own stream without stalling producers or other consumers.
//
// Ordering is FIFO per producer; no total order across producers is
// guaranteed.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/xtxerr/lagmon/internal/errors"
	"github.com/xtxerr/lagmon/internal/logging"
	"github.com/xtxerr/lagmon/internal/types"
)

var log = logging.Component("bus")

// Subscription is one consumer's view of the event stream.
type Subscription struct {
	name string
	ch   chan types.LatencyEvent

	delivered atomic.Int64
	dropped   atomic.Int64
}

// Events returns the subscriber's event channel. The channel is closed
// when the bus closes; consumers should range over it to drain buffered
// events during graceful shutdown.
func (s *Subscription) Events() <-chan types.LatencyEvent {
	return s.ch
}

// Name returns the subscriber name.
func (s *Subscription) Name() string { return s.name }

// Delivered returns the number of events delivered to this subscriber.
func (s *Subscription) Delivered() int64 { return s.delivered.Load() }

// Dropped returns the number of events dropped for this subscriber.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Bus is a bounded multi-producer fan-out queue for latency events.
//
// Bus is safe for concurrent use by multiple producers; each subscription
// is consumed by exactly one goroutine.
type Bus struct {
	mu       sync.RWMutex
	capacity int
	subs     []*Subscription
	closed   bool

	published atomic.Int64
	dropped   atomic.Int64
}

// New creates a bus whose subscribers each buffer up to capacity events.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Bus{capacity: capacity}
}

// Subscribe registers a named consumer. All subscriptions must be created
// before publishing starts; subscribing to a closed bus returns an error.
func (b *Bus) Subscribe(name string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.ErrBusClosed
	}

	sub := &Subscription{
		name: name,
		ch:   make(chan types.LatencyEvent, b.capacity),
	}
	b.subs = append(b.subs, sub)
	return sub, nil
}

// Publish delivers the event to every subscriber whose buffer has space.
// It never blocks: a full subscriber buffer drops the incoming event for
// that subscriber and increments the drop counters. Returns the number of
// subscribers the event was delivered to.
func (b *Bus) Publish(ev types.LatencyEvent) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}

	b.published.Add(1)

	delivered := 0
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
			sub.delivered.Add(1)
			delivered++
		default:
			sub.dropped.Add(1)
			b.dropped.Add(1)
		}
	}
	return delivered
}

// Close closes all subscriber channels. Consumers draining their channels
// will observe every buffered event before the channel reports closed.
// Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, sub := range b.subs {
		close(sub.ch)
	}

	log.Debug("bus closed",
		"published", b.published.Load(),
		"dropped", b.dropped.Load())
}

// Published returns the total number of publish calls accepted.
func (b *Bus) Published() int64 { return b.published.Load() }

// Dropped returns the monotonically increasing total of per-subscriber
// drops. This is the backpressure degradation signal exposed through
// SystemStatus.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

// Capacity returns the per-subscriber buffer size.
func (b *Bus) Capacity() int { return b.capacity }

// Stats returns a consistent snapshot of bus counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := Stats{
		Capacity:  b.capacity,
		Published: b.published.Load(),
		Dropped:   b.dropped.Load(),
	}
	for _, sub := range b.subs {
		st.Subscribers = append(st.Subscribers, SubscriberStats{
			Name:      sub.name,
			Buffered:  len(sub.ch),
			Delivered: sub.delivered.Load(),
			Dropped:   sub.dropped.Load(),
		})
	}
	return st
}

// Stats holds bus counters.
type Stats struct {
	Capacity    int
	Published   int64
	Dropped     int64
	Subscribers []SubscriberStats
}

// SubscriberStats holds per-subscriber counters.
type SubscriberStats struct {
	Name      string
	Buffered  int
	Delivered int64
	Dropped   int64
}
