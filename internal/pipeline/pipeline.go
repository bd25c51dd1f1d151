// Package pipeline wires samplers, the event bus, the persistence sink
// and the aggregator together and manages their lifecycle.
package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/lagmon/internal/aggregator"
	"github.com/xtxerr/lagmon/internal/bus"
	"github.com/xtxerr/lagmon/internal/errors"
	"github.com/xtxerr/lagmon/internal/logging"
	"github.com/xtxerr/lagmon/internal/sampler"
	"github.com/xtxerr/lagmon/internal/storage"
	"github.com/xtxerr/lagmon/internal/types"
)

var log = logging.Component("pipeline")

// Options configures the pipeline lifecycle.
type Options struct {
	Sink storage.SinkOptions

	// DrainTimeout bounds how long Stop waits for consumers to flush
	// after the bus is closed.
	DrainTimeout time.Duration
}

// Pipeline owns the producer and consumer goroutines of the telemetry
// path. Samplers publish into the bus; the sink and the aggregator each
// consume an independent subscription, so a slow sink never starves the
// rolling-window metrics.
type Pipeline struct {
	bus      *bus.Bus
	samplers []*sampler.Sampler
	store    storage.EventStore
	agg      *aggregator.Aggregator
	opts     Options

	sink *storage.Sink

	cancelSamplers context.CancelFunc
	cancelAll      context.CancelFunc
	producers      *errgroup.Group
	consumers      *errgroup.Group
	running        bool
}

// New assembles a pipeline. Nothing runs until Start.
func New(b *bus.Bus, samplers []*sampler.Sampler, store storage.EventStore, agg *aggregator.Aggregator, opts Options) *Pipeline {
	return &Pipeline{
		bus:      b,
		samplers: samplers,
		store:    store,
		agg:      agg,
		opts:     opts,
	}
}

// Start subscribes the consumers and launches every goroutine. Consumers
// subscribe before any sampler runs so no event can miss a subscriber.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.running {
		return errors.ErrAlreadyRunning
	}

	sinkSub, err := p.bus.Subscribe("sink")
	if err != nil {
		return err
	}
	aggSub, err := p.bus.Subscribe("aggregator")
	if err != nil {
		return err
	}
	p.sink = storage.NewSink(p.store, sinkSub, p.opts.Sink)

	allCtx, cancelAll := context.WithCancel(ctx)
	samplerCtx, cancelSamplers := context.WithCancel(allCtx)
	p.cancelAll = cancelAll
	p.cancelSamplers = cancelSamplers

	p.consumers, _ = errgroup.WithContext(allCtx)
	p.consumers.Go(func() error {
		p.sink.Run(allCtx)
		return nil
	})
	p.consumers.Go(func() error {
		p.agg.Run(allCtx, aggSub)
		return nil
	})

	p.producers, _ = errgroup.WithContext(samplerCtx)
	for _, s := range p.samplers {
		s := s
		p.producers.Go(func() error {
			s.Run(samplerCtx)
			return nil
		})
	}

	p.running = true
	log.Info("pipeline started", "samplers", len(p.samplers), "bus_capacity", p.bus.Capacity())
	return nil
}

// Stop drains the pipeline: samplers stop first, the bus is closed so
// consumers see end-of-stream and flush, then we wait for them up to the
// drain timeout. On timeout the remaining goroutines are cancelled and
// buffered events are lost.
func (p *Pipeline) Stop() error {
	if !p.running {
		return errors.ErrNotRunning
	}
	p.running = false

	p.cancelSamplers()
	_ = p.producers.Wait()

	p.bus.Close()

	done := make(chan error, 1)
	go func() { done <- p.consumers.Wait() }()

	select {
	case err := <-done:
		p.cancelAll()
		log.Info("pipeline drained",
			"published", p.bus.Published(),
			"dropped", p.bus.Dropped(),
			"stored", p.sink.Stored())
		return err
	case <-time.After(p.opts.DrainTimeout):
		log.Warn("drain timeout exceeded, forcing shutdown", "timeout", p.opts.DrainTimeout)
		p.cancelAll()
		<-done
		return errors.ErrTimeout
	}
}

// Kill cancels everything immediately without draining.
func (p *Pipeline) Kill() {
	if p.cancelAll != nil {
		p.cancelSamplers()
		p.cancelAll()
	}
	p.running = false
}

// Sink exposes the persistence consumer. Nil before Start.
func (p *Pipeline) Sink() *storage.Sink {
	return p.sink
}

// InjectSynthetic publishes n synthetic events for the class, each with
// the given duration. Used to exercise the full path without real process
// activity. Returns how many were accepted by at least one subscriber.
func (p *Pipeline) InjectSynthetic(class types.ComponentClass, n int, d time.Duration) int {
	published := 0
	for i := 0; i < n; i++ {
		ev := types.NewEvent(time.Now().UTC(), class, types.SourceSyntheticTest, d, "synthetic probe")
		if p.bus.Publish(ev) > 0 {
			published++
		}
	}
	return published
}

// SamplerNames reports the configured sampler identities for status output.
func (p *Pipeline) SamplerNames() []string {
	names := make([]string, 0, len(p.samplers))
	for _, s := range p.samplers {
		names = append(names, s.Name())
	}
	return names
}
