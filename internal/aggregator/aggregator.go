// Package aggregator maintains online rolling-window statistics per
// component class: count, min/max/avg and sketch-estimated percentiles.
//
// Each class owns a ring of per-minute sub-aggregates merged on read, so
// query cost is bounded by the window length and never grows with total
// event volume. Classes are independent and update fully in parallel.
package aggregator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/xtxerr/lagmon/internal/bus"
	"github.com/xtxerr/lagmon/internal/logging"
	"github.com/xtxerr/lagmon/internal/types"
)

var log = logging.Component("aggregator")

// Aggregator holds one rolling window per component class.
type Aggregator struct {
	windows   map[types.ComponentClass]*classWindow
	processed atomic.Int64

	// now is injectable for tests.
	now func() time.Time
}

// New creates an aggregator with the given rolling horizon and sketch
// accuracy. Windows for every component class are allocated up front;
// memory is bounded by classes × window minutes regardless of volume.
func New(windowMinutes int, accuracy float64) *Aggregator {
	if windowMinutes <= 0 {
		windowMinutes = 60
	}
	if accuracy <= 0 || accuracy >= 1 {
		accuracy = 0.01
	}

	windows := make(map[types.ComponentClass]*classWindow)
	for _, class := range types.AllComponentClasses() {
		windows[class] = newClassWindow(class, windowMinutes, accuracy)
	}

	return &Aggregator{
		windows: windows,
		now:     time.Now,
	}
}

// Record folds one observation into its class window in O(1).
func (a *Aggregator) Record(class types.ComponentClass, d time.Duration, ts time.Time) {
	if w, ok := a.windows[class]; ok {
		w.record(d, ts)
		a.processed.Add(1)
	}
}

// RecordEvent folds a latency event into its class window.
func (a *Aggregator) RecordEvent(ev *types.LatencyEvent) {
	a.Record(ev.Class, ev.Duration, ev.Timestamp)
}

// Snapshot returns an immutable rolling-window summary for one class,
// safe to call concurrently with ongoing updates.
func (a *Aggregator) Snapshot(class types.ComponentClass) types.PerformanceSnapshot {
	w, ok := a.windows[class]
	if !ok {
		return types.PerformanceSnapshot{Class: class}
	}
	return w.snapshot(a.now())
}

// Snapshots returns summaries for every class that has window data.
func (a *Aggregator) Snapshots() []types.PerformanceSnapshot {
	now := a.now()

	var snaps []types.PerformanceSnapshot
	for _, class := range types.AllComponentClasses() {
		snap := a.windows[class].snapshot(now)
		if snap.Count > 0 {
			snaps = append(snaps, snap)
		}
	}
	return snaps
}

// Processed returns the total number of recorded observations.
func (a *Aggregator) Processed() int64 { return a.processed.Load() }

// Run consumes the bus subscription until its channel closes or ctx is
// cancelled. Remaining buffered events are folded in on the graceful path.
func (a *Aggregator) Run(ctx context.Context, sub *bus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			log.Info("aggregator stopped (forced)")
			return
		case ev, ok := <-sub.Events():
			if !ok {
				log.Info("aggregator stopped (drained)",
					"processed", a.processed.Load())
				return
			}
			a.RecordEvent(&ev)
		}
	}
}
