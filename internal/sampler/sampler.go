// Package sampler implements the per-class process samplers.
//
// Each sampler owns one component class. On every tick it snapshots the OS
// process table, applies its classification rule, and emits one latency
// event per matched process onto the event bus, the event's duration being
// the scan's own elapsed time. Samplers run independently; a slow or
// failing sampler never delays another sampler or the bus.
package sampler

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/xtxerr/lagmon/internal/bus"
	"github.com/xtxerr/lagmon/internal/logging"
	"github.com/xtxerr/lagmon/internal/types"
)

var log = logging.Component("sampler")

// Sampler polls the process table for one component class.
type Sampler struct {
	rule     Rule
	interval time.Duration
	table    ProcessTable
	bus      *bus.Bus

	// lastTS enforces non-decreasing timestamps within this sampler's
	// emission stream.
	lastTS time.Time

	ticks       atomic.Int64
	failedTicks atomic.Int64
	emitted     atomic.Int64
}

// New creates a sampler for the given rule and cadence.
func New(rule Rule, interval time.Duration, table ProcessTable, b *bus.Bus) *Sampler {
	return &Sampler{
		rule:     rule,
		interval: interval,
		table:    table,
		bus:      b,
	}
}

// Name returns the sampler's name, derived from its component class.
func (s *Sampler) Name() string {
	return s.rule.Class.String()
}

// Class returns the component class this sampler emits.
func (s *Sampler) Class() types.ComponentClass {
	return s.rule.Class
}

// Run executes the sample loop until ctx is cancelled. Cancellation is
// cooperative: it is observed between ticks, so a tick in progress always
// completes and its events are published before Run returns.
//
// The first tick is delayed by a random fraction of the interval so
// concurrently started samplers do not scan in lockstep.
func (s *Sampler) Run(ctx context.Context) {
	jitter := time.Duration(rand.Int63n(int64(s.interval)))
	log.Info("sampler started",
		"class", s.rule.Class.String(),
		"interval", s.interval,
		"jitter", jitter)

	select {
	case <-ctx.Done():
		return
	case <-time.After(jitter):
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)

		select {
		case <-ctx.Done():
			log.Info("sampler stopped",
				"class", s.rule.Class.String(),
				"ticks", s.ticks.Load(),
				"emitted", s.emitted.Load())
			return
		case <-ticker.C:
		}
	}
}

// tick runs one scan-classify-emit cycle. A failed process-table snapshot
// is logged and skipped; the sampler continues on the next tick. Zero
// matches is not an error.
func (s *Sampler) tick(ctx context.Context) {
	s.ticks.Add(1)
	scanStart := time.Now()

	procs, err := s.table.Snapshot(ctx)
	if err != nil {
		s.failedTicks.Add(1)
		log.Warn("process scan failed, skipping tick",
			"class", s.rule.Class.String(),
			"error", err)
		return
	}

	for i := range procs {
		p := &procs[i]
		if !s.rule.Matches(p) {
			continue
		}

		ev := types.NewEvent(
			s.stamp(),
			s.rule.Class,
			s.rule.Source,
			time.Since(scanStart),
			fmt.Sprintf("process %d %s - cpu %.1f%%, mem %d KB",
				p.PID, p.Name, p.CPUPercent, p.MemoryKB),
		).WithMetadata(map[string]any{
			"pid":         p.PID,
			"cpu_percent": p.CPUPercent,
			"memory_kb":   p.MemoryKB,
		})

		s.bus.Publish(ev)
		s.emitted.Add(1)
	}
}

// stamp returns a capture time that never runs backwards within this
// sampler's stream, even if the wall clock does.
func (s *Sampler) stamp() time.Time {
	now := time.Now().UTC()
	if now.Before(s.lastTS) {
		now = s.lastTS
	}
	s.lastTS = now
	return now
}

// Stats returns sampler counters.
func (s *Sampler) Stats() Stats {
	return Stats{
		Class:       s.rule.Class,
		Ticks:       s.ticks.Load(),
		FailedTicks: s.failedTicks.Load(),
		Emitted:     s.emitted.Load(),
	}
}

// Stats holds sampler counters.
type Stats struct {
	Class       types.ComponentClass
	Ticks       int64
	FailedTicks int64
	Emitted     int64
}
