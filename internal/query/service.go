// Package query provides the read-only facade over the aggregator, the
// persistence sink's store and the live process metrics, composing them
// into the views served by the HTTP API.
package query

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/xtxerr/lagmon/internal/aggregator"
	"github.com/xtxerr/lagmon/internal/bus"
	"github.com/xtxerr/lagmon/internal/errors"
	"github.com/xtxerr/lagmon/internal/logging"
	"github.com/xtxerr/lagmon/internal/storage"
	"github.com/xtxerr/lagmon/internal/types"
)

var log = logging.Component("query")

// Service composes read-only views. It never blocks indefinitely: store
// reads run under a timeout and failures surface as service-level errors,
// never as silently empty results.
type Service struct {
	agg       *aggregator.Aggregator
	store     storage.EventStore
	bus       *bus.Bus
	samplers  []string
	startedAt time.Time
	timeout   time.Duration

	self *process.Process
}

// New creates a query service. samplers lists the active sampler names
// reported in SystemStatus.
func New(agg *aggregator.Aggregator, store storage.EventStore, b *bus.Bus, samplers []string, timeout time.Duration) *Service {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		// Self-metrics degrade to zeros; status still works.
		self = nil
	}

	return &Service{
		agg:       agg,
		store:     store,
		bus:       b,
		samplers:  samplers,
		startedAt: time.Now(),
		timeout:   timeout,
		self:      self,
	}
}

// RecentEvents returns up to limit persisted events, newest first. Store
// failure is surfaced as ErrStoreUnavailable; an empty store returns an
// empty slice and no error.
func (s *Service) RecentEvents(ctx context.Context, limit int) ([]types.LatencyEvent, error) {
	if limit <= 0 {
		return nil, errors.ErrInvalidLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	events, err := s.store.Recent(ctx, limit)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidLimit) {
			return nil, err
		}
		log.Warn("recent events read failed", "error", err)
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return events, nil
}

// Metrics returns the current rolling-window snapshot per component class.
func (s *Service) Metrics(ctx context.Context) ([]types.PerformanceSnapshot, error) {
	if s.agg == nil {
		return nil, errors.ErrAggregatorUnavailable
	}
	return s.agg.Snapshots(), nil
}

// Status composes the on-demand system view. A transiently unavailable
// store yields a partial result with a degraded summary instead of an
// error; the aggregator side is always live.
func (s *Service) Status(ctx context.Context) (types.SystemStatus, error) {
	st := types.SystemStatus{
		Summary:        "operational",
		ActiveSamplers: s.samplers,
		UptimeSeconds:  int64(time.Since(s.startedAt).Seconds()),
	}

	if s.agg != nil {
		st.Snapshots = s.agg.Snapshots()
	}
	if s.bus != nil {
		st.DroppedEvents = s.bus.Dropped()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.store.Count(ctx)
	if err != nil {
		log.Warn("store unavailable for status", "error", err)
		st.Summary = "degraded: event store unavailable"
	} else {
		st.TotalEvents = count
		if last, ok, err := s.store.LastEventTime(ctx); err == nil && ok {
			st.LastEventAt = &last
		}
	}

	st.MemoryMB, st.CPUPercent = s.selfUsage()

	return st, nil
}

// selfUsage reads the daemon's own memory and CPU via gopsutil; failures
// degrade to zeros rather than failing the status call.
func (s *Service) selfUsage() (memMB uint64, cpuPct float64) {
	if s.self == nil {
		return 0, 0
	}
	if mi, err := s.self.MemoryInfo(); err == nil && mi != nil {
		memMB = mi.RSS / (1024 * 1024)
	}
	if pct, err := s.self.CPUPercent(); err == nil {
		cpuPct = pct
	}
	return memMB, cpuPct
}

// Uptime returns how long the service has been up.
func (s *Service) Uptime() time.Duration {
	return time.Since(s.startedAt)
}
