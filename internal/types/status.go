package types

import "time"

// PerformanceSnapshot is the aggregator's rolling-window summary for one
// component class. All duration figures are derived incrementally; the
// percentiles are digest estimates, not exact order statistics.
type PerformanceSnapshot struct {
	Class       ComponentClass `json:"component_class"`
	Count       int64          `json:"event_count"`
	AvgMicros   int64          `json:"avg_duration_microseconds"`
	MinMicros   int64          `json:"min_duration_microseconds"`
	MaxMicros   int64          `json:"max_duration_microseconds"`
	P50Micros   int64          `json:"p50_duration_microseconds"`
	P95Micros   int64          `json:"p95_duration_microseconds"`
	P99Micros   int64          `json:"p99_duration_microseconds"`
	RatePerSec  float64        `json:"events_per_second"`
	LastUpdated time.Time      `json:"last_updated"`
}

// SystemStatus is the derived on-demand view composed by the query
// service. It owns no storage of its own.
type SystemStatus struct {
	Summary        string                `json:"summary"`
	TotalEvents    int64                 `json:"total_events"`
	DroppedEvents  int64                 `json:"dropped_events"`
	ActiveSamplers []string              `json:"active_samplers"`
	Snapshots      []PerformanceSnapshot `json:"performance_metrics"`
	LastEventAt    *time.Time            `json:"last_event_timestamp,omitempty"`
	UptimeSeconds  int64                 `json:"uptime_seconds"`
	MemoryMB       uint64                `json:"memory_usage_mb"`
	CPUPercent     float64               `json:"cpu_usage_percent"`
}
