// Package config provides configuration loading, defaults and validation
// for the lagmon daemon.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or command-line flags.
package config

import "time"

// =============================================================================
// Server Defaults
// =============================================================================

const (
	// DefaultListenAddress is the default query API listen address.
	// Override via config: listen
	DefaultListenAddress = "127.0.0.1:9600"

	// DefaultRequestTimeout bounds query-service reads so a slow store
	// never blocks request handling indefinitely.
	// Override via config: server.request_timeout
	DefaultRequestTimeout = 5 * time.Second

	// DefaultEventsLimit is the /events result size when no limit is given.
	DefaultEventsLimit = 50

	// MaxEventsLimit caps the /events result size.
	MaxEventsLimit = 1000
)

// =============================================================================
// Sampler Defaults
// =============================================================================

const (
	// DefaultSampleInterval is the per-class process scan cadence.
	// Override via config: samplers.<class>.interval
	DefaultSampleInterval = 1 * time.Second

	// DefaultModelSampleInterval is the cadence for AI model classes,
	// which the original monitored at half the base frequency.
	DefaultModelSampleInterval = 2 * time.Second
)

// =============================================================================
// Bus Defaults
// =============================================================================

const (
	// DefaultBusCapacity is the per-subscriber event buffer size, sized
	// to several seconds of peak event volume.
	// Override via config: bus.capacity
	DefaultBusCapacity = 4096
)

// =============================================================================
// Sink Defaults
// =============================================================================

const (
	// DefaultBatchSize is the number of events written per store insert.
	// Override via config: sink.batch_size
	DefaultBatchSize = 64

	// DefaultFlushInterval bounds how long a partial batch may wait.
	// Override via config: sink.flush_interval
	DefaultFlushInterval = 500 * time.Millisecond

	// DefaultRetryAttempts is the bounded number of write retries before
	// a batch is dropped.
	// Override via config: sink.retry_attempts
	DefaultRetryAttempts = 3

	// DefaultRetryBackoff is the initial retry delay; it doubles per
	// attempt.
	// Override via config: sink.retry_backoff
	DefaultRetryBackoff = 100 * time.Millisecond
)

// =============================================================================
// Aggregator Defaults
// =============================================================================

const (
	// DefaultWindowMinutes is the rolling aggregation horizon.
	// Override via config: aggregator.window_minutes
	DefaultWindowMinutes = 60

	// DefaultSketchAccuracy is the DDSketch relative accuracy
	// (0.01 = 1% error at the estimated quantile).
	// Override via config: aggregator.accuracy
	DefaultSketchAccuracy = 0.01
)

// =============================================================================
// Retention Defaults
// =============================================================================

const (
	// DefaultRetentionDays is how long persisted events are kept.
	// Override via config: retention.days
	DefaultRetentionDays = 7

	// DefaultRetentionSchedule is the compactor cron schedule.
	// Override via config: retention.schedule
	DefaultRetentionSchedule = "@daily"
)

// =============================================================================
// Storage Defaults
// =============================================================================

const (
	// DefaultDatabasePath is the DuckDB database file.
	// Override via config: storage.path
	DefaultDatabasePath = "lagmon.db"
)

// =============================================================================
// Shutdown Defaults
// =============================================================================

const (
	// DefaultDrainTimeout is how long a graceful stop waits for buffered
	// events to reach the sink before giving up.
	// Override via config: shutdown.drain_timeout
	DefaultDrainTimeout = 10 * time.Second
)
