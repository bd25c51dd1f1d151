package config

import (
	"errors"
	"fmt"

	"github.com/xtxerr/lagmon/internal/types"
)

// Validate checks the configuration for errors. Validation failures are
// fatal at startup; nothing is started on an invalid configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}

	if len(c.Samplers) == 0 {
		errs = append(errs, errors.New("at least one sampler is required"))
	}
	for i := range c.Samplers {
		if err := c.Samplers[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("samplers[%d]: %w", i, err))
		}
	}

	if err := c.Bus.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bus: %w", err))
	}
	if err := c.Sink.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sink: %w", err))
	}
	if err := c.Aggregator.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("aggregator: %w", err))
	}
	if err := c.Retention.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retention: %w", err))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server: request_timeout must be positive"))
	}
	if c.Shutdown.DrainTimeout <= 0 {
		errs = append(errs, errors.New("shutdown: drain_timeout must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks one sampler configuration.
func (s *SamplerConfig) Validate() error {
	var errs []error

	if _, err := types.ParseComponentClass(s.Class); err != nil {
		errs = append(errs, err)
	}
	if s.Interval <= 0 {
		errs = append(errs, errors.New("interval must be positive"))
	}
	if len(s.NameContains) == 0 && len(s.CmdlineContains) == 0 {
		errs = append(errs, errors.New("at least one match pattern is required"))
	}
	if s.MinCPUPercent < 0 {
		errs = append(errs, errors.New("min_cpu_percent must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the bus configuration.
func (b *BusConfig) Validate() error {
	if b.Capacity <= 0 {
		return errors.New("capacity must be positive")
	}
	return nil
}

// Validate checks the sink configuration.
func (s *SinkConfig) Validate() error {
	var errs []error

	if s.BatchSize <= 0 {
		errs = append(errs, errors.New("batch_size must be positive"))
	}
	if s.FlushInterval <= 0 {
		errs = append(errs, errors.New("flush_interval must be positive"))
	}
	if s.RetryAttempts < 0 {
		errs = append(errs, errors.New("retry_attempts must not be negative"))
	}
	if s.RetryBackoff <= 0 {
		errs = append(errs, errors.New("retry_backoff must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the aggregator configuration.
func (a *AggregatorConfig) Validate() error {
	var errs []error

	if a.WindowMinutes <= 0 {
		errs = append(errs, errors.New("window_minutes must be positive"))
	}
	if a.Accuracy <= 0 || a.Accuracy >= 1 {
		errs = append(errs, errors.New("accuracy must be in (0, 1)"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the retention configuration.
func (r *RetentionConfig) Validate() error {
	var errs []error

	if r.Days <= 0 {
		errs = append(errs, errors.New("days must be positive"))
	}
	if r.Schedule == "" {
		errs = append(errs, errors.New("schedule is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
