package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete daemon configuration.
type Config struct {
	// Listen is the query API listen address.
	Listen string `yaml:"listen"`

	// Log configures logging output.
	Log LogConfig `yaml:"log"`

	// Samplers configures the per-class process samplers.
	Samplers []SamplerConfig `yaml:"samplers"`

	// Bus configures the event bus.
	Bus BusConfig `yaml:"bus"`

	// Sink configures the persistence sink.
	Sink SinkConfig `yaml:"sink"`

	// Aggregator configures the rolling-window aggregator.
	Aggregator AggregatorConfig `yaml:"aggregator"`

	// Storage configures the durable event store.
	Storage StorageConfig `yaml:"storage"`

	// Retention configures the retention compactor.
	Retention RetentionConfig `yaml:"retention"`

	// Server configures query API behavior.
	Server ServerConfig `yaml:"server"`

	// Shutdown configures graceful stop behavior.
	Shutdown ShutdownConfig `yaml:"shutdown"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// JSON switches output to JSON format.
	JSON bool `yaml:"json"`
}

// SamplerConfig configures one sampler instance.
type SamplerConfig struct {
	// Class is the component class this sampler emits.
	Class string `yaml:"class"`

	// Interval is the scan cadence.
	Interval time.Duration `yaml:"interval"`

	// NameContains are process-name substrings that match (lowercased).
	NameContains []string `yaml:"name_contains"`

	// CmdlineContains are command-line substrings that match (lowercased).
	CmdlineContains []string `yaml:"cmdline_contains"`

	// MinCPUPercent filters out idle matches when > 0.
	MinCPUPercent float64 `yaml:"min_cpu_percent"`
}

// BusConfig configures the event bus.
type BusConfig struct {
	// Capacity is the per-subscriber buffer size.
	Capacity int `yaml:"capacity"`
}

// SinkConfig configures the persistence sink.
type SinkConfig struct {
	// BatchSize is the number of events per store insert.
	BatchSize int `yaml:"batch_size"`

	// FlushInterval bounds how long a partial batch may wait.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// RetryAttempts is the bounded number of write retries.
	RetryAttempts int `yaml:"retry_attempts"`

	// RetryBackoff is the initial retry delay (doubles per attempt).
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// AggregatorConfig configures the rolling-window aggregator.
type AggregatorConfig struct {
	// WindowMinutes is the rolling horizon in minutes.
	WindowMinutes int `yaml:"window_minutes"`

	// Accuracy is the sketch relative accuracy (0.01 = 1% error).
	Accuracy float64 `yaml:"accuracy"`
}

// StorageConfig configures the durable event store.
type StorageConfig struct {
	// Path is the DuckDB database file. Empty selects the default;
	// ":memory:" selects an in-memory database.
	Path string `yaml:"path"`
}

// RetentionConfig configures the retention compactor.
type RetentionConfig struct {
	// Days is the retention horizon.
	Days int `yaml:"days"`

	// Schedule is the cron schedule for compaction runs.
	Schedule string `yaml:"schedule"`

	// ArchiveDir, when set, receives a Parquet archive of purged events.
	ArchiveDir string `yaml:"archive_dir"`
}

// ServerConfig configures query API behavior.
type ServerConfig struct {
	// RequestTimeout bounds store and aggregator reads per request.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ShutdownConfig configures graceful stop behavior.
type ShutdownConfig struct {
	// DrainTimeout is how long to wait for buffered events to persist.
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

// DefaultConfig returns a configuration with all defaults applied,
// including the default classification rule set.
func DefaultConfig() *Config {
	return &Config{
		Listen:   DefaultListenAddress,
		Log:      LogConfig{Level: "info"},
		Samplers: DefaultSamplers(),
		Bus:      BusConfig{Capacity: DefaultBusCapacity},
		Sink: SinkConfig{
			BatchSize:     DefaultBatchSize,
			FlushInterval: DefaultFlushInterval,
			RetryAttempts: DefaultRetryAttempts,
			RetryBackoff:  DefaultRetryBackoff,
		},
		Aggregator: AggregatorConfig{
			WindowMinutes: DefaultWindowMinutes,
			Accuracy:      DefaultSketchAccuracy,
		},
		Storage: StorageConfig{Path: DefaultDatabasePath},
		Retention: RetentionConfig{
			Days:     DefaultRetentionDays,
			Schedule: DefaultRetentionSchedule,
		},
		Server:   ServerConfig{RequestTimeout: DefaultRequestTimeout},
		Shutdown: ShutdownConfig{DrainTimeout: DefaultDrainTimeout},
	}
}

// DefaultSamplers returns the built-in classification rule table. The
// patterns mirror the workloads the daemon was built to watch: editors,
// extension hosts, AI assistants and shells.
func DefaultSamplers() []SamplerConfig {
	return []SamplerConfig{
		{
			Class:        "editor",
			Interval:     DefaultSampleInterval,
			NameContains: []string{"code", "code-server"},
		},
		{
			Class:           "extension-host",
			Interval:        DefaultSampleInterval,
			NameContains:    []string{"extensionhost"},
			CmdlineContains: []string{"extensionhost"},
		},
		{
			Class:           "ai-model-remote",
			Interval:        DefaultModelSampleInterval,
			NameContains:    []string{"copilot"},
			CmdlineContains: []string{"github.copilot", "copilot-agent"},
		},
		{
			Class:        "ai-model-local",
			Interval:     DefaultModelSampleInterval,
			NameContains: []string{"ollama", "llama", "gpt4all", "localai"},
		},
		{
			Class:         "terminal",
			Interval:      DefaultSampleInterval,
			NameContains:  []string{"bash", "zsh", "fish", "sh", "terminal", "gnome-terminal", "konsole"},
			MinCPUPercent: 0.1,
		},
	}
}

// Load reads and validates a configuration file, applying defaults to
// unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills unset fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListenAddress
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if len(c.Samplers) == 0 {
		c.Samplers = DefaultSamplers()
	}
	for i := range c.Samplers {
		if c.Samplers[i].Interval == 0 {
			c.Samplers[i].Interval = DefaultSampleInterval
		}
	}
	if c.Bus.Capacity == 0 {
		c.Bus.Capacity = DefaultBusCapacity
	}
	if c.Sink.BatchSize == 0 {
		c.Sink.BatchSize = DefaultBatchSize
	}
	if c.Sink.FlushInterval == 0 {
		c.Sink.FlushInterval = DefaultFlushInterval
	}
	if c.Sink.RetryAttempts == 0 {
		c.Sink.RetryAttempts = DefaultRetryAttempts
	}
	if c.Sink.RetryBackoff == 0 {
		c.Sink.RetryBackoff = DefaultRetryBackoff
	}
	if c.Aggregator.WindowMinutes == 0 {
		c.Aggregator.WindowMinutes = DefaultWindowMinutes
	}
	if c.Aggregator.Accuracy == 0 {
		c.Aggregator.Accuracy = DefaultSketchAccuracy
	}
	if c.Storage.Path == "" {
		c.Storage.Path = DefaultDatabasePath
	}
	if c.Retention.Days == 0 {
		c.Retention.Days = DefaultRetentionDays
	}
	if c.Retention.Schedule == "" {
		c.Retention.Schedule = DefaultRetentionSchedule
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = DefaultRequestTimeout
	}
	if c.Shutdown.DrainTimeout == 0 {
		c.Shutdown.DrainTimeout = DefaultDrainTimeout
	}
}
