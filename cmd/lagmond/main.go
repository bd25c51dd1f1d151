// lagmond is the workstation latency monitoring daemon.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xtxerr/lagmon/config"
	"github.com/xtxerr/lagmon/internal/aggregator"
	"github.com/xtxerr/lagmon/internal/bus"
	"github.com/xtxerr/lagmon/internal/logging"
	"github.com/xtxerr/lagmon/internal/pipeline"
	"github.com/xtxerr/lagmon/internal/query"
	"github.com/xtxerr/lagmon/internal/retention"
	"github.com/xtxerr/lagmon/internal/sampler"
	"github.com/xtxerr/lagmon/internal/server"
	"github.com/xtxerr/lagmon/internal/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// CLI flags
	cfgPath := flag.String("config", "lagmon.yaml", "config file path")
	listen := flag.String("listen", "", "query API listen address (overrides config)")
	dbPath := flag.String("db", "", "event database path (overrides config)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = config.DefaultConfig()
		} else {
			logging.Error("load config", "path", *cfgPath, "error", err)
			os.Exit(1)
		}
	}

	// CLI overrides
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.JSON)
	log := logging.Component("main")
	log.Info("lagmond starting", "version", Version, "config", *cfgPath)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Event store
	store, err := storage.OpenDuck(cfg.Storage.Path)
	if err != nil {
		log.Error("open event store", "path", cfg.Storage.Path, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("event store ready", "path", cfg.Storage.Path)

	// Bus and samplers
	eventBus := bus.New(cfg.Bus.Capacity)
	table := sampler.NewSystemProcessTable()

	samplers := make([]*sampler.Sampler, 0, len(cfg.Samplers))
	for _, sc := range cfg.Samplers {
		rule := sampler.RuleFromConfig(sc)
		samplers = append(samplers, sampler.New(rule, sc.Interval, table, eventBus))
	}

	// Aggregator and pipeline
	agg := aggregator.New(cfg.Aggregator.WindowMinutes, cfg.Aggregator.Accuracy)

	pipe := pipeline.New(eventBus, samplers, store, agg, pipeline.Options{
		Sink: storage.SinkOptions{
			BatchSize:     cfg.Sink.BatchSize,
			FlushInterval: cfg.Sink.FlushInterval,
			RetryAttempts: cfg.Sink.RetryAttempts,
			RetryBackoff:  cfg.Sink.RetryBackoff,
		},
		DrainTimeout: cfg.Shutdown.DrainTimeout,
	})

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pipe.Start(rootCtx); err != nil {
		log.Error("start pipeline", "error", err)
		os.Exit(1)
	}

	// Retention compactor
	compactor := retention.New(store, retention.Options{
		RetentionDays: cfg.Retention.Days,
		Schedule:      cfg.Retention.Schedule,
		ArchiveDir:    cfg.Retention.ArchiveDir,
	})
	if err := compactor.Start(rootCtx); err != nil {
		log.Error("start retention compactor", "error", err)
		os.Exit(1)
	}

	// Query API
	queries := query.New(agg, store, eventBus, pipe.SamplerNames(), cfg.Server.RequestTimeout)
	api := server.New(queries, cfg.Listen)

	serverErr := make(chan error, 1)
	go func() { serverErr <- api.Run() }()

	// Signal handling and graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info("shutting down", "signal", s.String())
	case err := <-serverErr:
		log.Error("query api failed", "error", err)
	}

	// Stop accepting queries first, then drain the pipeline so buffered
	// events reach the store, then stop the compactor.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Warn("query api shutdown", "error", err)
	}

	if err := pipe.Stop(); err != nil {
		log.Warn("pipeline shutdown", "error", err)
	}

	compactor.Stop()

	log.Info("lagmond stopped")
}
