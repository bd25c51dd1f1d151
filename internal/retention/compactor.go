// Package retention implements the background compactor that purges
// persisted events older than the configured horizon, optionally
// archiving them to Parquet first.
//
// The compactor runs on its own cron schedule, independent of the event
// ingestion path. A failed run is logged and retried on the next
// scheduled run; it is never fatal to the pipeline.
package retention

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xtxerr/lagmon/internal/logging"
	"github.com/xtxerr/lagmon/internal/storage"
)

var log = logging.Component("retention")

// Options configures the compactor.
type Options struct {
	// RetentionDays is the purge horizon in days.
	RetentionDays int

	// Schedule is the cron expression for compaction runs.
	Schedule string

	// ArchiveDir, when non-empty, receives a Parquet archive of the
	// purged events before deletion.
	ArchiveDir string
}

// Compactor purges expired events from the store on a schedule.
type Compactor struct {
	mu    sync.Mutex
	store storage.EventStore
	opts  Options
	cron  *cron.Cron

	// now is injectable for tests.
	now func() time.Time

	stats Stats
}

// Stats holds compactor accounting.
type Stats struct {
	Runs           int64
	EventsRemoved  int64
	EventsArchived int64
	Errors         int64
	LastRun        time.Time
}

// New creates a compactor over the given store.
func New(store storage.EventStore, opts Options) *Compactor {
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = 7
	}
	if opts.Schedule == "" {
		opts.Schedule = "@daily"
	}
	return &Compactor{
		store: store,
		opts:  opts,
		now:   time.Now,
	}
}

// Start registers the cron schedule and begins running. Returns an error
// only for an unparsable schedule, which is a startup-time failure.
func (c *Compactor) Start(ctx context.Context) error {
	c.cron = cron.New()

	_, err := c.cron.AddFunc(c.opts.Schedule, func() {
		if _, err := c.RunOnce(ctx); err != nil {
			log.Warn("scheduled compaction failed, will retry next run",
				"error", err)
		}
	})
	if err != nil {
		return err
	}

	c.cron.Start()
	log.Info("retention compactor started",
		"schedule", c.opts.Schedule,
		"retention_days", c.opts.RetentionDays,
		"archive_dir", c.opts.ArchiveDir)
	return nil
}

// Stop halts the schedule, waiting for an in-flight run to finish.
func (c *Compactor) Stop() {
	if c.cron != nil {
		<-c.cron.Stop().Done()
	}
}

// RunOnce purges events older than the retention horizon and returns the
// number removed. Events exactly at the boundary are retained. When an
// archive directory is configured, purged rows are written to Parquet
// first; an archive failure aborts the purge so no data is lost
// unarchived.
func (c *Compactor) RunOnce(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().UTC().AddDate(0, 0, -c.opts.RetentionDays)
	c.stats.Runs++
	c.stats.LastRun = c.now()

	if c.opts.ArchiveDir != "" {
		expired, err := c.store.OlderThan(ctx, cutoff)
		if err != nil {
			c.stats.Errors++
			return 0, err
		}
		if len(expired) > 0 {
			path, err := writeArchive(c.opts.ArchiveDir, cutoff, expired)
			if err != nil {
				c.stats.Errors++
				return 0, err
			}
			c.stats.EventsArchived += int64(len(expired))
			log.Info("archived expired events",
				"count", len(expired), "path", path)
		}
	}

	removed, err := c.store.Purge(ctx, cutoff)
	if err != nil {
		c.stats.Errors++
		return 0, err
	}

	c.stats.EventsRemoved += removed
	log.Info("compaction run complete",
		"cutoff", cutoff.Format(time.RFC3339),
		"removed", removed)
	return removed, nil
}

// Stats returns compactor accounting.
func (c *Compactor) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
