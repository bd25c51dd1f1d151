// Package storage implements the persistence sink: a DuckDB-backed event
// store and the single consumer that batches bus events into it with
// bounded retry.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/xtxerr/lagmon/internal/errors"
	"github.com/xtxerr/lagmon/internal/types"
)

// timestampLayout is a fixed-width RFC-3339 UTC layout. Fixed width keeps
// lexicographic order equal to chronological order for the text timestamp
// column.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// EventStore is the durable store behind the persistence sink. Exactly one
// writer uses it; readers may run concurrently with the writer and never
// observe partial writes.
type EventStore interface {
	// Insert durably appends the events in one atomic batch and returns
	// the assigned ids in input order.
	Insert(ctx context.Context, events []types.LatencyEvent) ([]int64, error)

	// Recent returns up to limit events ordered by timestamp descending.
	Recent(ctx context.Context, limit int) ([]types.LatencyEvent, error)

	// OlderThan returns events with timestamp strictly before cutoff,
	// oldest first.
	OlderThan(ctx context.Context, cutoff time.Time) ([]types.LatencyEvent, error)

	// Purge deletes events with timestamp strictly before cutoff and
	// returns the number removed. Events exactly at the cutoff are
	// retained.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)

	// Count returns the total number of stored events.
	Count(ctx context.Context) (int64, error)

	// LastEventTime returns the newest stored timestamp, or ok=false when
	// the store is empty.
	LastEventTime(ctx context.Context) (time.Time, bool, error)

	Close() error
}

// DuckStore is the DuckDB implementation of EventStore.
type DuckStore struct {
	db *sql.DB
}

// OpenDuck opens (creating if needed) a DuckDB event store at path.
// An empty path or ":memory:" opens an in-memory database.
func OpenDuck(path string) (*DuckStore, error) {
	if path == ":memory:" {
		path = ""
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &DuckStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *DuckStore) initSchema() error {
	stmts := []string{
		`CREATE SEQUENCE IF NOT EXISTS latency_events_id_seq`,
		`CREATE TABLE IF NOT EXISTS latency_events (
			id BIGINT PRIMARY KEY DEFAULT nextval('latency_events_id_seq'),
			timestamp VARCHAR NOT NULL,
			component_class VARCHAR NOT NULL,
			source_kind VARCHAR NOT NULL,
			duration_microseconds BIGINT NOT NULL,
			description VARCHAR NOT NULL,
			metadata VARCHAR
		)`,
		`CREATE INDEX IF NOT EXISTS idx_latency_events_timestamp
			ON latency_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_latency_events_class
			ON latency_events(component_class)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Insert appends the batch inside a single transaction so concurrent
// readers see either all rows or none.
func (s *DuckStore) Insert(ctx context.Context, events []types.LatencyEvent) ([]int64, error) {
	if len(events) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin insert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO latency_events
			(timestamp, component_class, source_kind, duration_microseconds, description, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(events))
	for i := range events {
		ev := &events[i]

		var metadata any
		if ev.Metadata != nil {
			raw, err := json.Marshal(ev.Metadata)
			if err != nil {
				return nil, errors.Wrap(err, "encode metadata")
			}
			metadata = string(raw)
		}

		var id int64
		err := stmt.QueryRowContext(ctx,
			ev.Timestamp.UTC().Format(timestampLayout),
			ev.Class.String(),
			ev.Source.String(),
			ev.Duration.Microseconds(),
			ev.Description,
			metadata,
		).Scan(&id)
		if err != nil {
			return nil, errors.Wrap(err, "insert event")
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit insert")
	}
	return ids, nil
}

// Recent returns up to limit events, newest first.
func (s *DuckStore) Recent(ctx context.Context, limit int) ([]types.LatencyEvent, error) {
	if limit <= 0 {
		return nil, errors.ErrInvalidLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, component_class, source_kind,
		       duration_microseconds, description, metadata
		FROM latency_events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query recent")
	}
	defer rows.Close()

	return scanEvents(rows)
}

// OlderThan returns events strictly older than cutoff, oldest first.
func (s *DuckStore) OlderThan(ctx context.Context, cutoff time.Time) ([]types.LatencyEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, component_class, source_kind,
		       duration_microseconds, description, metadata
		FROM latency_events
		WHERE timestamp < ?
		ORDER BY timestamp ASC, id ASC
	`, cutoff.UTC().Format(timestampLayout))
	if err != nil {
		return nil, errors.Wrap(err, "query older than")
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Purge deletes events strictly older than cutoff.
func (s *DuckStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM latency_events WHERE timestamp < ?`,
		cutoff.UTC().Format(timestampLayout))
	if err != nil {
		return 0, errors.Wrap(err, "purge")
	}
	return res.RowsAffected()
}

// Count returns the total number of stored events.
func (s *DuckStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM latency_events`).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return count, nil
}

// LastEventTime returns the newest stored timestamp.
func (s *DuckStore) LastEventTime(ctx context.Context) (time.Time, bool, error) {
	var ts sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(timestamp) FROM latency_events`).Scan(&ts)
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "last event time")
	}
	if !ts.Valid || ts.String == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(timestampLayout, ts.String)
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "parse timestamp")
	}
	return t, true, nil
}

// Close closes the database.
func (s *DuckStore) Close() error {
	return s.db.Close()
}

func scanEvents(rows *sql.Rows) ([]types.LatencyEvent, error) {
	var events []types.LatencyEvent

	for rows.Next() {
		var (
			id       int64
			ts       string
			class    string
			source   string
			micros   int64
			desc     string
			metadata sql.NullString
		)
		if err := rows.Scan(&id, &ts, &class, &source, &micros, &desc, &metadata); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}

		t, err := time.Parse(timestampLayout, ts)
		if err != nil {
			return nil, errors.Wrap(err, "parse timestamp")
		}
		cc, err := types.ParseComponentClass(class)
		if err != nil {
			return nil, err
		}
		sk, err := types.ParseSourceKind(source)
		if err != nil {
			return nil, err
		}

		ev := types.NewEvent(t, cc, sk, time.Duration(micros)*time.Microsecond, desc)
		ev.ID = &id
		if metadata.Valid && metadata.String != "" {
			var md map[string]any
			if err := json.Unmarshal([]byte(metadata.String), &md); err == nil {
				ev.Metadata = md
			}
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}
