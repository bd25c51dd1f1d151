package retention

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/xtxerr/lagmon/internal/types"
)

// EventRow is a latency event in Parquet archive format.
type EventRow struct {
	ID             int64  `parquet:"id"`
	Timestamp      string `parquet:"timestamp,zstd"`
	ComponentClass string `parquet:"component_class,zstd"`
	SourceKind     string `parquet:"source_kind,zstd"`
	DurationMicros int64  `parquet:"duration_microseconds"`
	Description    string `parquet:"description,zstd"`
	Metadata       string `parquet:"metadata,optional,zstd"`
}

func eventToRow(ev *types.LatencyEvent) EventRow {
	row := EventRow{
		Timestamp:      ev.Timestamp.UTC().Format(time.RFC3339Nano),
		ComponentClass: ev.Class.String(),
		SourceKind:     ev.Source.String(),
		DurationMicros: ev.Duration.Microseconds(),
		Description:    ev.Description,
	}
	if ev.ID != nil {
		row.ID = *ev.ID
	}
	if ev.Metadata != nil {
		if raw, err := json.Marshal(ev.Metadata); err == nil {
			row.Metadata = string(raw)
		}
	}
	return row
}

// writeArchive writes the events to a timestamped Parquet file in dir and
// returns its path.
func writeArchive(dir string, cutoff time.Time, events []types.LatencyEvent) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	name := fmt.Sprintf("events-%s.parquet", cutoff.UTC().Format("2006-01-02_15-04-05"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}

	writer := parquet.NewGenericWriter[EventRow](f,
		parquet.Compression(&parquet.Zstd))

	rows := make([]EventRow, len(events))
	for i := range events {
		rows[i] = eventToRow(&events[i])
	}

	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write archive rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("close archive writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close archive file: %w", err)
	}

	return path, nil
}
