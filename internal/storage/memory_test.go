package storage

import (
	"context"
	"testing"
	"time"

	"github.com/xtxerr/lagmon/internal/errors"
	"github.com/xtxerr/lagmon/internal/types"
)

func eventAt(ts time.Time, desc string) types.LatencyEvent {
	return types.NewEvent(ts, types.ClassEditor, types.SourceProcessScan, time.Millisecond, desc)
}

func TestMemoryStore_InsertAssignsAscendingIDs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Now().UTC()
	ids, err := store.Insert(ctx, []types.LatencyEvent{
		eventAt(now, "a"),
		eventAt(now, "b"),
		eventAt(now, "c"),
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("got %d ids, want 3", len(ids))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("ids not ascending: %v", ids)
		}
	}

	more, err := store.Insert(ctx, []types.LatencyEvent{eventAt(now, "d")})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if more[0] <= ids[2] {
		t.Errorf("id %d from later insert should exceed %d", more[0], ids[2])
	}
}

func TestMemoryStore_RecentNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var batch []types.LatencyEvent
	for i := 0; i < 5; i++ {
		batch = append(batch, eventAt(base.Add(time.Duration(i)*time.Minute), string(rune('a'+i))))
	}
	if _, err := store.Insert(ctx, batch); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	want := []string{"e", "d", "c"}
	for i, ev := range got {
		if ev.Description != want[i] {
			t.Errorf("event %d description = %q, want %q", i, ev.Description, want[i])
		}
	}
}

func TestMemoryStore_RecentRejectsBadLimit(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Recent(context.Background(), 0); !errors.Is(err, errors.ErrInvalidLimit) {
		t.Errorf("Recent(0) error = %v, want ErrInvalidLimit", err)
	}
}

func TestMemoryStore_PurgeStrictlyOlder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if _, err := store.Insert(ctx, []types.LatencyEvent{
		eventAt(cutoff.Add(-time.Hour), "old"),
		eventAt(cutoff, "boundary"),
		eventAt(cutoff.Add(time.Hour), "new"),
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	removed, err := store.Purge(ctx, cutoff)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	remaining, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("remaining = %d, want 2 (boundary event retained)", len(remaining))
	}
	for _, ev := range remaining {
		if ev.Description == "old" {
			t.Error("event older than cutoff should be purged")
		}
	}
}

func TestMemoryStore_OlderThan(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store.Insert(ctx, []types.LatencyEvent{
		eventAt(cutoff.Add(-2*time.Hour), "oldest"),
		eventAt(cutoff.Add(-time.Hour), "older"),
		eventAt(cutoff, "boundary"),
	})

	expired, err := store.OlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("OlderThan: %v", err)
	}
	if len(expired) != 2 {
		t.Fatalf("expired = %d, want 2", len(expired))
	}
	if expired[0].Description != "oldest" || expired[1].Description != "older" {
		t.Errorf("expired events out of order: %q, %q", expired[0].Description, expired[1].Description)
	}
}

func TestMemoryStore_CountAndLastEventTime(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, ok, _ := store.LastEventTime(ctx); ok {
		t.Error("empty store should report no last event")
	}

	newest := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	store.Insert(ctx, []types.LatencyEvent{
		eventAt(newest.Add(-time.Minute), "a"),
		eventAt(newest, "b"),
	})

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("Count = %d, want 2", count)
	}

	last, ok, err := store.LastEventTime(ctx)
	if err != nil || !ok {
		t.Fatalf("LastEventTime: ok=%v err=%v", ok, err)
	}
	if !last.Equal(newest) {
		t.Errorf("LastEventTime = %v, want %v", last, newest)
	}
}
