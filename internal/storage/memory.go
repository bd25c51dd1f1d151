package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xtxerr/lagmon/internal/errors"
	"github.com/xtxerr/lagmon/internal/types"
)

// MemoryStore is an in-memory EventStore. It backs tests and acts as a
// stand-in when no database path is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	events []types.LatencyEvent
	nextID int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Insert appends the batch, assigning sequential ids.
func (m *MemoryStore) Insert(ctx context.Context, events []types.LatencyEvent) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(events))
	for i := range events {
		ev := events[i]
		id := m.nextID
		m.nextID++
		ev.ID = &id
		m.events = append(m.events, ev)
		ids = append(ids, id)
	}
	return ids, nil
}

// Recent returns up to limit events, newest first.
func (m *MemoryStore) Recent(ctx context.Context, limit int) ([]types.LatencyEvent, error) {
	if limit <= 0 {
		return nil, errors.ErrInvalidLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sorted := make([]types.LatencyEvent, len(m.events))
	copy(sorted, m.events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return *sorted[i].ID > *sorted[j].ID
		}
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	if limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

// OlderThan returns events strictly older than cutoff, oldest first.
func (m *MemoryStore) OlderThan(ctx context.Context, cutoff time.Time) ([]types.LatencyEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.LatencyEvent
	for i := range m.events {
		if m.events[i].Timestamp.Before(cutoff) {
			out = append(out, m.events[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Purge deletes events strictly older than cutoff.
func (m *MemoryStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.events[:0]
	var removed int64
	for i := range m.events {
		if m.events[i].Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, m.events[i])
	}
	m.events = kept
	return removed, nil
}

// Count returns the number of stored events.
func (m *MemoryStore) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.events)), nil
}

// LastEventTime returns the newest stored timestamp.
func (m *MemoryStore) LastEventTime(ctx context.Context) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.events) == 0 {
		return time.Time{}, false, nil
	}
	newest := m.events[0].Timestamp
	for i := range m.events {
		if m.events[i].Timestamp.After(newest) {
			newest = m.events[i].Timestamp
		}
	}
	return newest, true, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
