package aggregator

import (
	"math"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/xtxerr/lagmon/internal/types"
)

// minuteSlot accumulates one minute of durations for a class: running
// count/sum/min/max plus a sketch for percentile estimates. Values are
// stored in microseconds.
type minuteSlot struct {
	minute int64 // unix minute this slot currently holds; 0 = empty
	count  int64
	sum    float64
	min    float64
	max    float64
	lastTS time.Time
	sketch *ddsketch.DDSketch
}

func (s *minuteSlot) reset(minute int64, accuracy float64) {
	s.minute = minute
	s.count = 0
	s.sum = 0
	s.min = math.MaxFloat64
	s.max = -math.MaxFloat64
	s.lastTS = time.Time{}

	// The sketch has no clear operation; a stale slot gets a fresh one.
	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err == nil {
		s.sketch = sketch
	}
}

// classWindow is the rolling window for one component class: a ring of
// per-minute slots merged on read. Updates are O(1); a slot whose minute
// has rotated out of the horizon is reset in place on its next write, so
// memory never grows with event volume.
type classWindow struct {
	mu       sync.RWMutex
	class    types.ComponentClass
	accuracy float64
	slots    []minuteSlot
}

func newClassWindow(class types.ComponentClass, windowMinutes int, accuracy float64) *classWindow {
	return &classWindow{
		class:    class,
		accuracy: accuracy,
		slots:    make([]minuteSlot, windowMinutes),
	}
}

func (w *classWindow) record(d time.Duration, ts time.Time) {
	minute := ts.Unix() / 60
	micros := float64(d.Microseconds())

	w.mu.Lock()
	defer w.mu.Unlock()

	slot := &w.slots[minute%int64(len(w.slots))]
	if slot.minute != minute {
		slot.reset(minute, w.accuracy)
	}

	slot.count++
	slot.sum += micros
	if micros < slot.min {
		slot.min = micros
	}
	if micros > slot.max {
		slot.max = micros
	}
	if ts.After(slot.lastTS) {
		slot.lastTS = ts
	}
	if slot.sketch != nil {
		slot.sketch.Add(micros)
	}
}

// snapshot merges the in-horizon slots into one immutable view. The read
// lock excludes writers, so the merge sees consistent slot state.
func (w *classWindow) snapshot(now time.Time) types.PerformanceSnapshot {
	cutoffMinute := now.Unix()/60 - int64(len(w.slots)) + 1

	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := types.PerformanceSnapshot{Class: w.class}

	merged, err := ddsketch.NewDefaultDDSketch(w.accuracy)
	if err != nil {
		merged = nil
	}

	var (
		count      int64
		sum        float64
		min        = math.MaxFloat64
		max        = -math.MaxFloat64
		lastUpdate time.Time
	)

	for i := range w.slots {
		slot := &w.slots[i]
		if slot.count == 0 || slot.minute < cutoffMinute {
			continue
		}

		count += slot.count
		sum += slot.sum
		if slot.min < min {
			min = slot.min
		}
		if slot.max > max {
			max = slot.max
		}
		if slot.lastTS.After(lastUpdate) {
			lastUpdate = slot.lastTS
		}
		if merged != nil && slot.sketch != nil {
			merged.MergeWith(slot.sketch)
		}
	}

	if count == 0 {
		return snap
	}

	snap.Count = count
	snap.AvgMicros = int64(sum / float64(count))
	snap.MinMicros = int64(min)
	snap.MaxMicros = int64(max)
	snap.LastUpdated = lastUpdate
	snap.RatePerSec = float64(count) / (float64(len(w.slots)) * 60.0)

	if merged != nil {
		if p50, err := merged.GetValueAtQuantile(0.50); err == nil {
			snap.P50Micros = int64(p50)
		}
		if p95, err := merged.GetValueAtQuantile(0.95); err == nil {
			snap.P95Micros = int64(p95)
		}
		if p99, err := merged.GetValueAtQuantile(0.99); err == nil {
			snap.P99Micros = int64(p99)
		}
	}

	return snap
}

// slotCount reports the fixed number of slots; bounded-memory tests use it.
func (w *classWindow) slotCount() int {
	return len(w.slots)
}
