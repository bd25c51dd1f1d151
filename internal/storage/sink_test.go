package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xtxerr/lagmon/internal/bus"
	"github.com/xtxerr/lagmon/internal/types"
)

// flakyStore wraps a MemoryStore and fails the first n Insert calls.
type flakyStore struct {
	*MemoryStore
	mu       sync.Mutex
	failures int
	attempts int
}

func (f *flakyStore) Insert(ctx context.Context, events []types.LatencyEvent) ([]int64, error) {
	f.mu.Lock()
	f.attempts++
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()

	if fail {
		return nil, errors.New("disk full")
	}
	return f.MemoryStore.Insert(ctx, events)
}

func (f *flakyStore) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func runSink(t *testing.T, store EventStore, opts SinkOptions, publish func(*bus.Bus)) *Sink {
	t.Helper()

	b := bus.New(256)
	sub, err := b.Subscribe("sink")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	sink := NewSink(store, sub, opts)

	done := make(chan struct{})
	go func() {
		sink.Run(context.Background())
		close(done)
	}()

	publish(b)
	b.Close()
	<-done
	return sink
}

func TestSink_DrainsOnBusClose(t *testing.T) {
	store := NewMemoryStore()
	sink := runSink(t, store, SinkOptions{BatchSize: 4, FlushInterval: time.Hour}, func(b *bus.Bus) {
		for i := 0; i < 10; i++ {
			b.Publish(eventAt(time.Now().UTC(), "ev"))
		}
	})

	if got := sink.Stored(); got != 10 {
		t.Errorf("Stored = %d, want 10", got)
	}
	count, _ := store.Count(context.Background())
	if count != 10 {
		t.Errorf("store count = %d, want 10", count)
	}
}

func TestSink_FlushesPartialBatchOnTick(t *testing.T) {
	store := NewMemoryStore()

	b := bus.New(64)
	sub, _ := b.Subscribe("sink")
	sink := NewSink(store, sub, SinkOptions{BatchSize: 100, FlushInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sink.Run(ctx)
		close(done)
	}()

	b.Publish(eventAt(time.Now().UTC(), "ev"))

	deadline := time.Now().Add(time.Second)
	for sink.Stored() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if got := sink.Stored(); got != 1 {
		t.Errorf("Stored = %d, want 1 (partial batch should flush on tick)", got)
	}
}

func TestSink_RetriesThenRecovers(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(), failures: 2}

	sink := runSink(t, store, SinkOptions{
		BatchSize:     4,
		FlushInterval: time.Hour,
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
	}, func(b *bus.Bus) {
		for i := 0; i < 4; i++ {
			b.Publish(eventAt(time.Now().UTC(), "ev"))
		}
	})

	if got := sink.Stored(); got != 4 {
		t.Errorf("Stored = %d, want 4 (batch should succeed on retry)", got)
	}
	if got := sink.Dropped(); got != 0 {
		t.Errorf("Dropped = %d, want 0", got)
	}
	if got := sink.WriteErrors(); got != 2 {
		t.Errorf("WriteErrors = %d, want 2", got)
	}
	if got := store.attemptCount(); got != 3 {
		t.Errorf("insert attempts = %d, want 3", got)
	}
}

func TestSink_DropsBatchAfterExhaustedRetries(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(), failures: 100}

	sink := runSink(t, store, SinkOptions{
		BatchSize:     2,
		FlushInterval: time.Hour,
		RetryAttempts: 2,
		RetryBackoff:  time.Millisecond,
	}, func(b *bus.Bus) {
		b.Publish(eventAt(time.Now().UTC(), "a"))
		b.Publish(eventAt(time.Now().UTC(), "b"))
	})

	if got := sink.Dropped(); got != 2 {
		t.Errorf("Dropped = %d, want 2", got)
	}
	if got := sink.Stored(); got != 0 {
		t.Errorf("Stored = %d, want 0", got)
	}
	// 1 initial attempt + 2 retries.
	if got := store.attemptCount(); got != 3 {
		t.Errorf("insert attempts = %d, want 3", got)
	}
}

func TestSink_KeepsConsumingAfterDrop(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(), failures: 3}

	sink := runSink(t, store, SinkOptions{
		BatchSize:     2,
		FlushInterval: time.Hour,
		RetryAttempts: 2,
		RetryBackoff:  time.Millisecond,
	}, func(b *bus.Bus) {
		// First batch exhausts retries; second batch succeeds.
		for i := 0; i < 4; i++ {
			b.Publish(eventAt(time.Now().UTC(), "ev"))
		}
	})

	if got := sink.Dropped(); got != 2 {
		t.Errorf("Dropped = %d, want 2", got)
	}
	if got := sink.Stored(); got != 2 {
		t.Errorf("Stored = %d, want 2 (sink must keep consuming after a drop)", got)
	}
}
