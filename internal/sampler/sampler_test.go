package sampler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xtxerr/lagmon/config"
	"github.com/xtxerr/lagmon/internal/bus"
	"github.com/xtxerr/lagmon/internal/types"
)

// fakeTable returns a fixed process list, optionally failing the first
// few snapshots.
type fakeTable struct {
	mu       sync.Mutex
	procs    []ProcessInfo
	failures int
	calls    int
}

func (f *fakeTable) Snapshot(ctx context.Context) ([]ProcessInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("proc table busy")
	}
	out := make([]ProcessInfo, len(f.procs))
	copy(out, f.procs)
	return out, nil
}

func (f *fakeTable) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func editorRule() Rule {
	return Rule{
		Class:        types.ClassEditor,
		Source:       types.SourceProcessScan,
		NameContains: []string{"code"},
	}
}

func TestRuleMatches(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		proc ProcessInfo
		want bool
	}{
		{
			"name substring",
			Rule{NameContains: []string{"code"}},
			ProcessInfo{Name: "code-server"},
			true,
		},
		{
			"case insensitive",
			Rule{NameContains: []string{"code"}},
			ProcessInfo{Name: "Code Helper"},
			true,
		},
		{
			"no match",
			Rule{NameContains: []string{"code"}},
			ProcessInfo{Name: "nginx"},
			false,
		},
		{
			"cmdline substring",
			Rule{CmdlineContains: []string{"github.copilot"}},
			ProcessInfo{Name: "node", Cmdline: "/usr/bin/node github.copilot/agent.js"},
			true,
		},
		{
			"cpu floor filters idle",
			Rule{NameContains: []string{"bash"}, MinCPUPercent: 0.1},
			ProcessInfo{Name: "bash", CPUPercent: 0.0},
			false,
		},
		{
			"cpu floor passes busy",
			Rule{NameContains: []string{"bash"}, MinCPUPercent: 0.1},
			ProcessInfo{Name: "bash", CPUPercent: 2.5},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.Matches(&tt.proc); got != tt.want {
				t.Errorf("Matches(%+v) = %v, want %v", tt.proc, got, tt.want)
			}
		})
	}
}

func TestRuleFromConfig_LowercasesPatterns(t *testing.T) {
	rule := RuleFromConfig(config.SamplerConfig{
		Class:        "terminal",
		NameContains: []string{"Bash", "ZSH"},
	})
	if rule.Class != types.ClassTerminal {
		t.Errorf("Class = %v, want terminal", rule.Class)
	}
	if !rule.Matches(&ProcessInfo{Name: "bash"}) {
		t.Error("uppercase config pattern should match lowercase process name")
	}
}

func TestSampler_EmitsMatchedProcesses(t *testing.T) {
	table := &fakeTable{procs: []ProcessInfo{
		{PID: 100, Name: "code", CPUPercent: 1.2, MemoryKB: 2048},
		{PID: 101, Name: "code-server", CPUPercent: 0.4, MemoryKB: 4096},
		{PID: 102, Name: "nginx"},
	}}

	b := bus.New(64)
	sub, _ := b.Subscribe("test")

	s := New(editorRule(), 10*time.Millisecond, table, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// Enough time for several ticks even with the startup jitter.
	time.Sleep(150 * time.Millisecond)
	cancel()
	<-done
	b.Close()

	var events []types.LatencyEvent
	for ev := range sub.Events() {
		events = append(events, ev)
	}

	if len(events) < 8 {
		t.Fatalf("received %d events, want at least 8", len(events))
	}
	for _, ev := range events {
		if ev.Class != types.ClassEditor {
			t.Errorf("event class = %v, want editor", ev.Class)
		}
		if ev.Source != types.SourceProcessScan {
			t.Errorf("event source = %v, want process-scan", ev.Source)
		}
		if ev.Metadata["pid"] == nil {
			t.Error("event should carry pid metadata")
		}
	}
}

func TestSampler_TimestampsNonDecreasing(t *testing.T) {
	table := &fakeTable{procs: []ProcessInfo{{PID: 1, Name: "code"}}}
	b := bus.New(256)
	sub, _ := b.Subscribe("test")

	s := New(editorRule(), 5*time.Millisecond, table, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done
	b.Close()

	var prev time.Time
	for ev := range sub.Events() {
		if ev.Timestamp.Before(prev) {
			t.Fatalf("timestamp %v precedes previous %v", ev.Timestamp, prev)
		}
		prev = ev.Timestamp
	}
}

func TestSampler_SurvivesSnapshotFailure(t *testing.T) {
	table := &fakeTable{
		procs:    []ProcessInfo{{PID: 1, Name: "code"}},
		failures: 2,
	}
	b := bus.New(64)
	sub, _ := b.Subscribe("test")

	s := New(editorRule(), 10*time.Millisecond, table, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	time.Sleep(150 * time.Millisecond)
	cancel()
	<-done
	b.Close()

	stats := s.Stats()
	if stats.FailedTicks != 2 {
		t.Errorf("FailedTicks = %d, want 2", stats.FailedTicks)
	}

	// Later ticks recovered and emitted.
	count := 0
	for range sub.Events() {
		count++
	}
	if count == 0 {
		t.Error("sampler should emit after snapshot failures stop")
	}
	if table.callCount() < 3 {
		t.Errorf("snapshot calls = %d, want at least 3", table.callCount())
	}
}

func TestSampler_ZeroMatchesIsNotAnError(t *testing.T) {
	table := &fakeTable{procs: []ProcessInfo{{PID: 1, Name: "nginx"}}}
	b := bus.New(64)
	sub, _ := b.Subscribe("test")

	s := New(editorRule(), 10*time.Millisecond, table, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	time.Sleep(80 * time.Millisecond)
	cancel()
	<-done
	b.Close()

	if s.Stats().FailedTicks != 0 {
		t.Errorf("FailedTicks = %d, want 0", s.Stats().FailedTicks)
	}
	for range sub.Events() {
		t.Fatal("no events expected for unmatched processes")
	}
}
