package sampler

import (
	"context"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessInfo is one row of a process-table snapshot, reduced to the
// attributes classification and event descriptions need.
type ProcessInfo struct {
	PID        int32
	Name       string
	Cmdline    string
	CPUPercent float64
	MemoryKB   uint64
}

// ProcessTable enumerates the OS process table. It is an interface so
// samplers can be tested against a fake table.
type ProcessTable interface {
	// Snapshot returns the current process table. A failed snapshot is a
	// transient fault: the caller skips the tick and tries again later.
	Snapshot(ctx context.Context) ([]ProcessInfo, error)
}

// SystemProcessTable reads the live process table via gopsutil.
type SystemProcessTable struct{}

// NewSystemProcessTable returns a ProcessTable backed by the OS.
func NewSystemProcessTable() *SystemProcessTable {
	return &SystemProcessTable{}
}

// Snapshot enumerates the live process table. Per-process attribute reads
// can fail for processes that exit mid-scan or deny access; those rows are
// returned with whatever attributes were readable rather than failing the
// whole snapshot.
func (t *SystemProcessTable) Snapshot(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		info := ProcessInfo{PID: p.Pid}

		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue // gone or unreadable, skip the row
		}
		info.Name = name

		if cmdline, err := p.CmdlineWithContext(ctx); err == nil {
			info.Cmdline = cmdline
		}
		if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
			info.CPUPercent = cpu
		}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			info.MemoryKB = mi.RSS / 1024
		}

		infos = append(infos, info)
	}
	return infos, nil
}
