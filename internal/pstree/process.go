// Package pstree reconstructs a parent/child process tree across successive
// snapshots.
//
// Records are keyed by pid and hold parent and child links as pids, never as
// pointers, so eviction is a map delete plus a child-list rebuild. A process
// that disappears from a snapshot is kept for one more poll as
// DeadPendingEvict (shown dimmed under its former parent) and removed on the
// next poll that still does not list it.
package pstree

import "github.com/rileyhilliard/pstop/internal/metrics"

// RootPID is the implicit top of the tree. It is never stored as a record.
const RootPID = 0

// Liveness tracks a record through the two-generation dead sweep.
type Liveness int

const (
	Live Liveness = iota
	DeadPendingEvict
)

func (l Liveness) String() string {
	if l == DeadPendingEvict {
		return "dead"
	}
	return "live"
}

// Process is one tracked process.
type Process struct {
	PID     int
	PPID    int
	Name    string
	State   string
	User    string
	UTime   uint64
	STime   uint64
	VSS     uint64
	RSS     uint64
	Nice    int
	Threads int

	CPUPct float64
	MemPct float64
	Indent int

	Liveness Liveness
	Expanded bool

	// Parent is the pid this record is currently linked under; RootPID for
	// roots, including temporary roots whose ppid is unknown.
	Parent   int
	Children []int

	last    *metrics.CounterSample
	samples int
	seen    uint64
}

// IsDead reports whether the process is waiting for eviction.
func (p *Process) IsDead() bool {
	return p.Liveness == DeadPendingEvict
}

// HasDelta reports whether CPUPct was derived from two samples of this pid.
func (p *Process) HasDelta() bool {
	return p.samples >= 2
}

func (p *Process) clone() Process {
	c := *p
	c.Children = append([]int(nil), p.Children...)
	c.last = nil
	return c
}
