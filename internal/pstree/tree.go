package pstree

import (
	"sort"

	"github.com/rileyhilliard/pstop/internal/errors"
	"github.com/rileyhilliard/pstop/internal/metrics"
	"github.com/rileyhilliard/pstop/internal/wire"
)

// Diff lists what a Reconcile call changed, by pid.
type Diff struct {
	Added   []int
	Died    []int
	Evicted []int
	Revived []int
}

// Empty reports whether the poll changed tree membership.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Died) == 0 && len(d.Evicted) == 0 && len(d.Revived) == 0
}

// Tree is the reconciled process tree. It is not safe for concurrent use;
// the dashboard mutates and reads it from a single goroutine and hands
// Snapshot copies to anything else.
type Tree struct {
	procs map[int]*Process
	roots []int
	seq   uint64

	selected    int
	hasSelected bool

	// OnRemove is called once for every evicted record, after it has been
	// unlinked.
	OnRemove func(Process)
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{procs: make(map[int]*Process)}
}

// Reconcile merges one snapshot into the tree. The snapshot is validated
// before anything is touched: a duplicate pid or a ppid cycle returns an
// ErrSnapshot error and leaves the tree exactly as it was.
func (t *Tree) Reconcile(samples []wire.Process, cycle metrics.Cycle) (Diff, error) {
	if err := validate(samples); err != nil {
		return Diff{}, err
	}

	var diff Diff
	present := make(map[int]bool, len(samples))

	// Upsert.
	for _, s := range samples {
		if s.PID == RootPID {
			continue
		}
		present[s.PID] = true

		p, ok := t.procs[s.PID]
		switch {
		case !ok:
			t.seq++
			p = &Process{PID: s.PID, Expanded: true, seen: t.seq}
			t.procs[s.PID] = p
			diff.Added = append(diff.Added, s.PID)
		case p.IsDead():
			p.Liveness = Live
			diff.Revived = append(diff.Revived, s.PID)
		}
		t.merge(p, s, cycle)
	}

	// Dead sweep.
	var removed []Process
	for _, pid := range t.pidsInOrder() {
		if present[pid] {
			continue
		}
		p := t.procs[pid]
		if p.IsDead() {
			removed = append(removed, p.clone())
			delete(t.procs, pid)
			diff.Evicted = append(diff.Evicted, pid)
			continue
		}
		p.Liveness = DeadPendingEvict
		p.CPUPct = 0
		diff.Died = append(diff.Died, pid)
	}

	t.relink()

	if t.hasSelected {
		if _, ok := t.procs[t.selected]; !ok {
			t.hasSelected = false
			t.selected = 0
		}
	}

	if t.OnRemove != nil {
		for _, p := range removed {
			t.OnRemove(p)
		}
	}
	return diff, nil
}

func (t *Tree) merge(p *Process, s wire.Process, cycle metrics.Cycle) {
	cur := metrics.SampleOf(s)

	p.PPID = s.PPID
	p.Name = s.Name
	p.State = s.State
	p.User = s.User
	p.UTime = s.UTime
	p.STime = s.STime
	p.VSS = s.VSS
	p.RSS = s.RSS
	p.Nice = s.Nice
	p.Threads = s.Threads

	p.CPUPct = cycle.CPUPercent(p.last, cur)
	p.MemPct = cycle.MemPercent(cur)
	p.last = &cur
	p.samples++
}

// relink rebuilds every child list from scratch in first-appearance order,
// then assigns indents top-down.
func (t *Tree) relink() {
	order := t.pidsInOrder()

	parent := make(map[int]int, len(order))
	for _, pid := range order {
		p := t.procs[pid]
		p.Children = p.Children[:0]
		parent[pid] = RootPID
		if p.PPID != pid {
			if _, ok := t.procs[p.PPID]; ok {
				parent[pid] = p.PPID
			}
		}
	}
	t.breakDeadCycles(order, parent)

	t.roots = t.roots[:0]
	for _, pid := range order {
		p := t.procs[pid]
		p.Parent = parent[pid]
		if p.Parent == RootPID {
			t.roots = append(t.roots, pid)
			continue
		}
		pp := t.procs[p.Parent]
		pp.Children = append(pp.Children, pid)
	}

	var walk func(pids []int, indent int)
	walk = func(pids []int, indent int) {
		for _, pid := range pids {
			p := t.procs[pid]
			p.Indent = indent
			walk(p.Children, indent+1)
		}
	}
	walk(t.roots, 0)
}

// breakDeadCycles detaches dead records that would close a loop. Snapshot
// validation rules out cycles among live processes, but a dead record still
// hangs under its former parent, and that parent may now claim the dead pid
// as its own parent.
func (t *Tree) breakDeadCycles(order []int, parent map[int]int) {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[int]int, len(order))

	for _, start := range order {
		var path []int
		pid := start
		for pid != RootPID && state[pid] == unvisited {
			state[pid] = onPath
			path = append(path, pid)
			pid = parent[pid]
		}
		if pid != RootPID && state[pid] == onPath {
			for i := len(path) - 1; i >= 0; i-- {
				if t.procs[path[i]].IsDead() {
					parent[path[i]] = RootPID
					break
				}
				if path[i] == pid {
					break
				}
			}
		}
		for _, p := range path {
			state[p] = done
		}
	}
}

func (t *Tree) pidsInOrder() []int {
	pids := make([]int, 0, len(t.procs))
	for pid := range t.procs {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool {
		return t.procs[pids[i]].seen < t.procs[pids[j]].seen
	})
	return pids
}

func validate(samples []wire.Process) error {
	ppid := make(map[int]int, len(samples))
	for _, s := range samples {
		if s.PID < 0 {
			return errors.Newf(errors.ErrSnapshot, "negative pid %d in snapshot", s.PID)
		}
		if s.PID == RootPID {
			continue
		}
		if _, dup := ppid[s.PID]; dup {
			return errors.Newf(errors.ErrSnapshot, "duplicate pid %d in snapshot", s.PID)
		}
		ppid[s.PID] = s.PPID
	}

	done := make(map[int]bool, len(ppid))
	for _, s := range samples {
		if s.PID == RootPID || done[s.PID] {
			continue
		}
		onPath := make(map[int]bool)
		pid := s.PID
		for {
			if done[pid] {
				break
			}
			if onPath[pid] {
				return errors.Newf(errors.ErrSnapshot, "ppid cycle through pid %d in snapshot", pid)
			}
			next, known := ppid[pid]
			if !known {
				break
			}
			onPath[pid] = true
			pid = next
		}
		for p := range onPath {
			done[p] = true
		}
	}
	return nil
}

// Get returns a copy of the record for pid.
func (t *Tree) Get(pid int) (Process, bool) {
	p, ok := t.procs[pid]
	if !ok {
		return Process{}, false
	}
	return p.clone(), true
}

// Len returns the number of tracked records, live and dead.
func (t *Tree) Len() int {
	return len(t.procs)
}

// Roots returns the pids linked directly under RootPID.
func (t *Tree) Roots() []int {
	return append([]int(nil), t.roots...)
}

// Children returns the child pids of pid in first-appearance order. Passing
// RootPID is the same as Roots.
func (t *Tree) Children(pid int) []int {
	if pid == RootPID {
		return t.Roots()
	}
	p, ok := t.procs[pid]
	if !ok {
		return nil
	}
	return append([]int(nil), p.Children...)
}
