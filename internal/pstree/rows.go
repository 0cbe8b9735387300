package pstree

import (
	"sort"
	"strings"
)

// SortField selects the column a flat listing is ordered by. SortNone keeps
// the tree layout.
type SortField int

const (
	SortNone SortField = iota
	SortCPU
	SortMem
	SortPID
	SortName
	SortUser
	SortThreads
)

var sortLabels = map[SortField]string{
	SortNone:    "tree",
	SortCPU:     "CPU%",
	SortMem:     "MEM%",
	SortPID:     "PID",
	SortName:    "Name",
	SortUser:    "User",
	SortThreads: "Threads",
}

// Label is the column header the field sorts by.
func (f SortField) Label() string {
	return sortLabels[f]
}

// Next returns the field after f, skipping SortNone. Cancelling a sort is a
// separate action.
func (f SortField) Next() SortField {
	n := f + 1
	if n > SortThreads {
		n = SortCPU
	}
	return n
}

// SortSpec orders a flat listing. Numeric fields default to descending,
// text fields to ascending; Reverse flips either.
type SortSpec struct {
	Field   SortField
	Reverse bool
}

// Row is a read-only view of one record prepared for display.
type Row struct {
	PID         int
	PPID        int
	Name        string
	State       string
	User        string
	CPUPct      float64
	MemPct      float64
	RSS         uint64
	VSS         uint64
	Threads     int
	Nice        int
	Indent      int
	Dead        bool
	Expanded    bool
	HasChildren bool
	HasDelta    bool
}

func (t *Tree) row(p *Process) Row {
	return Row{
		PID:         p.PID,
		PPID:        p.PPID,
		Name:        p.Name,
		State:       p.State,
		User:        p.User,
		CPUPct:      p.CPUPct,
		MemPct:      p.MemPct,
		RSS:         p.RSS,
		VSS:         p.VSS,
		Threads:     p.Threads,
		Nice:        p.Nice,
		Indent:      p.Indent,
		Dead:        p.IsDead(),
		Expanded:    p.Expanded,
		HasChildren: len(p.Children) > 0,
		HasDelta:    p.HasDelta(),
	}
}

// Rows returns the visible rows. With SortNone they come in tree order and
// the descendants of collapsed records are omitted. Any other field gives a
// flat list of every record with Indent cleared.
func (t *Tree) Rows(order SortSpec) []Row {
	if order.Field == SortNone {
		return t.treeRows(false)
	}

	rows := make([]Row, 0, len(t.procs))
	for _, p := range t.procs {
		r := t.row(p)
		r.Indent = 0
		rows = append(rows, r)
	}
	less := lessFunc(order.Field)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if order.Reverse {
			a, b = b, a
		}
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return rows[i].PID < rows[j].PID
	})
	return rows
}

// Snapshot returns every record in tree order regardless of collapsed
// state. The rows are copies and safe to hand to other goroutines.
func (t *Tree) Snapshot() []Row {
	return t.treeRows(true)
}

func (t *Tree) treeRows(all bool) []Row {
	rows := make([]Row, 0, len(t.procs))
	var walk func(pids []int)
	walk = func(pids []int) {
		for _, pid := range pids {
			p := t.procs[pid]
			rows = append(rows, t.row(p))
			if all || p.Expanded {
				walk(p.Children)
			}
		}
	}
	walk(t.roots)
	return rows
}

func lessFunc(f SortField) func(a, b Row) bool {
	switch f {
	case SortCPU:
		return func(a, b Row) bool { return a.CPUPct > b.CPUPct }
	case SortMem:
		return func(a, b Row) bool { return a.MemPct > b.MemPct }
	case SortPID:
		return func(a, b Row) bool { return a.PID < b.PID }
	case SortName:
		return func(a, b Row) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case SortUser:
		return func(a, b Row) bool { return a.User < b.User }
	case SortThreads:
		return func(a, b Row) bool { return a.Threads > b.Threads }
	default:
		return func(a, b Row) bool { return false }
	}
}

// Select marks pid as the selected record. Unknown pids are rejected.
func (t *Tree) Select(pid int) bool {
	if _, ok := t.procs[pid]; !ok {
		return false
	}
	t.selected = pid
	t.hasSelected = true
	return true
}

// ClearSelection drops the current selection.
func (t *Tree) ClearSelection() {
	t.selected = 0
	t.hasSelected = false
}

// Selected returns the selected record's row. Selection survives polls and
// is cleared when the record is evicted.
func (t *Tree) Selected() (Row, bool) {
	if !t.hasSelected {
		return Row{}, false
	}
	p, ok := t.procs[t.selected]
	if !ok {
		return Row{}, false
	}
	return t.row(p), true
}

// Toggle flips the expanded state of pid and returns the new state.
func (t *Tree) Toggle(pid int) bool {
	p, ok := t.procs[pid]
	if !ok {
		return false
	}
	p.Expanded = !p.Expanded
	return p.Expanded
}

// SetExpanded sets the expanded state of pid. It returns false for unknown
// pids.
func (t *Tree) SetExpanded(pid int, expanded bool) bool {
	p, ok := t.procs[pid]
	if !ok {
		return false
	}
	p.Expanded = expanded
	return true
}
