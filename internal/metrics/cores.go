package metrics

import (
	"sort"

	"github.com/rileyhilliard/pstop/internal/wire"
)

// CoreUsage is the derived load of one core.
type CoreUsage struct {
	No      int
	UserPct float64
	BusyPct float64
}

// CoreTracker derives per-core percentages from successive raw CoreSamples.
// It keeps the last applied sample of every core, so /sysinfo and /cpuinfo
// responses feed the same baseline regardless of which poll produced them.
type CoreTracker struct {
	last  map[int]wire.CoreSample
	usage map[int]CoreUsage
}

// NewCoreTracker creates an empty tracker.
func NewCoreTracker() *CoreTracker {
	return &CoreTracker{
		last:  make(map[int]wire.CoreSample),
		usage: make(map[int]CoreUsage),
	}
}

// Update applies a set of core samples and returns the cores whose usage was
// recomputed. A core seen for the first time only records its baseline. A
// sample whose total went backwards is older than what was applied (a late
// response) and is ignored.
func (t *CoreTracker) Update(samples []wire.CoreSample) []CoreUsage {
	var updated []CoreUsage
	for _, cur := range samples {
		prev, ok := t.last[cur.No]
		if ok && cur.Total() < prev.Total() {
			continue
		}
		t.last[cur.No] = cur
		if !ok {
			continue
		}

		u := CoreUsage{No: cur.No}
		totalDelta := float64(cur.Total() - prev.Total())
		if totalDelta > 0 {
			u.UserPct = clampPercent(float64(sub(cur.User, prev.User)) / totalDelta * 100)
			idle := sub(cur.Idle+cur.IOWait, prev.Idle+prev.IOWait)
			u.BusyPct = clampPercent((totalDelta - float64(idle)) / totalDelta * 100)
		}
		t.usage[cur.No] = u
		updated = append(updated, u)
	}
	return updated
}

// Usage returns the last derived usage of every core that has one, ordered
// by core number.
func (t *CoreTracker) Usage() []CoreUsage {
	out := make([]CoreUsage, 0, len(t.usage))
	for _, u := range t.usage {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].No < out[j].No })
	return out
}

// Count returns the number of cores seen so far.
func (t *CoreTracker) Count() int {
	return len(t.last)
}

func sub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}
