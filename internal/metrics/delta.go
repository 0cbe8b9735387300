// Package metrics derives normalized percentages from raw monotonic counters.
//
// Everything here is pure arithmetic over two successive samples. Missing
// data (first observation, zero denominators, counters that went backwards)
// yields 0 rather than an error: those are expected transient states of a
// live poll loop.
package metrics

import "github.com/rileyhilliard/pstop/internal/wire"

// CounterSample is one subject's raw counters at one poll instant.
type CounterSample struct {
	UserTicks uint64
	SysTicks  uint64
	MemUsed   uint64
}

// CPUTicks returns user plus system ticks.
func (s CounterSample) CPUTicks() uint64 {
	return s.UserTicks + s.SysTicks
}

// SampleOf extracts the counters of a decoded process row.
func SampleOf(p wire.Process) CounterSample {
	return CounterSample{UserTicks: p.UTime, SysTicks: p.STime, MemUsed: p.RSS}
}

// CPUPercent returns the share of one core that the subject used between
// prev and cur:
//
//	(cur.ticks - prev.ticks) / (globalDeltaTime / ncpu) * 100
//
// clamped to [0, 100]. prev == nil, globalDeltaTime <= 0, ncpu <= 0 and a
// backwards counter all yield 0.
func CPUPercent(prev *CounterSample, cur CounterSample, globalDeltaTime float64, ncpu int) float64 {
	if prev == nil || globalDeltaTime <= 0 || ncpu <= 0 {
		return 0
	}
	if cur.CPUTicks() < prev.CPUTicks() {
		return 0
	}
	delta := float64(cur.CPUTicks() - prev.CPUTicks())
	return clampPercent(delta / (globalDeltaTime / float64(ncpu)) * 100)
}

// MemPercent returns used/total*100 clamped to [0, 100]; total == 0 yields 0.
func MemPercent(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return clampPercent(float64(used) / float64(total) * 100)
}

func clampPercent(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// Cycle is the normalization context of a single poll. It is built once per
// poll and shared by every process of that poll so all of them are divided
// by the same denominator.
type Cycle struct {
	GlobalDelta float64
	NCPU        int
	MemTotal    uint64
}

// NewCycle derives the cycle for cur given the last applied global counters.
// When both sides carry a raw TotalTime the delta is computed locally; this
// keeps deltas relative to what was applied even when responses arrive late.
// Otherwise the agent-supplied TotalDeltaTime is used. A backwards TotalTime
// (agent restart) gives a zero delta, which zeroes every CPU% for the cycle.
func NewCycle(last *wire.GlobalCounters, cur wire.GlobalCounters, memTotal uint64) Cycle {
	c := Cycle{NCPU: cur.NCPU, MemTotal: memTotal}

	switch {
	case last != nil && last.TotalTime > 0 && cur.TotalTime > 0:
		if cur.TotalTime > last.TotalTime {
			c.GlobalDelta = cur.TotalTime - last.TotalTime
		}
	case last == nil && cur.TotalTime > 0:
		// First applied sample: nothing to diff against yet.
	default:
		c.GlobalDelta = cur.TotalDeltaTime
	}
	return c
}

// CPUPercent applies the cycle's shared denominator.
func (c Cycle) CPUPercent(prev *CounterSample, cur CounterSample) float64 {
	return CPUPercent(prev, cur, c.GlobalDelta, c.NCPU)
}

// MemPercent applies the cycle's memory total.
func (c Cycle) MemPercent(cur CounterSample) float64 {
	return MemPercent(cur.MemUsed, c.MemTotal)
}
