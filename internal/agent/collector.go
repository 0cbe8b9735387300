// Package agent produces the snapshots the dashboard polls: it samples the
// local machine and serves /sysinfo, /cpuinfo, /meminfo and /logs over HTTP.
package agent

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/rileyhilliard/pstop/internal/wire"
)

// Collector turns raw host counters into wire payloads. It remembers the
// machine-wide tick total of the last /sysinfo it produced so it can report
// totalDeltaTime alongside the raw total.
type Collector struct {
	host Host
	logs LogReader

	mu        sync.Mutex
	lastTotal float64
	hasLast   bool
}

// NewCollector creates a collector over host. A nil host samples the local
// machine.
func NewCollector(host Host) *Collector {
	if host == nil {
		host = SystemHost{}
	}
	return &Collector{host: host}
}

// FollowLog makes Logs read the file at path. An empty path follows nothing.
func (c *Collector) FollowLog(path string) {
	c.logs = LogReader{Path: path}
}

// Logs returns the followed log's lines from byte offset since on.
func (c *Collector) Logs(ctx context.Context, since int64) (*wire.LogSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.logs.Read(since)
}

// SysInfo samples cores, memory and the process list.
func (c *Collector) SysInfo(ctx context.Context) (*wire.SysInfo, error) {
	cpus, err := c.cores(ctx)
	if err != nil {
		return nil, err
	}
	memSample, err := c.MemInfo(ctx)
	if err != nil {
		return nil, err
	}
	procs, err := c.host.Processes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "sampling processes")
	}
	ps, err := wire.Compress(procs)
	if err != nil {
		return nil, errors.Wrap(err, "encoding process list")
	}

	var total float64
	for _, core := range cpus {
		total += float64(core.Total())
	}

	c.mu.Lock()
	global := &wire.GlobalCounters{TotalTime: total, NCPU: len(cpus)}
	if c.hasLast && total >= c.lastTotal {
		global.TotalDeltaTime = total - c.lastTotal
	}
	c.lastTotal = total
	c.hasLast = true
	c.mu.Unlock()

	return &wire.SysInfo{
		CPUInfo: wire.CPUInfo{Global: global, CPUs: cpus},
		MemInfo: *memSample,
		PS:      ps,
	}, nil
}

// CPUInfo samples the cores only.
func (c *Collector) CPUInfo(ctx context.Context) (*wire.CPUInfo, error) {
	cpus, err := c.cores(ctx)
	if err != nil {
		return nil, err
	}
	return &wire.CPUInfo{CPUs: cpus}, nil
}

// MemInfo samples memory and swap.
func (c *Collector) MemInfo(ctx context.Context) (*wire.MemSample, error) {
	vm, err := c.host.Memory(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "sampling memory")
	}
	sample := &wire.MemSample{
		MemTotal: vm.Total,
		MemUsed:  vm.Used,
		MemFree:  vm.Free,
		Buffers:  vm.Buffers,
		Cached:   vm.Cached,
	}

	// Swap is optional: some hosts (containers, macOS without sysctl access)
	// cannot report it.
	if sw, err := c.host.Swap(ctx); err == nil && sw != nil {
		sample.SwapTotal = sw.Total
		sample.SwapUsed = sw.Used
	}
	return sample, nil
}

func (c *Collector) cores(ctx context.Context) ([]wire.CoreSample, error) {
	times, err := c.host.CPUTimes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "sampling cpu")
	}
	cpus := make([]wire.CoreSample, len(times))
	for i, t := range times {
		cpus[i] = toCoreSample(i, t)
	}
	return cpus, nil
}
