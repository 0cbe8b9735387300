// Package wire defines the JSON payloads exchanged between the pstop agent
// and the dashboard:
//
//	GET /sysinfo  -> SysInfo  {cpuinfo: {global, cpus}, meminfo, ps: {ctab, list}}
//	GET /cpuinfo  -> CPUInfo  {cpus}
//	GET /meminfo  -> MemSample
//	GET /logs     -> LogSnapshot (?since=<byte offset>)
//
// The process list travels in a columnar form (see ColumnList) to keep the
// payload small; every other field is plain JSON.
package wire

// SysInfo is the full snapshot served by /sysinfo.
type SysInfo struct {
	CPUInfo CPUInfo    `json:"cpuinfo"`
	MemInfo MemSample  `json:"meminfo"`
	PS      ColumnList `json:"ps"`
}

// CPUInfo carries per-core raw counters. Global is only present in /sysinfo.
type CPUInfo struct {
	Global *GlobalCounters `json:"global,omitempty"`
	CPUs   []CoreSample    `json:"cpus"`
}

// GlobalCounters is machine-wide CPU state, in clock ticks.
//
// TotalTime is the cumulative tick count across all cores. TotalDeltaTime is
// the agent's own delta since the previous /sysinfo it served; clients that
// see TotalTime compute their own delta against what they last applied.
type GlobalCounters struct {
	TotalTime      float64 `json:"totalTime"`
	TotalDeltaTime float64 `json:"totalDeltaTime"`
	NCPU           int     `json:"ncpu"`
}

// CoreSample holds the raw tick counters of one core.
type CoreSample struct {
	No      int    `json:"no"`
	User    uint64 `json:"user"`
	Nice    uint64 `json:"nice"`
	System  uint64 `json:"system"`
	Idle    uint64 `json:"idle"`
	IOWait  uint64 `json:"iowait"`
	IRQ     uint64 `json:"irq"`
	SoftIRQ uint64 `json:"softirq"`
	Steal   uint64 `json:"steal"`
}

// Total returns the sum of all tick counters for the core.
func (c CoreSample) Total() uint64 {
	return c.User + c.Nice + c.System + c.Idle + c.IOWait + c.IRQ + c.SoftIRQ + c.Steal
}

// MemSample is machine memory, in bytes.
type MemSample struct {
	MemTotal  uint64 `json:"memTotal"`
	MemUsed   uint64 `json:"memUsed"`
	MemFree   uint64 `json:"memFree"`
	Buffers   uint64 `json:"buffers"`
	Cached    uint64 `json:"cached"`
	SwapTotal uint64 `json:"swapTotal"`
	SwapUsed  uint64 `json:"swapUsed"`
}

// Process is one decoded row of the ps list. Tick counters are cumulative
// and never decrease while the process lives.
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
}
