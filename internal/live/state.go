// Package live holds the dashboard's mutable view of the remote host and
// applies poll responses to it.
//
// Every Apply call either applies a whole response or leaves the state as it
// was. Responses carry the sequence number they were issued with; one that
// arrives after a newer response for the same endpoint has been applied is
// dropped, so deltas are always taken against the last applied sample.
package live

import (
	"fmt"
	"time"

	"github.com/rileyhilliard/pstop/internal/logger"
	"github.com/rileyhilliard/pstop/internal/metrics"
	"github.com/rileyhilliard/pstop/internal/pstree"
	"github.com/rileyhilliard/pstop/internal/series"
	"github.com/rileyhilliard/pstop/internal/wire"
)

// Endpoint names one of the agent's snapshot endpoints.
type Endpoint int

const (
	SysInfo Endpoint = iota
	CPUInfo
	MemInfo
	Logs
	endpointCount
)

func (e Endpoint) String() string {
	switch e {
	case SysInfo:
		return "/sysinfo"
	case CPUInfo:
		return "/cpuinfo"
	case MemInfo:
		return "/meminfo"
	case Logs:
		return "/logs"
	default:
		return "unknown"
	}
}

// MemSeries is the name of the memory chart's only series.
const MemSeries = "memUsed"

// CoreSeries returns the CPU chart series name for a core.
func CoreSeries(no int) string {
	return fmt.Sprintf("cpu%d", no)
}

// Options configures a State.
type Options struct {
	// Samples is how many chart intervals the chart window spans.
	Samples int
	// GraphDelay is the chart poll cadence.
	GraphDelay time.Duration
	// LogLines caps the log buffer; 0 uses DefaultLogLines.
	LogLines int
	Logger   logger.Logger
}

// Result describes what an Apply call did.
type Result struct {
	Applied      bool
	Diff         pstree.Diff
	RangeChanged bool
	// NewLines counts log lines added by ApplyLogs.
	NewLines int
}

// State is the explicit context shared by the poll loop and the view.
type State struct {
	Tree  *pstree.Tree
	Cores *metrics.CoreTracker
	CPU   *series.Buffer
	Mem   *series.Buffer
	Logs  *LogBuffer

	lastGlobal *wire.GlobalCounters
	mem        wire.MemSample
	memAt      time.Time
	hasMem     bool
	ncpu       int

	logNext   int64
	logSource string

	issued  [endpointCount]uint64
	applied [endpointCount]uint64

	rangeChanged bool
	log          logger.Logger
}

// New creates an empty state.
func New(opts Options) *State {
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}

	s := &State{
		Tree:  pstree.New(),
		Cores: metrics.NewCoreTracker(),
		CPU:   series.New(opts.Samples, opts.GraphDelay),
		Mem:   series.New(opts.Samples, opts.GraphDelay),
		Logs:  NewLogBuffer(opts.LogLines),
		log:   log,

		logNext: -1,
	}
	s.CPU.SetLogger(log)
	s.Mem.SetLogger(log)
	s.CPU.SetRange(series.Range{Min: 0, Max: 100})
	s.Tree.OnRemove = func(p pstree.Process) {
		s.log.Info("process %d (%s) removed", p.PID, p.Name)
	}
	return s
}

// Issue returns the sequence number for a new request to e.
func (s *State) Issue(e Endpoint) uint64 {
	s.issued[e]++
	return s.issued[e]
}

func (s *State) stale(e Endpoint, seq uint64) bool {
	if seq <= s.applied[e] {
		s.log.Debug("%s: dropped response %d, already applied %d", e, seq, s.applied[e])
		return true
	}
	return false
}

// ApplySysInfo applies a full snapshot: the process tree and memory. The
// per-core counters it carries are not charted; only /cpuinfo feeds the CPU
// chart, so every core delta spans one chart interval. at is the time the
// request was issued and stamps the chart points.
func (s *State) ApplySysInfo(seq uint64, at time.Time, info *wire.SysInfo) (Result, error) {
	if info == nil || s.stale(SysInfo, seq) {
		return Result{}, nil
	}

	samples, err := wire.Processes(info.PS)
	if err != nil {
		return Result{}, err
	}

	var global wire.GlobalCounters
	if info.CPUInfo.Global != nil {
		global = *info.CPUInfo.Global
	}
	if global.NCPU <= 0 {
		global.NCPU = len(info.CPUInfo.CPUs)
	}
	cycle := metrics.NewCycle(s.lastGlobal, global, info.MemInfo.MemTotal)

	diff, err := s.Tree.Reconcile(samples, cycle)
	if err != nil {
		return Result{}, err
	}

	s.applied[SysInfo] = seq
	s.lastGlobal = &global
	s.ncpu = global.NCPU
	changed := s.applyMem(at, info.MemInfo)

	if len(diff.Added) > 0 || len(diff.Evicted) > 0 {
		s.log.Debug("sysinfo %d: %d processes, +%d -%d", seq, s.Tree.Len(), len(diff.Added), len(diff.Evicted))
	}
	return Result{Applied: true, Diff: diff, RangeChanged: changed}, nil
}

// ApplyCPUInfo applies a lightweight per-core sample to the CPU chart.
func (s *State) ApplyCPUInfo(seq uint64, at time.Time, info *wire.CPUInfo) (Result, error) {
	if info == nil || s.stale(CPUInfo, seq) {
		return Result{}, nil
	}
	s.applied[CPUInfo] = seq
	s.applyCores(at, info.CPUs)
	return Result{Applied: true}, nil
}

// ApplyMemInfo applies a memory sample to the memory chart.
func (s *State) ApplyMemInfo(seq uint64, at time.Time, mem *wire.MemSample) (Result, error) {
	if mem == nil || s.stale(MemInfo, seq) {
		return Result{}, nil
	}
	s.applied[MemInfo] = seq
	changed := s.applyMem(at, *mem)
	return Result{Applied: true, RangeChanged: changed}, nil
}

func (s *State) applyCores(at time.Time, cpus []wire.CoreSample) {
	for _, u := range s.Cores.Update(cpus) {
		s.CPU.Append(CoreSeries(u.No), at, u.UserPct)
	}
	if s.ncpu == 0 {
		s.ncpu = s.Cores.Count()
	}
}

// applyMem records mem unless a sample taken later was already applied,
// which happens when a slow /sysinfo lands after a newer /meminfo.
func (s *State) applyMem(at time.Time, mem wire.MemSample) bool {
	if s.hasMem && !at.After(s.memAt) {
		s.log.Debug("memory sample from %s is older than %s, skipped", at.Format(time.RFC3339Nano), s.memAt.Format(time.RFC3339Nano))
		return false
	}
	s.mem = mem
	s.memAt = at
	s.hasMem = true
	s.Mem.Append(MemSeries, at, float64(mem.MemUsed))
	changed := s.Mem.SetRange(series.Range{Min: 0, Max: float64(mem.MemTotal)})
	if changed {
		s.rangeChanged = true
	}
	return changed
}

// ApplyLogs appends the lines of a log snapshot. Lines starting before the
// offset already read are skipped, so two requests for the same offset
// never duplicate lines.
func (s *State) ApplyLogs(seq uint64, at time.Time, snap *wire.LogSnapshot) (Result, error) {
	if snap == nil || s.stale(Logs, seq) {
		return Result{}, nil
	}
	s.applied[Logs] = seq

	if snap.Source != s.logSource {
		if s.logSource != "" {
			s.log.Info("log source changed from %s to %s", s.logSource, snap.Source)
		}
		s.logSource = snap.Source
	}
	if snap.Reset {
		s.log.Info("%s was truncated, reading from the start", snap.Source)
		s.logNext = -1
	}

	added := 0
	for _, l := range snap.Lines {
		if s.logNext >= 0 && l.Offset < s.logNext {
			continue
		}
		s.Logs.Append(l)
		added++
	}
	if snap.Next > s.logNext || snap.Reset {
		s.logNext = snap.Next
	}
	return Result{Applied: true, NewLines: added}, nil
}

// LogSince is the offset the next log request should start from, -1 before
// the first one.
func (s *State) LogSince() int64 {
	return s.logNext
}

// LogSource is the file the agent follows, empty when none.
func (s *State) LogSource() string {
	return s.logSource
}

// RangeChanged reports whether the memory chart's range moved since the
// last call, and clears the flag.
func (s *State) RangeChanged() bool {
	changed := s.rangeChanged
	s.rangeChanged = false
	return changed
}

// Memory returns the last applied memory sample.
func (s *State) Memory() (wire.MemSample, bool) {
	return s.mem, s.hasMem
}

// NCPU returns the core count of the host, 0 before the first sample.
func (s *State) NCPU() int {
	return s.ncpu
}

// CoreNames returns the CPU chart series names ordered by core number.
func (s *State) CoreNames() []string {
	usage := s.Cores.Usage()
	names := make([]string, len(usage))
	for i, u := range usage {
		names[i] = CoreSeries(u.No)
	}
	return names
}

// SetGraphDelay changes the chart cadence. Stored points are kept.
func (s *State) SetGraphDelay(d time.Duration) {
	s.CPU.ResetDelay(d)
	s.Mem.ResetDelay(d)
}

// PauseCharts freezes both charts.
func (s *State) PauseCharts() {
	s.CPU.Stop()
	s.Mem.Stop()
}

// ResumeCharts restarts chart animation.
func (s *State) ResumeCharts() {
	s.CPU.Start()
	s.Mem.Start()
}
