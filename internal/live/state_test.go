package live

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rileyhilliard/pstop/internal/errors"
	"github.com/rileyhilliard/pstop/internal/logger"
	"github.com/rileyhilliard/pstop/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newState(t *testing.T) (*State, *logger.BufferLogger) {
	t.Helper()
	log := logger.NewBufferLogger()
	return New(Options{Samples: 60, GraphDelay: time.Second, Logger: log}), log
}

func sysinfo(t *testing.T, totalTime float64, memUsed, memTotal uint64, procs ...wire.Process) *wire.SysInfo {
	t.Helper()
	ps, err := wire.Compress(procs)
	require.NoError(t, err)
	return &wire.SysInfo{
		CPUInfo: wire.CPUInfo{
			Global: &wire.GlobalCounters{TotalTime: totalTime, NCPU: 2},
			CPUs: []wire.CoreSample{
				{No: 0, User: uint64(totalTime / 4), Idle: uint64(totalTime / 4)},
				{No: 1, Idle: uint64(totalTime / 2)},
			},
		},
		MemInfo: wire.MemSample{MemTotal: memTotal, MemUsed: memUsed},
		PS:      ps,
	}
}

func TestApplySysInfo_EndToEnd(t *testing.T) {
	s, log := newState(t)

	poll1 := sysinfo(t, 1000, 100, 1000,
		wire.Process{PID: 1, UTime: 10},
		wire.Process{PID: 2, PPID: 1, UTime: 10},
	)
	res, err := s.ApplySysInfo(s.Issue(SysInfo), t0, poll1)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.ElementsMatch(t, []int{1, 2}, res.Diff.Added)

	poll2 := sysinfo(t, 1200, 100, 1000, wire.Process{PID: 1, UTime: 30})
	res, err = s.ApplySysInfo(s.Issue(SysInfo), t0.Add(time.Second), poll2)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, res.Diff.Died)

	p1, _ := s.Tree.Get(1)
	assert.InDelta(t, 20.0, p1.CPUPct, 1e-9, "200 ticks over 2 cores, 20 ticks used")
	p2, _ := s.Tree.Get(2)
	assert.True(t, p2.IsDead())
	assert.Equal(t, []int{2}, s.Tree.Children(1))

	poll3 := sysinfo(t, 1400, 100, 1000, wire.Process{PID: 1, UTime: 30})
	res, err = s.ApplySysInfo(s.Issue(SysInfo), t0.Add(2*time.Second), poll3)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, res.Diff.Evicted)
	assert.Empty(t, s.Tree.Children(1))
	assert.True(t, log.Contains("process 2"))
}

func TestApplySysInfo_StaleResponseDropped(t *testing.T) {
	s, log := newState(t)

	first := s.Issue(SysInfo)
	second := s.Issue(SysInfo)

	_, err := s.ApplySysInfo(second, t0.Add(time.Second), sysinfo(t, 1200, 0, 0, wire.Process{PID: 1, UTime: 50}))
	require.NoError(t, err)

	res, err := s.ApplySysInfo(first, t0, sysinfo(t, 1000, 0, 0, wire.Process{PID: 1, UTime: 10}, wire.Process{PID: 9}))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	_, ok := s.Tree.Get(9)
	assert.False(t, ok)
	assert.True(t, log.Contains("dropped response"))

	// Deltas continue from the applied sample, not the late one.
	_, err = s.ApplySysInfo(s.Issue(SysInfo), t0.Add(2*time.Second), sysinfo(t, 1400, 0, 0, wire.Process{PID: 1, UTime: 70}))
	require.NoError(t, err)
	p, _ := s.Tree.Get(1)
	assert.InDelta(t, 20.0, p.CPUPct, 1e-9)
}

func TestApplySysInfo_MalformedLeavesStateUnchanged(t *testing.T) {
	s, _ := newState(t)
	_, err := s.ApplySysInfo(s.Issue(SysInfo), t0, sysinfo(t, 1000, 10, 100, wire.Process{PID: 1}))
	require.NoError(t, err)
	memLen := s.Mem.Len(MemSeries)

	var badArity wire.ColumnList
	require.NoError(t, json.Unmarshal([]byte(`{"ctab":["pid","ppid"],"list":[[1]]}`), &badArity))
	bad := sysinfo(t, 1200, 20, 100)
	bad.PS = badArity

	_, err = s.ApplySysInfo(s.Issue(SysInfo), t0.Add(time.Second), bad)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrProtocol))

	cyclic := sysinfo(t, 1200, 20, 100, wire.Process{PID: 5, PPID: 6}, wire.Process{PID: 6, PPID: 5})
	_, err = s.ApplySysInfo(s.Issue(SysInfo), t0.Add(time.Second), cyclic)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSnapshot))

	assert.Equal(t, 1, s.Tree.Len())
	assert.Equal(t, memLen, s.Mem.Len(MemSeries))
	mem, _ := s.Memory()
	assert.Equal(t, uint64(10), mem.MemUsed)
}

func TestApplyCPUInfo_CoreSeries(t *testing.T) {
	s, _ := newState(t)

	_, err := s.ApplyCPUInfo(s.Issue(CPUInfo), t0, &wire.CPUInfo{CPUs: []wire.CoreSample{
		{No: 0, User: 0, Idle: 0},
		{No: 1, User: 0, Idle: 0},
	}})
	require.NoError(t, err)
	assert.Empty(t, s.CPU.Names(), "first sample is only a baseline")

	_, err = s.ApplyCPUInfo(s.Issue(CPUInfo), t0.Add(time.Second), &wire.CPUInfo{CPUs: []wire.CoreSample{
		{No: 0, User: 25, Idle: 75},
		{No: 1, User: 50, Idle: 50},
	}})
	require.NoError(t, err)

	assert.Equal(t, []string{"cpu0", "cpu1"}, s.CoreNames())
	last, ok := s.CPU.Last("cpu1")
	require.True(t, ok)
	assert.InDelta(t, 50.0, last.Value, 1e-9)
	assert.Equal(t, 100.0, s.CPU.Range().Max)
	assert.Equal(t, 2, s.NCPU())
}

func TestApplyMemInfo_RangeChangedOnlyOnChange(t *testing.T) {
	s, _ := newState(t)

	res, err := s.ApplyMemInfo(s.Issue(MemInfo), t0, &wire.MemSample{MemTotal: 8192, MemUsed: 1024})
	require.NoError(t, err)
	assert.True(t, res.RangeChanged)
	assert.True(t, s.RangeChanged())
	assert.False(t, s.RangeChanged(), "flag clears on read")

	res, err = s.ApplyMemInfo(s.Issue(MemInfo), t0.Add(time.Second), &wire.MemSample{MemTotal: 8192, MemUsed: 2048})
	require.NoError(t, err)
	assert.False(t, res.RangeChanged)
	assert.False(t, s.RangeChanged())

	res, err = s.ApplyMemInfo(s.Issue(MemInfo), t0.Add(2*time.Second), &wire.MemSample{MemTotal: 16384, MemUsed: 2048})
	require.NoError(t, err)
	assert.True(t, res.RangeChanged)
	assert.Equal(t, []float64{1024, 2048, 2048}, s.Mem.Values(MemSeries, 0))
}

func TestApply_NilIsNoop(t *testing.T) {
	s, _ := newState(t)

	res, err := s.ApplySysInfo(1, t0, nil)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	res, err = s.ApplyCPUInfo(1, t0, nil)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	res, err = s.ApplyMemInfo(1, t0, nil)
	require.NoError(t, err)
	assert.False(t, res.Applied)
}

func TestChartsPauseAndDelay(t *testing.T) {
	s, _ := newState(t)

	s.PauseCharts()
	assert.False(t, s.CPU.Running())
	assert.False(t, s.Mem.Running())
	s.ResumeCharts()
	assert.True(t, s.CPU.Running())

	s.SetGraphDelay(500 * time.Millisecond)
	assert.Equal(t, 30*time.Second, s.CPU.Window())
	assert.Equal(t, 30*time.Second, s.Mem.Window())
}

func TestEndpointString(t *testing.T) {
	assert.Equal(t, "/sysinfo", SysInfo.String())
	assert.Equal(t, "/cpuinfo", CPUInfo.String())
	assert.Equal(t, "/meminfo", MemInfo.String())
}

func TestCoincidentPollsDoNotSpikeCPUChart(t *testing.T) {
	s, _ := newState(t)

	core := func(user, idle uint64) []wire.CoreSample {
		return []wire.CoreSample{{No: 0, User: user, Idle: idle}}
	}
	_, err := s.ApplyCPUInfo(s.Issue(CPUInfo), t0, &wire.CPUInfo{CPUs: core(0, 0)})
	require.NoError(t, err)
	_, err = s.ApplyCPUInfo(s.Issue(CPUInfo), t0.Add(2*time.Second), &wire.CPUInfo{CPUs: core(50, 150)})
	require.NoError(t, err)

	// The process poll lands a tick after the chart poll, on the same timer edge.
	info := sysinfo(t, 1000, 10, 100, wire.Process{PID: 1})
	info.CPUInfo.CPUs = core(51, 150)
	_, err = s.ApplySysInfo(s.Issue(SysInfo), t0.Add(2*time.Second+5*time.Millisecond), info)
	require.NoError(t, err)

	_, err = s.ApplyCPUInfo(s.Issue(CPUInfo), t0.Add(4*time.Second), &wire.CPUInfo{CPUs: core(100, 300)})
	require.NoError(t, err)

	assert.Equal(t, []float64{25, 25}, s.CPU.Values("cpu0", 0))
	assert.Equal(t, 2, s.NCPU(), "core count still comes from /sysinfo")
}

func TestLateSysInfoKeepsNewerMemory(t *testing.T) {
	s, _ := newState(t)

	sysSeq := s.Issue(SysInfo)
	_, err := s.ApplyMemInfo(s.Issue(MemInfo), t0.Add(time.Second), &wire.MemSample{MemTotal: 16384, MemUsed: 4096})
	require.NoError(t, err)
	require.True(t, s.RangeChanged())

	res, err := s.ApplySysInfo(sysSeq, t0, sysinfo(t, 1000, 1024, 8192, wire.Process{PID: 1}))
	require.NoError(t, err)
	assert.True(t, res.Applied, "the process tree still applies")
	assert.False(t, res.RangeChanged)
	assert.False(t, s.RangeChanged())

	mem, _ := s.Memory()
	assert.Equal(t, uint64(4096), mem.MemUsed)
	assert.Equal(t, 16384.0, s.Mem.Range().Max)
	assert.Equal(t, []float64{4096}, s.Mem.Values(MemSeries, 0))
}

func logSnap(next int64, reset bool, lines ...wire.LogLine) *wire.LogSnapshot {
	return &wire.LogSnapshot{Source: "/var/log/app.log", Lines: lines, Next: next, Reset: reset}
}

func TestApplyLogs(t *testing.T) {
	s, log := newState(t)
	assert.Equal(t, int64(-1), s.LogSince())

	res, err := s.ApplyLogs(s.Issue(Logs), t0, logSnap(20, false,
		wire.LogLine{Offset: 0, PID: 1, Message: "a"},
		wire.LogLine{Offset: 10, PID: 2, Message: "b"},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, res.NewLines)
	assert.Equal(t, int64(20), s.LogSince())
	assert.Equal(t, "/var/log/app.log", s.LogSource())

	// Two requests issued from the same offset: the overlap is skipped.
	first, second := s.Issue(Logs), s.Issue(Logs)
	_, err = s.ApplyLogs(first, t0, logSnap(30, false, wire.LogLine{Offset: 20, PID: 1, Message: "c"}))
	require.NoError(t, err)
	res, err = s.ApplyLogs(second, t0, logSnap(40, false,
		wire.LogLine{Offset: 20, PID: 1, Message: "c"},
		wire.LogLine{Offset: 30, PID: 2, Message: "d"},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewLines)
	assert.Equal(t, 4, s.Logs.Len())

	res, err = s.ApplyLogs(first, t0, logSnap(99, false, wire.LogLine{Offset: 40, Message: "late"}))
	require.NoError(t, err)
	assert.False(t, res.Applied)

	res, err = s.ApplyLogs(s.Issue(Logs), t0, logSnap(5, true, wire.LogLine{Offset: 0, Message: "rotated"}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewLines)
	assert.Equal(t, int64(5), s.LogSince())
	assert.True(t, log.Contains("truncated"))
}

func TestLogBuffer(t *testing.T) {
	b := NewLogBuffer(3)
	for i := 1; i <= 5; i++ {
		b.Append(wire.LogLine{PID: i % 2, Message: string(rune('a' + i - 1))})
	}
	assert.Equal(t, 3, b.Len())

	msgs := func() []string {
		var out []string
		for _, l := range b.Lines() {
			out = append(out, l.Message)
		}
		return out
	}
	assert.Equal(t, []string{"c", "d", "e"}, msgs())

	b.FilterPID(1)
	assert.Equal(t, 1, b.Filter())
	assert.Equal(t, []string{"c", "e"}, msgs())

	b.ClearFilter()
	assert.Len(t, b.Lines(), 3)

	b.FilterPID(1)
	b.Clear()
	assert.Empty(t, b.Lines())
	assert.Equal(t, 1, b.Filter(), "clearing the lines keeps the filter")
}
