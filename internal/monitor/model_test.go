package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/pstop/internal/errors"
	"github.com/rileyhilliard/pstop/internal/live"
	"github.com/rileyhilliard/pstop/internal/logger"
	"github.com/rileyhilliard/pstop/internal/pstree"
	"github.com/rileyhilliard/pstop/internal/scheduler"
	"github.com/rileyhilliard/pstop/internal/wire"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeSource struct {
	mu    sync.Mutex
	procs []wire.Process
	cores []wire.CoreSample
	total float64
	mem   wire.MemSample
	logs  []wire.LogLine
	err   error
}

func (s *fakeSource) SysInfo(ctx context.Context) (*wire.SysInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	ps, err := wire.Compress(s.procs)
	if err != nil {
		return nil, err
	}
	s.total += 200
	return &wire.SysInfo{
		CPUInfo: wire.CPUInfo{
			Global: &wire.GlobalCounters{TotalTime: s.total, NCPU: 2},
			CPUs:   append([]wire.CoreSample(nil), s.cores...),
		},
		MemInfo: s.mem,
		PS:      ps,
	}, nil
}

func (s *fakeSource) CPUInfo(ctx context.Context) (*wire.CPUInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &wire.CPUInfo{CPUs: append([]wire.CoreSample(nil), s.cores...)}, nil
}

func (s *fakeSource) MemInfo(ctx context.Context) (*wire.MemSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	m := s.mem
	return &m, nil
}

// Logs serves s.logs as if each line were 10 bytes long.
func (s *fakeSource) Logs(ctx context.Context, since int64) (*wire.LogSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	snap := &wire.LogSnapshot{Source: "/var/log/app.log", Lines: []wire.LogLine{}}
	for i, l := range s.logs {
		l.Offset = int64(i * 10)
		if l.Offset >= since {
			snap.Lines = append(snap.Lines, l)
		}
	}
	snap.Next = int64(len(s.logs) * 10)
	return snap, nil
}

func (s *fakeSource) Name() string { return "fake://box" }
func (s *fakeSource) Close() error { return nil }

func (s *fakeSource) set(fn func(s *fakeSource)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

type harness struct {
	src      *fakeSource
	clock    *fakeClock
	log      *logger.BufferLogger
	selected []int
	sorts    []string
}

func defaultProcs() []wire.Process {
	return []wire.Process{
		{PID: 1, Name: "init", User: "root", State: "S", Threads: 1, RSS: 4096},
		{PID: 10, PPID: 1, Name: "sshd", User: "root", State: "S", Threads: 1, RSS: 8192},
		{PID: 20, PPID: 1, Name: "bash", User: "dev", State: "R", Threads: 1, RSS: 2048},
	}
}

func newTestModel(t *testing.T, mut func(*Options)) (Model, *harness) {
	t.Helper()
	h := &harness{
		src: &fakeSource{
			procs: defaultProcs(),
			cores: []wire.CoreSample{{No: 0, Idle: 100}, {No: 1, Idle: 100}},
			mem:   wire.MemSample{MemTotal: 8 << 30, MemUsed: 2 << 30},
		},
		clock: &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		log:   logger.NewBufferLogger(),
	}
	opts := Options{
		Source:     h.src,
		Delay:      5 * time.Second,
		GraphDelay: 2 * time.Second,
		Samples:    60,
		Logger:     h.log,
		Clock:      h.clock,
		OnProcessSelected: func(r pstree.Row) {
			h.selected = append(h.selected, r.PID)
		},
		OnSort: func(f pstree.SortField, label string) {
			h.sorts = append(h.sorts, label)
		},
	}
	if mut != nil {
		mut(&opts)
	}

	m := NewModel(opts)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(Model), h
}

// poll runs one fetch for e synchronously and feeds the response back in.
func poll(t *testing.T, m Model, e live.Endpoint) Model {
	t.Helper()
	msg := m.fetchCmd(e)()
	updated, _ := m.Update(msg)
	return updated.(Model)
}

func press(t *testing.T, m Model, k string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch k {
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	case "home":
		msg = tea.KeyMsg{Type: tea.KeyHome}
	case "end":
		msg = tea.KeyMsg{Type: tea.KeyEnd}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func pids(rows []pstree.Row) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.PID
	}
	return out
}

func TestModel_PollBuildsTree(t *testing.T) {
	m, _ := newTestModel(t, nil)
	m = poll(t, m, live.SysInfo)

	rows := m.Rows()
	assert.Equal(t, []int{1, 10, 20}, pids(rows))
	assert.Equal(t, 0, rows[0].Indent)
	assert.Equal(t, 1, rows[1].Indent)
	assert.Equal(t, 1, rows[2].Indent)
	assert.Empty(t, m.LastError())
	assert.Equal(t, 2, m.State().NCPU())
}

func TestModel_TransportErrorKeepsState(t *testing.T) {
	m, h := newTestModel(t, nil)
	m = poll(t, m, live.SysInfo)

	h.src.set(func(s *fakeSource) {
		s.err = errors.New(errors.ErrTransport, "Can't reach agent", "")
	})
	m = poll(t, m, live.SysInfo)
	assert.Contains(t, m.LastError(), "Can't reach agent")
	assert.Equal(t, []int{1, 10, 20}, pids(m.Rows()))
	assert.True(t, h.log.HasLevel(logger.LevelWarn))
	assert.Contains(t, m.Render(), "Can't reach agent")

	h.src.set(func(s *fakeSource) { s.err = nil })
	m = poll(t, m, live.SysInfo)
	assert.Empty(t, m.LastError())
}

func TestModel_OutOfOrderResponseDropped(t *testing.T) {
	m, h := newTestModel(t, nil)

	first := m.fetchCmd(live.SysInfo)
	h.src.set(func(s *fakeSource) { s.procs = s.procs[:1] })
	second := m.fetchCmd(live.SysInfo)

	newer := second()
	h.src.set(func(s *fakeSource) { s.procs = defaultProcs() })
	older := first()

	updated, _ := m.Update(newer)
	m = updated.(Model)
	updated, _ = m.Update(older)
	m = updated.(Model)

	assert.Equal(t, []int{1}, pids(m.Rows()))
	assert.True(t, h.log.Contains("dropped response"))
}

func TestModel_Ticks(t *testing.T) {
	m, _ := newTestModel(t, nil)
	require.NotNil(t, m.Init())

	updated, cmd := m.Update(tickMsg{kind: scheduler.Metrics, gen: 1})
	m = updated.(Model)
	assert.NotNil(t, cmd, "current tick re-arms and polls")

	_, cmd = m.Update(tickMsg{kind: scheduler.Metrics, gen: 1})
	assert.Nil(t, cmd, "the same generation is stale once re-armed")

	_, cmd = m.Update(tickMsg{kind: scheduler.Chart, gen: 1})
	assert.NotNil(t, cmd)
}

func TestModel_PauseAndResume(t *testing.T) {
	m, h := newTestModel(t, nil)
	m.Init()

	m, cmd := press(t, m, " ")
	assert.Nil(t, cmd)
	assert.True(t, m.Paused())
	assert.False(t, m.State().CPU.Running())
	assert.False(t, m.State().Mem.Running())
	assert.Contains(t, m.Render(), "PAUSED")

	_, cmd = m.Update(tickMsg{kind: scheduler.Metrics, gen: 1})
	assert.Nil(t, cmd, "ticks armed before the pause are dropped")

	h.clock.now = h.clock.now.Add(time.Minute)
	m, cmd = press(t, m, "p")
	assert.NotNil(t, cmd)
	assert.False(t, m.Paused())
	assert.True(t, m.State().CPU.Running())
	assert.NotContains(t, m.Render(), "PAUSED")
}

func TestModel_StartPaused(t *testing.T) {
	m, _ := newTestModel(t, func(o *Options) { o.Paused = true })
	require.NotNil(t, m.Init(), "the first snapshot is still taken")
	assert.True(t, m.Paused())
	assert.False(t, m.State().CPU.Running())

	_, cmd := m.Update(tickMsg{kind: scheduler.Metrics, gen: 1})
	assert.Nil(t, cmd)
}

func TestModel_PausedChartsFrozen(t *testing.T) {
	m, h := newTestModel(t, nil)
	m = poll(t, m, live.CPUInfo)
	h.src.set(func(s *fakeSource) {
		s.cores = []wire.CoreSample{{No: 0, User: 50, Idle: 150}, {No: 1, Idle: 200}}
	})
	h.clock.now = h.clock.now.Add(2 * time.Second)
	m = poll(t, m, live.CPUInfo)

	m, _ = press(t, m, " ")
	frozen := m.chartFrame()

	// A response already in flight when the pause happened still lands.
	h.src.set(func(s *fakeSource) {
		s.cores = []wire.CoreSample{{No: 0, User: 150, Idle: 150}, {No: 1, Idle: 300}}
	})
	h.clock.now = h.clock.now.Add(2 * time.Second)
	m = poll(t, m, live.CPUInfo)

	last, ok := m.State().CPU.Last(live.CoreSeries(0))
	require.True(t, ok)
	assert.InDelta(t, 100.0, last.Value, 1e-9)
	assert.Equal(t, frozen, m.chartFrame())

	m, _ = press(t, m, " ")
	assert.NotEqual(t, frozen, m.chartFrame())
}

func TestModel_SelectionHookAndPersistence(t *testing.T) {
	m, h := newTestModel(t, nil)
	m = poll(t, m, live.SysInfo)

	m, _ = press(t, m, "down")
	m, _ = press(t, m, "j")
	assert.Equal(t, []int{1, 10}, h.selected)

	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, 10, sel.PID)

	m = poll(t, m, live.SysInfo)
	sel, ok = m.Selected()
	require.True(t, ok)
	assert.Equal(t, 10, sel.PID)
	assert.Equal(t, 1, m.cursor)

	m, _ = press(t, m, "up")
	m, _ = press(t, m, "up")
	assert.Equal(t, []int{1, 10, 1}, h.selected, "moving past the top does not fire again")
}

func TestModel_SelectionClearedOnEviction(t *testing.T) {
	m, h := newTestModel(t, nil)
	m = poll(t, m, live.SysInfo)
	m, _ = press(t, m, "G")
	sel, _ := m.Selected()
	require.Equal(t, 20, sel.PID)

	h.src.set(func(s *fakeSource) { s.procs = s.procs[:2] })
	m = poll(t, m, live.SysInfo)
	sel, ok := m.Selected()
	require.True(t, ok, "a dead process stays selectable until evicted")
	assert.True(t, sel.Dead)

	m = poll(t, m, live.SysInfo)
	_, ok = m.Selected()
	assert.False(t, ok)
	assert.Equal(t, -1, m.cursor)
	assert.Equal(t, []int{1, 10}, pids(m.Rows()))
}

func TestModel_ExpandCollapse(t *testing.T) {
	m, _ := newTestModel(t, nil)
	m = poll(t, m, live.SysInfo)
	m, _ = press(t, m, "down")

	m, _ = press(t, m, "left")
	assert.Equal(t, []int{1}, pids(m.Rows()))

	m = poll(t, m, live.SysInfo)
	assert.Equal(t, []int{1}, pids(m.Rows()), "collapse survives polls")

	m, _ = press(t, m, "right")
	assert.Equal(t, []int{1, 10, 20}, pids(m.Rows()))

	m, _ = press(t, m, "enter")
	assert.Len(t, m.Rows(), 1)
}

func TestModel_SortCycleAndCancel(t *testing.T) {
	m, h := newTestModel(t, nil)
	m = poll(t, m, live.SysInfo)

	m, _ = press(t, m, "s")
	assert.Equal(t, pstree.SortCPU, m.Sort().Field)
	for _, r := range m.Rows() {
		assert.Zero(t, r.Indent)
	}

	m, _ = press(t, m, "s")
	assert.Equal(t, pstree.SortMem, m.Sort().Field)

	m, _ = press(t, m, "S")
	assert.True(t, m.Sort().Reverse)

	m, _ = press(t, m, "x")
	assert.Equal(t, pstree.SortNone, m.Sort().Field)
	assert.Equal(t, []int{1, 10, 20}, pids(m.Rows()))

	assert.Equal(t, []string{"CPU%", "MEM%", "tree"}, h.sorts)

	m, _ = press(t, m, "x")
	assert.Len(t, h.sorts, 3, "cancelling twice reports once")
}

func TestModel_DelayCycles(t *testing.T) {
	m, _ := newTestModel(t, nil)

	m, _ = press(t, m, "d")
	process, _ := m.Delays()
	assert.Equal(t, 10*time.Second, process)

	m, _ = press(t, m, "d")
	process, _ = m.Delays()
	assert.Equal(t, time.Second, process)

	m, _ = press(t, m, "c")
	_, chart := m.Delays()
	assert.Equal(t, 5*time.Second, chart)
	assert.Equal(t, 5*time.Second, m.State().CPU.Delay())
	assert.Equal(t, 5*time.Second, m.State().Mem.Delay())
}

func TestModel_RefreshAndQuit(t *testing.T) {
	m, _ := newTestModel(t, nil)

	_, cmd := press(t, m, "r")
	assert.NotNil(t, cmd)

	m, cmd = press(t, m, "q")
	assert.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestModel_HelpOverlay(t *testing.T) {
	m, _ := newTestModel(t, nil)

	m, _ = press(t, m, "?")
	assert.Contains(t, m.Render(), "Keyboard Shortcuts")
	assert.Contains(t, m.Render(), "chart delay")

	m, _ = press(t, m, "esc")
	assert.NotContains(t, m.Render(), "Keyboard Shortcuts")
}

func TestModel_UnhandledKey(t *testing.T) {
	m, _ := newTestModel(t, nil)
	handled, cmd := m.HandleKeyMsg(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("z")})
	assert.False(t, handled)
	assert.Nil(t, cmd)
}

func TestModel_LogFilterFollowsSelection(t *testing.T) {
	m, h := newTestModel(t, nil)
	h.src.set(func(s *fakeSource) {
		s.logs = []wire.LogLine{
			{PID: 10, Tag: "sshd", Message: "accepted key"},
			{PID: 20, Tag: "bash", Message: "command not found"},
		}
	})
	m = poll(t, m, live.SysInfo)
	m = poll(t, m, live.Logs)

	out := stripANSI(m.renderLogPanel())
	assert.Contains(t, out, "Logs /var/log/app.log")
	assert.Contains(t, out, "accepted key")
	assert.Contains(t, out, "command not found")

	m, _ = press(t, m, "f")
	assert.True(t, m.PIDFilter())
	m, _ = press(t, m, "down")
	m, _ = press(t, m, "down")
	assert.Equal(t, []int{1, 10}, h.selected, "the selection hook still fires")

	out = stripANSI(m.renderLogPanel())
	assert.Contains(t, out, "[pid 10]")
	assert.Contains(t, out, "accepted key")
	assert.NotContains(t, out, "command not found")

	m, _ = press(t, m, "f")
	assert.False(t, m.PIDFilter())
	assert.Contains(t, stripANSI(m.renderLogPanel()), "command not found")
}

func TestModel_LogsAppendWithoutDuplicates(t *testing.T) {
	m, h := newTestModel(t, nil)
	h.src.set(func(s *fakeSource) { s.logs = []wire.LogLine{{Message: "one"}} })
	m = poll(t, m, live.Logs)

	h.src.set(func(s *fakeSource) { s.logs = append(s.logs, wire.LogLine{Message: "two"}) })
	m = poll(t, m, live.Logs)
	m = poll(t, m, live.Logs)

	assert.Equal(t, 2, m.State().Logs.Len())
	assert.Equal(t, int64(20), m.State().LogSince())
}

func TestModel_ClearAndMinimizeLogs(t *testing.T) {
	m, h := newTestModel(t, nil)
	h.src.set(func(s *fakeSource) { s.logs = []wire.LogLine{{Message: "noise"}} })
	m = poll(t, m, live.Logs)

	m, _ = press(t, m, "C")
	assert.Zero(t, m.State().Logs.Len())
	assert.NotContains(t, stripANSI(m.renderLogPanel()), "noise")

	before, rows := m.table.Height, m.logRows()
	m, _ = press(t, m, "L")
	assert.True(t, m.LogsMinimized())
	assert.Equal(t, before+rows, m.table.Height, "the table takes the log's rows")
	assert.Contains(t, stripANSI(m.renderLogPanel()), "L to show")

	m, _ = press(t, m, "L")
	assert.Equal(t, before, m.table.Height)
}

func TestModel_LogScrollAndFollow(t *testing.T) {
	m, h := newTestModel(t, nil)
	lines := make([]wire.LogLine, 50)
	for i := range lines {
		lines[i] = wire.LogLine{Message: "line"}
	}
	h.src.set(func(s *fakeSource) { s.logs = lines })
	m = poll(t, m, live.Logs)
	assert.True(t, m.logView.AtBottom())

	m, _ = press(t, m, "[")
	assert.False(t, m.logFollow)
	assert.Contains(t, stripANSI(m.renderLogPanel()), "[scrolled]")

	m, _ = press(t, m, "e")
	assert.True(t, m.logFollow)
	assert.True(t, m.logView.AtBottom())
}
