package monitor

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/pstop/internal/errors"
	"github.com/rileyhilliard/pstop/internal/live"
	"github.com/rileyhilliard/pstop/internal/logger"
	"github.com/rileyhilliard/pstop/internal/pstree"
	"github.com/rileyhilliard/pstop/internal/scheduler"
	"github.com/rileyhilliard/pstop/internal/transport"
	"github.com/rileyhilliard/pstop/internal/wire"
)

// Options configures a dashboard Model.
type Options struct {
	Source     transport.Source
	Delay      time.Duration
	GraphDelay time.Duration
	Samples    int
	Paused     bool
	RowColors  bool
	// LogLines caps the log panel's history; 0 uses live.DefaultLogLines.
	LogLines int
	// PIDFilter starts with the log narrowed to the selected process.
	PIDFilter bool
	// MinimizeLogs starts with the log panel collapsed to its title.
	MinimizeLogs bool
	// Timeout bounds a single poll. Zero uses transport.DefaultTimeout.
	Timeout time.Duration
	Logger  logger.Logger
	Clock   scheduler.Clock

	// OnProcessSelected is called whenever the cursor lands on a process,
	// after the log filter has followed the selection.
	OnProcessSelected func(pstree.Row)
	// OnSort is called when the sort field changes; SortNone means tree order.
	OnSort func(field pstree.SortField, label string)
}

// Model is the Bubble Tea model for the process dashboard.
type Model struct {
	source  transport.Source
	state   *live.State
	sched   *scheduler.Scheduler
	clock   scheduler.Clock
	log     logger.Logger
	timeout time.Duration
	paused  bool

	sort   pstree.SortSpec
	rows   []pstree.Row
	cursor int // index into rows, -1 when nothing is selected

	table      viewport.Model
	tableReady bool
	width      int
	height     int

	logView       viewport.Model
	logReady      bool
	logFollow     bool
	pidFilter     bool
	logsMinimized bool

	rowColors bool
	showHelp  bool
	quitting  bool

	lastUpdate time.Time
	lastErr    string

	// frozen holds the chart frame captured when the dashboard was paused.
	frozen string

	onSelect func(pstree.Row)
	onSort   func(pstree.SortField, string)
}

// tickMsg is delivered when a scheduler timer expires.
type tickMsg struct {
	kind scheduler.Kind
	gen  uint64
}

// responseMsg carries the outcome of one poll.
type responseMsg struct {
	endpoint live.Endpoint
	seq      uint64
	at       time.Time
	sys      *wire.SysInfo
	cpu      *wire.CPUInfo
	mem      *wire.MemSample
	logs     *wire.LogSnapshot
	err      error
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// NewModel creates a dashboard polling opts.Source.
func NewModel(opts Options) Model {
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = wallClock{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = transport.DefaultTimeout
	}

	state := live.New(live.Options{
		Samples:    opts.Samples,
		GraphDelay: opts.GraphDelay,
		LogLines:   opts.LogLines,
		Logger:     log,
	})
	if opts.Paused {
		state.PauseCharts()
	}

	return Model{
		source:    opts.Source,
		state:     state,
		sched:     scheduler.New(opts.Delay, opts.GraphDelay, clock),
		clock:     clock,
		log:       log,
		timeout:   timeout,
		paused:    opts.Paused,
		cursor:    -1,
		rowColors: opts.RowColors,
		onSelect:  opts.OnProcessSelected,
		onSort:    opts.OnSort,

		logFollow:     true,
		pidFilter:     opts.PIDFilter,
		logsMinimized: opts.MinimizeLogs,
	}
}

// Init arms both timers and takes the first snapshot right away.
func (m Model) Init() tea.Cmd {
	cmds := m.armCmds(m.sched.Start(m.paused))
	cmds = append(cmds, m.fetchCmd(live.SysInfo), m.fetchCmd(live.CPUInfo), m.fetchCmd(live.Logs))
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if handled, cmd := m.HandleKeyMsg(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tickMsg:
		arm, ok := m.sched.Fire(msg.kind, msg.gen)
		if !ok {
			return m, nil
		}
		cmds := []tea.Cmd{m.armCmd(arm)}
		switch msg.kind {
		case scheduler.Metrics:
			cmds = append(cmds, m.fetchCmd(live.SysInfo))
		case scheduler.Chart:
			cmds = append(cmds, m.fetchCmd(live.CPUInfo), m.fetchCmd(live.MemInfo), m.fetchCmd(live.Logs))
		}
		return m, tea.Batch(cmds...)

	case responseMsg:
		m.applyResponse(msg)
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.Render()
}

func (m Model) armCmd(a scheduler.Arm) tea.Cmd {
	return tea.Tick(a.Delay, func(time.Time) tea.Msg {
		return tickMsg{kind: a.Kind, gen: a.Gen}
	})
}

func (m Model) armCmds(arms []scheduler.Arm) []tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(arms))
	for _, a := range arms {
		cmds = append(cmds, m.armCmd(a))
	}
	return cmds
}

// fetchCmd issues a request to e. The sequence number and timestamp are
// taken now, on the update loop, so responses can be ordered on arrival.
func (m Model) fetchCmd(e live.Endpoint) tea.Cmd {
	seq := m.state.Issue(e)
	at := m.clock.Now()
	since := m.state.LogSince()
	src, timeout := m.source, m.timeout

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		msg := responseMsg{endpoint: e, seq: seq, at: at}
		switch e {
		case live.SysInfo:
			msg.sys, msg.err = src.SysInfo(ctx)
		case live.CPUInfo:
			msg.cpu, msg.err = src.CPUInfo(ctx)
		case live.MemInfo:
			msg.mem, msg.err = src.MemInfo(ctx)
		case live.Logs:
			msg.logs, msg.err = src.Logs(ctx, since)
		}
		return msg
	}
}

func (m *Model) applyResponse(msg responseMsg) {
	if msg.err != nil {
		m.log.Warn("%s: %s", msg.endpoint, errors.Summary(msg.err))
		m.lastErr = errors.Summary(msg.err)
		return
	}

	var (
		res live.Result
		err error
	)
	switch msg.endpoint {
	case live.SysInfo:
		res, err = m.state.ApplySysInfo(msg.seq, msg.at, msg.sys)
	case live.CPUInfo:
		res, err = m.state.ApplyCPUInfo(msg.seq, msg.at, msg.cpu)
	case live.MemInfo:
		res, err = m.state.ApplyMemInfo(msg.seq, msg.at, msg.mem)
	case live.Logs:
		res, err = m.state.ApplyLogs(msg.seq, msg.at, msg.logs)
	}
	if err != nil {
		m.log.Error("%s: %s", msg.endpoint, errors.Summary(err))
		m.lastErr = errors.Summary(err)
		return
	}
	if !res.Applied {
		return
	}

	m.lastErr = ""
	switch msg.endpoint {
	case live.SysInfo:
		m.lastUpdate = msg.at
		m.refreshRows()
	case live.Logs:
		if res.NewLines > 0 {
			m.syncLogs()
		}
	default:
		m.lastUpdate = msg.at
		// the chart panels may have grown
		m.syncTable()
	}
}

func (m *Model) togglePause() tea.Cmd {
	arms := m.sched.Toggle()
	m.paused = m.sched.Paused()
	if m.paused {
		m.frozen = m.renderCharts()
		m.state.PauseCharts()
		m.log.Info("paused")
		return nil
	}
	m.frozen = ""
	m.state.ResumeCharts()
	m.log.Info("resumed")
	return tea.Batch(m.armCmds(arms)...)
}

// refreshRows rebuilds the visible rows and re-finds the selected process.
func (m *Model) refreshRows() {
	m.rows = m.state.Tree.Rows(m.sort)

	m.cursor = -1
	if sel, ok := m.state.Tree.Selected(); ok {
		for i, r := range m.rows {
			if r.PID == sel.PID {
				m.cursor = i
				break
			}
		}
	}
	m.syncTable()
}

func (m *Model) moveCursor(delta int) {
	if len(m.rows) == 0 {
		return
	}
	base := m.cursor
	if base < 0 && delta < 0 {
		base = len(m.rows)
	}
	idx := base + delta
	if idx < 0 {
		idx = 0
	}
	if idx >= len(m.rows) {
		idx = len(m.rows) - 1
	}
	if idx == m.cursor {
		return
	}

	row := m.rows[idx]
	if !m.state.Tree.Select(row.PID) {
		return
	}
	m.cursor = idx
	m.syncTable()
	m.processSelected(row)
}

func (m *Model) setExpanded(expanded bool) {
	row, ok := m.state.Tree.Selected()
	if !ok {
		return
	}
	if m.state.Tree.SetExpanded(row.PID, expanded) {
		m.refreshRows()
	}
}

func (m *Model) setSort(order pstree.SortSpec) {
	changed := order.Field != m.sort.Field
	m.sort = order
	m.refreshRows()
	if changed && m.onSort != nil {
		m.onSort(order.Field, order.Field.Label())
	}
}

// resize fits the table viewport into whatever the header, charts and log
// panel leave.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	if !m.logReady {
		m.logView = viewport.New(width, m.logRows())
		m.logReady = true
	}
	m.syncLogs()

	h := m.tableHeight()
	if !m.tableReady {
		m.table = viewport.New(width, h)
		m.tableReady = true
	} else {
		m.table.Width = width
		m.table.Height = h
	}
	m.syncTable()
}

func (m Model) pageSize() int {
	if m.tableReady && m.table.Height > 1 {
		return m.table.Height - 1
	}
	return 10
}

// Paused reports whether polling is stopped.
func (m Model) Paused() bool {
	return m.paused
}

// Sort returns the active sort.
func (m Model) Sort() pstree.SortSpec {
	return m.sort
}

// Rows returns the rows currently on screen, in display order.
func (m Model) Rows() []pstree.Row {
	return m.rows
}

// Selected returns the process under the cursor.
func (m Model) Selected() (pstree.Row, bool) {
	return m.state.Tree.Selected()
}

// State exposes the live state for read-only use.
func (m Model) State() *live.State {
	return m.state
}

// Delays returns the current process and chart intervals.
func (m Model) Delays() (process, chart time.Duration) {
	return m.sched.Interval(scheduler.Metrics), m.sched.Interval(scheduler.Chart)
}

// PIDFilter reports whether the log follows the selected process.
func (m Model) PIDFilter() bool {
	return m.pidFilter
}

// LogsMinimized reports whether the log panel is collapsed.
func (m Model) LogsMinimized() bool {
	return m.logsMinimized
}

// LastError is the most recent poll failure, cleared by the next success.
func (m Model) LastError() string {
	return m.lastErr
}
