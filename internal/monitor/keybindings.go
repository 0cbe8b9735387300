package monitor

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/pstop/internal/live"
	"github.com/rileyhilliard/pstop/internal/pstree"
	"github.com/rileyhilliard/pstop/internal/scheduler"
)

// ProcessDelays are the process poll intervals the delay key cycles through.
var ProcessDelays = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
}

// GraphDelays are the chart intervals the graph delay key cycles through.
var GraphDelays = []time.Duration{
	500 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
}

// nextDelay returns the first entry of steps above cur, wrapping to the
// first entry.
func nextDelay(steps []time.Duration, cur time.Duration) time.Duration {
	for _, d := range steps {
		if d > cur {
			return d
		}
	}
	return steps[0]
}

type keyMap struct {
	Quit       key.Binding
	Pause      key.Binding
	SelectPrev key.Binding
	SelectNext key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	First      key.Binding
	Last       key.Binding
	Toggle     key.Binding
	Expand     key.Binding
	Collapse   key.Binding
	CycleSort  key.Binding
	Reverse    key.Binding
	CancelSort key.Binding
	Delay      key.Binding
	GraphDelay key.Binding
	Refresh    key.Binding
	PIDFilter  key.Binding
	ClearLogs  key.Binding
	LogsEnd    key.Binding
	LogsUp     key.Binding
	LogsDown   key.Binding
	ToggleLogs key.Binding
	Help       key.Binding
}

// ShortHelp is the footer hint line.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Pause, k.CycleSort, k.Help}
}

// FullHelp groups every binding for the help overlay.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.SelectPrev, k.SelectNext, k.PageUp, k.PageDown, k.First, k.Last},
		{k.Toggle, k.Expand, k.Collapse, k.CycleSort, k.Reverse, k.CancelSort},
		{k.PIDFilter, k.ClearLogs, k.LogsUp, k.LogsDown, k.LogsEnd, k.ToggleLogs},
		{k.Pause, k.Delay, k.GraphDelay, k.Refresh, k.Help, k.Quit},
	}
}

var keys = keyMap{
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Pause:      key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "pause")),
	SelectPrev: key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "previous process")),
	SelectNext: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next process")),
	PageUp:     key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
	PageDown:   key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),
	First:      key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("home", "first process")),
	Last:       key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("end", "last process")),
	Toggle:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "expand/collapse")),
	Expand:     key.NewBinding(key.WithKeys("right", "l", "+"), key.WithHelp("→/+", "expand")),
	Collapse:   key.NewBinding(key.WithKeys("left", "h", "-"), key.WithHelp("←/-", "collapse")),
	CycleSort:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "cycle sort")),
	Reverse:    key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "reverse sort")),
	CancelSort: key.NewBinding(key.WithKeys("x", "esc"), key.WithHelp("x", "tree view")),
	Delay:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "process delay")),
	GraphDelay: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "chart delay")),
	Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh now")),
	PIDFilter:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "log: selected pid")),
	ClearLogs:  key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "clear log")),
	LogsEnd:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "log: follow end")),
	LogsUp:     key.NewBinding(key.WithKeys("["), key.WithHelp("[", "scroll log up")),
	LogsDown:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "scroll log down")),
	ToggleLogs: key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "hide/show log")),
	Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// HandleKeyMsg processes keyboard input and updates the model.
// Returns true if the key was handled.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	// Help toggle takes priority
	if key.Matches(msg, keys.Help) {
		m.showHelp = !m.showHelp
		return true, nil
	}

	// If help is showing, Esc closes it
	if m.showHelp && msg.String() == "esc" {
		m.showHelp = false
		return true, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return true, tea.Quit

	case key.Matches(msg, keys.Pause):
		return true, m.togglePause()

	case key.Matches(msg, keys.SelectPrev):
		m.moveCursor(-1)
	case key.Matches(msg, keys.SelectNext):
		m.moveCursor(1)
	case key.Matches(msg, keys.PageUp):
		m.moveCursor(-m.pageSize())
	case key.Matches(msg, keys.PageDown):
		m.moveCursor(m.pageSize())
	case key.Matches(msg, keys.First):
		m.moveCursor(-len(m.rows))
	case key.Matches(msg, keys.Last):
		m.moveCursor(len(m.rows))

	case key.Matches(msg, keys.Toggle):
		if row, ok := m.state.Tree.Selected(); ok {
			m.state.Tree.Toggle(row.PID)
			m.refreshRows()
		}
	case key.Matches(msg, keys.Expand):
		m.setExpanded(true)
	case key.Matches(msg, keys.Collapse):
		m.setExpanded(false)

	case key.Matches(msg, keys.CycleSort):
		m.setSort(pstree.SortSpec{Field: m.sort.Field.Next()})
	case key.Matches(msg, keys.Reverse):
		if m.sort.Field != pstree.SortNone {
			m.setSort(pstree.SortSpec{Field: m.sort.Field, Reverse: !m.sort.Reverse})
		}
	case key.Matches(msg, keys.CancelSort):
		if m.sort.Field != pstree.SortNone {
			m.setSort(pstree.SortSpec{})
		}

	case key.Matches(msg, keys.Delay):
		d := nextDelay(ProcessDelays, m.sched.Interval(scheduler.Metrics))
		m.sched.SetInterval(scheduler.Metrics, d)
		m.log.Info("process delay set to %s", d)
	case key.Matches(msg, keys.GraphDelay):
		d := nextDelay(GraphDelays, m.sched.Interval(scheduler.Chart))
		m.sched.SetInterval(scheduler.Chart, d)
		m.state.SetGraphDelay(d)
		m.log.Info("chart delay set to %s", d)

	case key.Matches(msg, keys.Refresh):
		return true, tea.Batch(m.fetchCmd(live.SysInfo), m.fetchCmd(live.CPUInfo), m.fetchCmd(live.Logs))

	case key.Matches(msg, keys.PIDFilter):
		m.togglePIDFilter()
	case key.Matches(msg, keys.ClearLogs):
		m.clearLogs()
	case key.Matches(msg, keys.LogsEnd):
		m.logsToEnd()
	case key.Matches(msg, keys.LogsUp):
		m.scrollLogs(-1)
	case key.Matches(msg, keys.LogsDown):
		m.scrollLogs(1)
	case key.Matches(msg, keys.ToggleLogs):
		m.toggleLogs()

	default:
		return false, nil
	}
	return true, nil
}
