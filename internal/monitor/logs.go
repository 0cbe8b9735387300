package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/pstop/internal/pstree"
	"github.com/rileyhilliard/pstop/internal/wire"
)

const (
	minLogRows = 3
	maxLogRows = 10
)

var (
	LogHeaderStyle = lipgloss.NewStyle().
			Foreground(ColorAccentDim).
			Bold(true)

	logLevelStyles = map[string]lipgloss.Style{
		"F": lipgloss.NewStyle().Foreground(ColorCritical).Bold(true),
		"E": lipgloss.NewStyle().Foreground(ColorCritical),
		"W": lipgloss.NewStyle().Foreground(ColorWarning),
		"I": lipgloss.NewStyle().Foreground(ColorTextPrimary),
		"D": lipgloss.NewStyle().Foreground(ColorTextSecondary),
		"V": lipgloss.NewStyle().Foreground(ColorTextMuted),
	}
)

// logRows is how many log lines the panel shows, 0 when minimized.
func (m Model) logRows() int {
	if m.logsMinimized {
		return 0
	}
	rows := m.height / 4
	if rows < minLogRows {
		rows = minLogRows
	}
	if rows > maxLogRows {
		rows = maxLogRows
	}
	return rows
}

// logPanelHeight counts the panel's title line.
func (m Model) logPanelHeight() int {
	return 1 + m.logRows()
}

// processSelected narrows the log to the selected process when the pid
// filter is on, then reports the selection.
func (m *Model) processSelected(row pstree.Row) {
	if m.pidFilter {
		m.state.Logs.FilterPID(row.PID)
		m.syncLogs()
	}
	if m.onSelect != nil {
		m.onSelect(row)
	}
}

func (m *Model) togglePIDFilter() {
	m.pidFilter = !m.pidFilter
	if !m.pidFilter {
		m.state.Logs.ClearFilter()
	} else if sel, ok := m.state.Tree.Selected(); ok {
		m.state.Logs.FilterPID(sel.PID)
	}
	m.syncLogs()
}

func (m *Model) clearLogs() {
	m.state.Logs.Clear()
	m.syncLogs()
}

func (m *Model) toggleLogs() {
	m.logsMinimized = !m.logsMinimized
	m.resize(m.width, m.height)
}

// scrollLogs moves the log view by delta lines. Scrolling back to the
// bottom resumes following new lines.
func (m *Model) scrollLogs(delta int) {
	if !m.logReady {
		return
	}
	m.logView.SetYOffset(m.logView.YOffset + delta)
	m.logFollow = m.logView.AtBottom()
}

func (m *Model) logsToEnd() {
	m.logFollow = true
	if m.logReady {
		m.logView.GotoBottom()
	}
}

// syncLogs pushes the filtered lines into the log viewport.
func (m *Model) syncLogs() {
	if !m.logReady {
		return
	}
	m.logView.Width = m.viewWidth()
	m.logView.Height = m.logRows()

	lines := m.state.Logs.Lines()
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = m.formatLogLine(l)
	}
	m.logView.SetContent(strings.Join(out, "\n"))
	if m.logFollow {
		m.logView.GotoBottom()
	}
}

func (m Model) formatLogLine(l wire.LogLine) string {
	var b strings.Builder
	if l.Time != "" {
		b.WriteString(LabelStyle.Render(l.Time) + " ")
	}
	if l.PID != 0 {
		b.WriteString(LabelStyle.Render(fmt.Sprintf("%6d", l.PID)) + " ")
	}
	style, ok := logLevelStyles[l.Level]
	if !ok {
		style = RowStyle
	}
	if l.Level != "" {
		b.WriteString(style.Render(l.Level) + " ")
	}
	if l.Tag != "" {
		b.WriteString(style.Bold(true).Render(l.Tag) + ": ")
	}
	b.WriteString(style.Render(l.Message))
	return lipgloss.NewStyle().MaxWidth(m.viewWidth()).Render(b.String())
}

// renderLogPanel draws the title line and, unless minimized, the lines.
func (m Model) renderLogPanel() string {
	title := "Logs"
	switch src := m.state.LogSource(); {
	case src != "":
		title += " " + src
	case m.state.LogSince() < 0:
		title += " (waiting)"
	default:
		title += " (agent follows no log; start it with --follow)"
	}
	if pid := m.state.Logs.Filter(); m.pidFilter && pid != 0 {
		title += fmt.Sprintf(" [pid %d]", pid)
	}
	if !m.logFollow {
		title += " [scrolled]"
	}
	if m.logsMinimized {
		title += " (L to show)"
	}
	header := lipgloss.NewStyle().MaxWidth(m.viewWidth()).Render(LogHeaderStyle.Render(title))

	if m.logsMinimized {
		return header
	}
	if !m.logReady {
		return header + strings.Repeat("\n", m.logRows())
	}
	return header + "\n" + m.logView.View()
}
