package monitor

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/rileyhilliard/pstop/internal/live"
	"github.com/rileyhilliard/pstop/internal/pstree"
	"github.com/rileyhilliard/pstop/internal/series"
)

const (
	// maxCoreRows caps the CPU panel height; more cores wrap into columns.
	maxCoreRows    = 8
	memGraphHeight = 3
	// sideBySideWidth is the width at which the charts sit next to each other.
	sideBySideWidth = 100
	defaultWidth    = 80
)

type column struct {
	title string
	width int
	field pstree.SortField
	left  bool
}

var columns = []column{
	{title: "PID", width: 7, field: pstree.SortPID},
	{title: "USER", width: 9, field: pstree.SortUser, left: true},
	{title: "S", width: 1, field: pstree.SortNone, left: true},
	{title: "THR", width: 4, field: pstree.SortThreads},
	{title: "NI", width: 3, field: pstree.SortNone},
	{title: "RSS", width: 9, field: pstree.SortNone},
	{title: "CPU%", width: 6, field: pstree.SortCPU},
	{title: "MEM%", width: 6, field: pstree.SortMem},
	{title: "NAME", width: 0, field: pstree.SortName, left: true},
}

// Render draws the whole dashboard.
func (m Model) Render() string {
	if m.showHelp {
		return m.renderHelpOverlay()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.chartFrame())
	b.WriteString("\n")
	b.WriteString(m.renderTableHeader())
	b.WriteString("\n")
	if m.tableReady {
		b.WriteString(m.table.View())
	} else {
		b.WriteString(strings.Join(m.renderRows(), "\n"))
	}
	b.WriteString("\n")
	b.WriteString(m.renderLogPanel())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) viewWidth() int {
	if m.width <= 0 {
		return defaultWidth
	}
	return m.width
}

// renderHeader renders the status line.
func (m Model) renderHeader() string {
	title := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true).Render("pstop")

	parts := []string{}
	if m.source != nil {
		parts = append(parts, m.source.Name())
	}
	if n := m.state.NCPU(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d cpus", n))
	}
	parts = append(parts, fmt.Sprintf("%d procs", m.state.Tree.Len()))
	parts = append(parts, "sort "+m.sortLabel())

	process, chart := m.Delays()
	parts = append(parts, fmt.Sprintf("every %s/%s", process, chart))

	if !m.lastUpdate.IsZero() {
		ago := m.clock.Now().Sub(m.lastUpdate).Truncate(time.Second)
		if ago <= 0 {
			parts = append(parts, "updated just now")
		} else {
			parts = append(parts, fmt.Sprintf("updated %s ago", ago))
		}
	}

	line := title + LabelStyle.Render(" | "+strings.Join(parts, " | "))
	if m.paused {
		line += " " + PausedStyle.Render("PAUSED")
	}
	return lipgloss.NewStyle().MaxWidth(m.viewWidth()).Render(HeaderStyle.Render(line))
}

func (m Model) sortLabel() string {
	if m.sort.Field == pstree.SortNone {
		return m.sort.Field.Label()
	}
	arrow := "↓"
	if m.sort.Reverse {
		arrow = "↑"
	}
	return m.sort.Field.Label() + arrow
}

// chartFrame returns the charts, or the frame captured at pause time.
func (m Model) chartFrame() string {
	if m.paused && m.frozen != "" {
		return m.frozen
	}
	return m.renderCharts()
}

// renderCharts draws the CPU and memory panels.
func (m Model) renderCharts() string {
	width := m.viewWidth()
	if width >= sideBySideWidth {
		half := width / 2
		return lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderCPUPanel(half),
			m.renderMemPanel(width-half))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderCPUPanel(width),
		m.renderMemPanel(width))
}

func (m Model) renderCPUPanel(width int) string {
	names := m.state.CoreNames()
	r := m.state.CPU.Range()

	var sum float64
	for _, u := range m.state.Cores.Usage() {
		sum += u.UserPct
	}
	avg := "--"
	if len(names) > 0 {
		avg = fmt.Sprintf("%.1f%%", sum/float64(len(names)))
	}

	lines := []string{SectionHeader("CPU", avg, width)}
	if len(names) == 0 {
		lines = append(lines, SectionContentLine(LabelStyle.Render("waiting for samples"), width))
		lines = append(lines, SectionFooter(width))
		return strings.Join(lines, "\n")
	}

	cols := int(math.Ceil(float64(len(names)) / maxCoreRows))
	rows := int(math.Ceil(float64(len(names)) / float64(cols)))
	cellWidth := (width - 4) / cols

	for row := 0; row < rows; row++ {
		var cells []string
		for col := 0; col < cols; col++ {
			i := col*rows + row
			if i >= len(names) {
				break
			}
			cells = append(cells, m.renderCoreCell(names[i], r, cellWidth))
		}
		lines = append(lines, SectionContentLine(strings.Join(cells, ""), width))
	}
	lines = append(lines, SectionFooter(width))
	return strings.Join(lines, "\n")
}

// renderCoreCell draws "cpu3 ▁▂▅█ 42%" in exactly width columns.
func (m Model) renderCoreCell(name string, r series.Range, width int) string {
	const labelWidth, valueWidth = 6, 6
	sparkWidth := width - labelWidth - valueWidth - 1
	if sparkWidth < 1 {
		sparkWidth = 1
	}

	values := m.state.CPU.Values(name, sparkWidth)
	value := "  --"
	if last, ok := m.state.CPU.Last(name); ok {
		value = MetricStyle(last.Value).Render(fmt.Sprintf("%5.1f%%", last.Value))
	}

	cell := LabelStyle.Render(fmt.Sprintf("%-*s", labelWidth, name)) +
		RenderMiniSparkline(values, r, sparkWidth) + " " + value
	cell = lipgloss.NewStyle().MaxWidth(width).Render(cell)
	if pad := width - lipgloss.Width(cell); pad > 0 {
		cell += strings.Repeat(" ", pad)
	}
	return cell
}

func (m Model) renderMemPanel(width int) string {
	mem, ok := m.state.Memory()
	value := "--"
	if ok {
		value = fmt.Sprintf("%s / %s", humanize.IBytes(mem.MemUsed), humanize.IBytes(mem.MemTotal))
	}

	lines := []string{SectionHeader("Memory", value, width)}
	inner := width - 4
	graph := RenderBrailleGraph(m.state.Mem.Values(live.MemSeries, inner*2), m.state.Mem.Range(), inner, memGraphHeight)
	for _, l := range strings.Split(graph, "\n") {
		lines = append(lines, SectionContentLine(l, width))
	}

	pct := 0.0
	if ok && mem.MemTotal > 0 {
		pct = float64(mem.MemUsed) / float64(mem.MemTotal) * 100
	}
	bar := ThinProgressBar(inner-7, pct) + ValueStyle.Render(fmt.Sprintf(" %5.1f%%", pct))
	lines = append(lines, SectionContentLine(bar, width), SectionFooter(width))
	return strings.Join(lines, "\n")
}

func (m Model) renderTableHeader() string {
	cells := make([]string, len(columns))
	for i, c := range columns {
		title := c.title
		if c.width > 0 {
			if c.left {
				title = fmt.Sprintf("%-*s", c.width, title)
			} else {
				title = fmt.Sprintf("%*s", c.width, title)
			}
		}
		style := TableHeaderStyle
		if c.field != pstree.SortNone && c.field == m.sort.Field {
			style = SortedHeaderStyle
		}
		cells[i] = style.Render(title)
	}
	return lipgloss.NewStyle().MaxWidth(m.viewWidth()).Render(strings.Join(cells, " "))
}

// renderRows formats every visible row, one line each.
func (m Model) renderRows() []string {
	width := m.viewWidth()
	lines := make([]string, len(m.rows))
	for i, r := range m.rows {
		style := RowStyle
		switch {
		case i == m.cursor:
			style = SelectedRowStyle
		case r.Dead:
			style = DeadRowStyle
		case m.rowColors && i%2 == 1:
			style = StripedRowStyle
		}
		lines[i] = style.Width(width).Render(truncate(m.formatRow(r), width))
	}
	return lines
}

func (m Model) formatRow(r pstree.Row) string {
	cpu := "-"
	if r.HasDelta && !r.Dead {
		cpu = fmt.Sprintf("%.1f", r.CPUPct)
	}
	mem := fmt.Sprintf("%.1f", r.MemPct)

	name := r.Name
	if m.sort.Field == pstree.SortNone {
		glyph := GlyphLeaf
		switch {
		case r.Dead:
			glyph = GlyphDead
		case r.HasChildren && r.Expanded:
			glyph = GlyphExpanded
		case r.HasChildren:
			glyph = GlyphCollapsed
		}
		name = strings.Repeat("  ", r.Indent) + glyph + " " + r.Name
	}

	return fmt.Sprintf("%7d %-9s %-1s %4d %3d %9s %6s %6s %s",
		r.PID, truncate(r.User, 9), truncate(r.State, 1), r.Threads, r.Nice,
		humanize.IBytes(r.RSS), cpu, mem, name)
}

// syncTable pushes the rows into the viewport and scrolls the cursor into view.
func (m *Model) syncTable() {
	if !m.tableReady {
		return
	}
	m.table.Height = m.tableHeight()
	m.table.SetContent(strings.Join(m.renderRows(), "\n"))

	if m.cursor < 0 {
		return
	}
	if m.cursor < m.table.YOffset {
		m.table.SetYOffset(m.cursor)
	} else if m.cursor >= m.table.YOffset+m.table.Height {
		m.table.SetYOffset(m.cursor - m.table.Height + 1)
	}
}

// tableHeight is what is left after the header, charts, column titles, log
// panel and footer.
func (m Model) tableHeight() int {
	h := m.height - 3 - lipgloss.Height(m.chartFrame()) - m.logPanelHeight()
	if h < 1 {
		h = 1
	}
	return h
}

// renderFooter renders key hints, or the last poll error.
func (m Model) renderFooter() string {
	clip := lipgloss.NewStyle().MaxWidth(m.viewWidth())
	if m.lastErr != "" {
		return clip.Render(FooterStyle.Render(ErrorStyle.Render("✗ " + m.lastErr)))
	}

	var hints []string
	for _, b := range keys.ShortHelp() {
		h := b.Help()
		hints = append(hints, h.Key+" "+h.Desc)
	}
	return clip.Render(FooterStyle.Render(strings.Join(hints, " | ")))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
