package live

import "github.com/rileyhilliard/pstop/internal/wire"

// DefaultLogLines is how many log lines are kept when Options.LogLines is 0.
const DefaultLogLines = 1000

// LogBuffer keeps the most recent lines of the followed log, oldest first,
// and an optional pid filter applied when reading.
type LogBuffer struct {
	lines []wire.LogLine
	max   int
	pid   int
}

// NewLogBuffer returns a buffer holding at most max lines.
func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = DefaultLogLines
	}
	return &LogBuffer{max: max}
}

// Append adds lines, dropping the oldest beyond capacity.
func (b *LogBuffer) Append(lines ...wire.LogLine) {
	b.lines = append(b.lines, lines...)
	if over := len(b.lines) - b.max; over > 0 {
		n := copy(b.lines, b.lines[over:])
		b.lines = b.lines[:n]
	}
}

// Clear drops every line. The filter is kept.
func (b *LogBuffer) Clear() {
	b.lines = b.lines[:0]
}

// Len returns the number of stored lines, ignoring the filter.
func (b *LogBuffer) Len() int {
	return len(b.lines)
}

// FilterPID shows only lines logged by pid.
func (b *LogBuffer) FilterPID(pid int) {
	b.pid = pid
}

// ClearFilter shows every line again.
func (b *LogBuffer) ClearFilter() {
	b.pid = 0
}

// Filter returns the pid being filtered on, 0 when none.
func (b *LogBuffer) Filter() int {
	return b.pid
}

// Lines returns a copy of the lines that pass the filter.
func (b *LogBuffer) Lines() []wire.LogLine {
	out := make([]wire.LogLine, 0, len(b.lines))
	for _, l := range b.lines {
		if b.pid != 0 && l.PID != b.pid {
			continue
		}
		out = append(out, l)
	}
	return out
}
