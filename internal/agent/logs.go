package agent

import (
	"bytes"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/rileyhilliard/pstop/internal/wire"
)

const (
	// maxLogRead caps how much of the file one request returns.
	maxLogRead = 256 << 10
	// logTail is how far back from the end a first request starts.
	logTail = 16 << 10
)

// LogReader serves a log file in offset-addressed chunks. It keeps no state
// between reads, so the HTTP server and one-shot `agent dump logs` runs
// answer the same request the same way.
type LogReader struct {
	Path string
}

// Read returns the complete lines starting at byte offset since. A negative
// since starts near the end of the file. An empty Path yields an empty
// snapshot.
func (r LogReader) Read(since int64) (*wire.LogSnapshot, error) {
	snap := &wire.LogSnapshot{Source: r.Path, Lines: []wire.LogLine{}, Next: since}
	if r.Path == "" {
		if since < 0 {
			snap.Next = 0
		}
		return snap, nil
	}

	f, err := os.Open(r.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", r.Path)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", r.Path)
	}
	size := st.Size()

	start := since
	tail := false
	switch {
	case since < 0:
		tail = true
	case since > size:
		snap.Reset = true
		tail = true
	}
	if tail {
		start = size - logTail
		if start < 0 {
			start = 0
		}
	}

	n := size - start
	if n > maxLogRead {
		n = maxLogRead
	}
	buf := make([]byte, n)
	if _, err := f.ReadAt(buf, start); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "reading %s", r.Path)
	}

	// A tail read usually lands mid-line; skip to the next line start.
	if tail && start > 0 {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			snap.Next = start
			return snap, nil
		}
		start += int64(i + 1)
		buf = buf[i+1:]
	}

	// Only complete lines are returned, unless a single line fills the
	// whole read.
	end := bytes.LastIndexByte(buf, '\n') + 1
	if end == 0 && int64(len(buf)) == maxLogRead {
		end = len(buf)
	}

	off := start
	for _, raw := range bytes.SplitAfter(buf[:end], []byte("\n")) {
		if len(raw) == 0 {
			continue
		}
		line := ParseLogLine(strings.TrimRight(string(raw), "\r\n"))
		line.Offset = off
		snap.Lines = append(snap.Lines, line)
		off += int64(len(raw))
	}
	snap.Next = start + int64(end)
	return snap, nil
}

var (
	// 01-15 10:00:00.123  1234  1250 I ActivityManager: Start proc
	threadtimeLine = regexp.MustCompile(`^(\d\d-\d\d \d\d:\d\d:\d\d\.\d+)\s+(\d+)\s+\d+\s+([VDIWEF])\s+(.*?)\s*: (.*)$`)
	// Jan 15 10:00:00 host sshd[1234]: Accepted publickey
	syslogLine = regexp.MustCompile(`^([A-Z][a-z]{2}\s+\d+ \d\d:\d\d:\d\d) \S+ ([^\s\[:]+)(?:\[(\d+)\])?: (.*)$`)
)

// ParseLogLine splits a logcat threadtime or syslog line into its fields.
// Anything else is kept whole as the message.
func ParseLogLine(s string) wire.LogLine {
	if m := threadtimeLine.FindStringSubmatch(s); m != nil {
		pid, _ := strconv.Atoi(m[2])
		return wire.LogLine{Time: m[1], PID: pid, Level: m[3], Tag: m[4], Message: m[5]}
	}
	if m := syslogLine.FindStringSubmatch(s); m != nil {
		pid, _ := strconv.Atoi(m[3])
		return wire.LogLine{Time: m[1], PID: pid, Tag: m[2], Message: m[4]}
	}
	return wire.LogLine{Message: s}
}
