package wire

// LogLine is one parsed line of the log the agent follows. Offset is the
// byte offset of the line's first byte in the file, so a client can tell a
// line it already has from a new one.
type LogLine struct {
	Offset  int64  `json:"offset"`
	Time    string `json:"time,omitempty"`
	PID     int    `json:"pid,omitempty"`
	Level   string `json:"level,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Message string `json:"msg"`
}

// LogSnapshot is served by /logs?since=N: the complete lines written at or
// after offset N.
//
// Next is the offset to ask for on the following request. Reset is set when
// the file shrank below the requested offset (truncated or rotated) and
// offsets started over. Source is the followed path, empty when the agent
// follows nothing.
type LogSnapshot struct {
	Source string    `json:"source"`
	Lines  []LogLine `json:"lines"`
	Next   int64     `json:"next"`
	Reset  bool      `json:"reset,omitempty"`
}
