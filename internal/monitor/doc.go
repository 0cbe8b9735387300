// Package monitor implements the interactive process dashboard.
//
// The dashboard shows one host: a per-core CPU panel, a memory chart and
// the process tree below them. It follows The Elm Architecture through
// Bubble Tea:
//
//   - Model: live.State (tree, series), the scheduler and view state
//   - Update: keystrokes, timer ticks and poll responses
//   - View: renders the current state to a string
//
// # Message Flow
//
// Two scheduler timers drive polling. The metrics timer fetches /sysinfo,
// which updates the process tree and memory. The chart timer fetches
// /cpuinfo and /meminfo for the charts.
//
//  1. tickMsg fires; Scheduler.Fire re-arms the timer and the model issues
//     fetch commands stamped with a sequence number
//  2. each fetch runs off the update loop and returns a responseMsg
//  3. the response is applied to live.State inside Update, so a render
//     never sees a half-applied snapshot
//
// Pausing stops both timers (remembering how far into each period they
// were) and freezes the charts on the last frame drawn. Responses already
// in flight are still applied.
//
// # Keyboard Shortcuts
//
//	q, Ctrl+C   - Quit
//	space, p    - Pause / resume
//	j/k, ↑/↓    - Move the selection
//	Enter, ←/→  - Collapse or expand the selected process
//	s / S / x   - Cycle sort field / reverse / back to tree order
//	d / c       - Cycle process / chart poll interval
//	r           - Poll now
//	?           - Toggle help overlay
package monitor
