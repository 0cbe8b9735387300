package monitor

import (
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/stretchr/testify/assert"
)

func TestNextDelay(t *testing.T) {
	tests := []struct {
		name  string
		steps []time.Duration
		cur   time.Duration
		want  time.Duration
	}{
		{name: "process next step", steps: ProcessDelays, cur: 2 * time.Second, want: 5 * time.Second},
		{name: "process wraps", steps: ProcessDelays, cur: 10 * time.Second, want: time.Second},
		{name: "process off-grid rounds up", steps: ProcessDelays, cur: 3 * time.Second, want: 5 * time.Second},
		{name: "graph from half second", steps: GraphDelays, cur: 500 * time.Millisecond, want: time.Second},
		{name: "graph wraps", steps: GraphDelays, cur: 10 * time.Second, want: 500 * time.Millisecond},
		{name: "graph below grid", steps: GraphDelays, cur: 250 * time.Millisecond, want: 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextDelay(tt.steps, tt.cur))
		})
	}
}

func TestKeyMap_Help(t *testing.T) {
	assert.Len(t, keys.ShortHelp(), 4)

	full := keys.FullHelp()
	assert.Len(t, full, 4)

	// Every binding shows up in the overlay exactly once.
	seen := map[string]bool{}
	for _, group := range full {
		for _, b := range group {
			h := b.Help()
			assert.NotEmpty(t, h.Key)
			assert.NotEmpty(t, h.Desc)
			assert.False(t, seen[h.Desc], h.Desc)
			seen[h.Desc] = true
		}
	}
	assert.Len(t, seen, 24)
}

func TestKeyMap_NoOverlap(t *testing.T) {
	all := []key.Binding{
		keys.Quit, keys.Pause, keys.SelectPrev, keys.SelectNext, keys.PageUp,
		keys.PageDown, keys.First, keys.Last, keys.Toggle, keys.Expand,
		keys.Collapse, keys.CycleSort, keys.Reverse, keys.CancelSort,
		keys.Delay, keys.GraphDelay, keys.Refresh, keys.Help,
		keys.PIDFilter, keys.ClearLogs, keys.LogsEnd, keys.LogsUp,
		keys.LogsDown, keys.ToggleLogs,
	}

	owner := map[string]string{}
	for _, b := range all {
		for _, k := range b.Keys() {
			if prev, ok := owner[k]; ok {
				t.Errorf("key %q bound to both %q and %q", k, prev, b.Help().Desc)
			}
			owner[k] = b.Help().Desc
		}
	}
}
