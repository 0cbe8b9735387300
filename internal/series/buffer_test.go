package series

import (
	"testing"
	"time"

	"github.com/rileyhilliard/pstop/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestNew_Defaults(t *testing.T) {
	b := New(0, time.Second)
	assert.Equal(t, time.Duration(DefaultSamples)*time.Second, b.Window())
	assert.True(t, b.Running())
	assert.Empty(t, b.Names())
}

func TestEnsureSeries_Idempotent(t *testing.T) {
	b := New(10, time.Second)

	assert.True(t, b.EnsureSeries("cpu0"))
	require.True(t, b.Append("cpu0", t0, 1))
	assert.False(t, b.EnsureSeries("cpu0"))
	assert.Equal(t, 1, b.Len("cpu0"), "re-ensuring keeps existing points")
}

func TestAppend_AutoCreatesSeries(t *testing.T) {
	b := New(10, time.Second)
	require.True(t, b.Append("memUsed", t0, 42))
	assert.Equal(t, []string{"memUsed"}, b.Names())

	last, ok := b.Last("memUsed")
	require.True(t, ok)
	assert.Equal(t, 42.0, last.Value)
}

func TestAppend_NonIncreasingTimestampDropped(t *testing.T) {
	log := logger.NewBufferLogger()
	b := New(10, time.Second)
	b.SetLogger(log)

	require.True(t, b.Append("cpu0", t0, 1))
	require.True(t, b.Append("cpu0", t0.Add(time.Second), 2))

	tests := []struct {
		name string
		at   time.Time
	}{
		{"equal", t0.Add(time.Second)},
		{"earlier", t0.Add(500 * time.Millisecond)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, b.Append("cpu0", tt.at, 99))
			assert.Equal(t, 2, b.Len("cpu0"))
			assert.Equal(t, []float64{1, 2}, b.Values("cpu0", 0))
		})
	}
	assert.True(t, log.HasLevel(logger.LevelDebug))
	assert.True(t, log.Contains("dropped point"))
}

func TestAppend_EvictsOutsideWindow(t *testing.T) {
	b := New(5, time.Second) // 5s window

	for i := 0; i < 50; i++ {
		require.True(t, b.Append("cpu0", t0.Add(time.Duration(i)*time.Second), float64(i)))
		assert.LessOrEqual(t, b.Span("cpu0"), b.Window())
	}
	assert.Equal(t, 6, b.Len("cpu0"))
	assert.Equal(t, []float64{44, 45, 46, 47, 48, 49}, b.Values("cpu0", 0))
}

func TestAppend_JitteredCadenceStaysBounded(t *testing.T) {
	b := New(10, time.Second)
	at := t0
	steps := []time.Duration{900, 1100, 1300, 700, 1000, 2500, 300}
	for i := 0; i < 200; i++ {
		at = at.Add(steps[i%len(steps)] * time.Millisecond)
		require.True(t, b.Append("s", at, float64(i)))
		// The window bounds the span; a single late sample can push it no
		// further than one interval past the window.
		assert.LessOrEqual(t, b.Span("s"), b.Window()+2500*time.Millisecond)
	}
}

func TestSetRange_ReportsChange(t *testing.T) {
	b := New(10, time.Second)

	assert.True(t, b.SetRange(Range{Max: 8192}))
	assert.False(t, b.SetRange(Range{Max: 8192}))
	assert.True(t, b.SetRange(Range{Max: 16384}))
	assert.Equal(t, Range{Max: 16384}, b.Range())
}

func TestResetDelay_AffectsFutureEvictionOnly(t *testing.T) {
	b := New(4, time.Second) // 4s window
	for i := 0; i < 5; i++ {
		b.Append("s", t0.Add(time.Duration(i)*time.Second), float64(i))
	}
	require.Equal(t, 5, b.Len("s"))

	b.ResetDelay(250 * time.Millisecond) // 1s window
	assert.Equal(t, time.Second, b.Window())
	assert.Equal(t, 250*time.Millisecond, b.Delay())
	assert.Equal(t, 5, b.Len("s"), "stored points untouched")

	b.Append("s", t0.Add(4250*time.Millisecond), 5)
	assert.Equal(t, []float64{4, 5}, b.Values("s", 0))
}

func TestValues_LastN(t *testing.T) {
	b := New(100, time.Second)
	for i := 0; i < 10; i++ {
		b.Append("s", t0.Add(time.Duration(i)*time.Second), float64(i))
	}

	assert.Equal(t, []float64{7, 8, 9}, b.Values("s", 3))
	assert.Len(t, b.Values("s", 50), 10)
	assert.Nil(t, b.Values("missing", 3))
	assert.Nil(t, b.Points("missing"))

	pts := b.Points("s")
	require.Len(t, pts, 10)
	assert.Equal(t, t0, pts[0].At)
}

func TestStartStop(t *testing.T) {
	b := New(10, time.Second)
	b.Stop()
	assert.False(t, b.Running())
	assert.True(t, b.Append("s", t0, 1), "appends still land while stopped")
	b.Start()
	assert.True(t, b.Running())
}

func TestDeque_WrapAndGrow(t *testing.T) {
	var d deque
	for i := 0; i < 40; i++ {
		d.pushBack(Point{Value: float64(i)})
		if i%3 == 0 {
			d.popFront()
		}
	}
	require.Equal(t, 26, d.len())
	assert.Equal(t, 14.0, d.front().Value)
	assert.Equal(t, 39.0, d.back().Value)
	for i := 0; i < d.len(); i++ {
		assert.Equal(t, float64(14+i), d.at(i).Value)
	}
}
