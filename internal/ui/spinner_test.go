package ui

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpinner(t *testing.T) {
	s := NewSpinner(io.Discard, "Testing")
	assert.Equal(t, SpinnerPending, s.State())
}

func TestSpinnerFinish(t *testing.T) {
	tests := []struct {
		name   string
		finish func(*Spinner)
		state  SpinnerState
		symbol string
	}{
		{name: "success", finish: (*Spinner).Success, state: SpinnerSuccess, symbol: SymbolDone},
		{name: "fail", finish: (*Spinner).Fail, state: SpinnerFailed, symbol: SymbolFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			s := NewSpinner(&buf, "Connecting")
			s.Start()
			assert.Equal(t, SpinnerInProgress, s.State())
			time.Sleep(100 * time.Millisecond)
			tt.finish(s)

			assert.Equal(t, tt.state, s.State())
			out := buf.String()
			assert.Contains(t, out, "Connecting...", "animation frames are drawn")
			assert.Contains(t, out, tt.symbol)
			assert.Contains(t, out, "\n", "final line ends the status line")
		})
	}
}

func TestSpinnerFinishWithoutStart(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "Skipped")
	s.Success()

	assert.Equal(t, SpinnerSuccess, s.State())
	assert.Contains(t, buf.String(), "Skipped 0.00s")
}

func TestSpinnerDoubleStart(t *testing.T) {
	s := NewSpinner(io.Discard, "Test")
	s.Start()
	s.Start()

	assert.Equal(t, SpinnerInProgress, s.State())
	s.Success()
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     string
	}{
		{0, "0.00s"},
		{50 * time.Millisecond, "0.05s"},
		{100 * time.Millisecond, "0.1s"},
		{1500 * time.Millisecond, "1.5s"},
		{10 * time.Second, "10.0s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.duration))
		})
	}
}

func TestSpinnerConcurrentAccess(t *testing.T) {
	s := NewSpinner(io.Discard, "Test")
	s.Start()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.State()
		}()
	}

	wg.Wait()
	s.Fail()
	require.Equal(t, SpinnerFailed, s.State())
}

func TestStyleHelpers(t *testing.T) {
	for _, fn := range []func(string) string{Success, Error, Warn, Muted, Bold} {
		assert.Contains(t, fn("label"), "label")
	}
	assert.Len(t, GradientColors, 4)
}
