// Package series keeps bounded, time-windowed point series for charting.
package series

import (
	"sort"
	"sync"
	"time"

	"github.com/rileyhilliard/pstop/internal/logger"
)

// DefaultSamples is the number of poll intervals a window spans when none is
// configured.
const DefaultSamples = 120

// Point is one timestamped value.
type Point struct {
	At    time.Time
	Value float64
}

// Range is the display range of a chart.
type Range struct {
	Min float64
	Max float64
}

// Buffer holds a set of named series sharing one time window. The window is
// samples × delay: points older than the newest point minus the window are
// evicted as new points arrive.
//
// Buffer is safe for concurrent use; readers take a read lock, so a render
// never observes a half-applied append.
type Buffer struct {
	mu      sync.RWMutex
	samples int
	delay   time.Duration
	window  time.Duration
	rng     Range
	running bool
	series  map[string]*deque
	log     logger.Logger
}

// New creates a buffer whose window covers samples points at the given
// cadence.
func New(samples int, delay time.Duration) *Buffer {
	if samples <= 0 {
		samples = DefaultSamples
	}
	b := &Buffer{
		samples: samples,
		delay:   delay,
		running: true,
		series:  make(map[string]*deque),
		log:     logger.Noop(),
	}
	b.window = b.computeWindow()
	return b
}

// SetLogger sets the logger used to report dropped points.
func (b *Buffer) SetLogger(l logger.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if l == nil {
		l = logger.Noop()
	}
	b.log = l
}

func (b *Buffer) computeWindow() time.Duration {
	return time.Duration(b.samples) * b.delay
}

// EnsureSeries creates the named series if it does not exist. It reports
// whether a series was created.
func (b *Buffer) EnsureSeries(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ensure(name)
}

func (b *Buffer) ensure(name string) bool {
	if _, ok := b.series[name]; ok {
		return false
	}
	b.series[name] = &deque{}
	return true
}

// Append adds a point at the tail of the named series, creating the series
// if needed. A timestamp that is not after the series' last point is
// dropped and Append returns false.
func (b *Buffer) Append(name string, at time.Time, v float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ensure(name)
	d := b.series[name]
	if d.len() > 0 {
		if last := d.back(); !at.After(last.At) {
			b.log.Debug("series %s: dropped point at %s, last point at %s", name, at.Format(time.RFC3339Nano), last.At.Format(time.RFC3339Nano))
			return false
		}
	}

	d.pushBack(Point{At: at, Value: v})
	if b.window > 0 {
		for d.len() > 1 && at.Sub(d.front().At) > b.window {
			d.popFront()
		}
	}
	return true
}

// SetRange updates the display range and reports whether it changed.
func (b *Buffer) SetRange(r Range) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rng == r {
		return false
	}
	b.rng = r
	return true
}

// Range returns the display range.
func (b *Buffer) Range() Range {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rng
}

// ResetDelay changes the expected sampling cadence. Stored points are kept
// as they are; the new window applies from the next Append on.
func (b *Buffer) ResetDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
	b.window = b.computeWindow()
}

// Delay returns the current sampling cadence.
func (b *Buffer) Delay() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.delay
}

// Window returns the current eviction window.
func (b *Buffer) Window() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.window
}

// Start resumes chart animation.
func (b *Buffer) Start() {
	b.mu.Lock()
	b.running = true
	b.mu.Unlock()
}

// Stop freezes chart animation. Points can still be appended; the view keeps
// drawing the frame it had when Stop was called.
func (b *Buffer) Stop() {
	b.mu.Lock()
	b.running = false
	b.mu.Unlock()
}

// Running reports whether the chart is animating.
func (b *Buffer) Running() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// Points returns a copy of the named series, oldest first.
func (b *Buffer) Points(name string) []Point {
	b.mu.RLock()
	defer b.mu.RUnlock()

	d, ok := b.series[name]
	if !ok {
		return nil
	}
	out := make([]Point, d.len())
	for i := range out {
		out[i] = d.at(i)
	}
	return out
}

// Values returns up to the last n values of the named series, oldest first.
// n <= 0 returns every value.
func (b *Buffer) Values(name string, n int) []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	d, ok := b.series[name]
	if !ok {
		return nil
	}
	count := d.len()
	if n > 0 && n < count {
		count = n
	}
	out := make([]float64, count)
	start := d.len() - count
	for i := range out {
		out[i] = d.at(start + i).Value
	}
	return out
}

// Last returns the newest point of the named series.
func (b *Buffer) Last(name string) (Point, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	d, ok := b.series[name]
	if !ok || d.len() == 0 {
		return Point{}, false
	}
	return d.back(), true
}

// Len returns the number of points in the named series.
func (b *Buffer) Len(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	d, ok := b.series[name]
	if !ok {
		return 0
	}
	return d.len()
}

// Span returns the time between the oldest and newest point of the series.
func (b *Buffer) Span(name string) time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()

	d, ok := b.series[name]
	if !ok || d.len() < 2 {
		return 0
	}
	return d.back().At.Sub(d.front().At)
}

// Names returns the series names in sorted order.
func (b *Buffer) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.series))
	for name := range b.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
