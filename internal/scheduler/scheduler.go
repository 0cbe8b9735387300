// Package scheduler drives the two polling cadences of the dashboard.
//
// The scheduler owns no goroutines or timers. It hands out Arm values that
// the runtime turns into delayed tick messages (tea.Tick in the monitor) and
// decides, when a tick comes back, whether it is still current. Pausing
// bumps each timer's generation so ticks already in flight are ignored, and
// remembers how much of the period was left so Resume continues the same
// phase.
package scheduler

import (
	"sync"
	"time"
)

// Kind identifies one of the two timers.
type Kind int

const (
	// Metrics polls the full snapshot: process list, CPU and memory.
	Metrics Kind = iota
	// Chart polls the lightweight CPU and memory endpoints.
	Chart
)

func (k Kind) String() string {
	switch k {
	case Metrics:
		return "metrics"
	case Chart:
		return "chart"
	default:
		return "unknown"
	}
}

// Arm asks the runtime to deliver a tick for Kind after Delay, carrying Gen.
type Arm struct {
	Kind  Kind
	Delay time.Duration
	Gen   uint64
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type timer struct {
	interval  time.Duration
	gen       uint64
	armedAt   time.Time
	delay     time.Duration
	remaining time.Duration
	started   bool
}

// Scheduler tracks both timers. Methods are safe for concurrent use.
type Scheduler struct {
	mu     sync.Mutex
	clock  Clock
	paused bool
	timers [2]timer
}

// New creates a scheduler with the given intervals. A nil clock uses the
// wall clock.
func New(metrics, chart time.Duration, clock Clock) *Scheduler {
	if clock == nil {
		clock = realClock{}
	}
	s := &Scheduler{clock: clock}
	s.timers[Metrics].interval = metrics
	s.timers[Chart].interval = chart
	return s
}

// Start arms both timers for a full interval. When the scheduler starts
// paused nothing is armed; the first Resume arms full intervals.
func (s *Scheduler) Start(paused bool) []Arm {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.paused = paused
	now := s.clock.Now()
	var arms []Arm
	for k := range s.timers {
		t := &s.timers[k]
		t.started = true
		t.remaining = t.interval
		if paused {
			continue
		}
		arms = append(arms, s.arm(Kind(k), t.interval, now))
	}
	return arms
}

func (s *Scheduler) arm(k Kind, d time.Duration, now time.Time) Arm {
	t := &s.timers[k]
	t.gen++
	t.armedAt = now
	t.delay = d
	return Arm{Kind: k, Delay: d, Gen: t.gen}
}

// Fire handles a delivered tick. It returns the next Arm and true when the
// tick is current; the caller then polls. A tick from an older generation,
// or any tick while paused, returns false.
func (s *Scheduler) Fire(k Kind, gen uint64) (Arm, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &s.timers[k]
	if s.paused || gen != t.gen {
		return Arm{}, false
	}
	return s.arm(k, t.interval, s.clock.Now()), true
}

// Pause stops both timers, recording how much of each period was left.
// Pending ticks become stale.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return
	}
	s.paused = true
	now := s.clock.Now()
	for k := range s.timers {
		t := &s.timers[k]
		if !t.started {
			continue
		}
		left := t.delay - now.Sub(t.armedAt)
		if left < 0 {
			left = 0
		}
		t.remaining = left
		t.gen++
	}
}

// Resume re-arms both timers with the time that was left when Pause was
// called, so the period continues where it stopped.
func (s *Scheduler) Resume() []Arm {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paused {
		return nil
	}
	s.paused = false
	now := s.clock.Now()
	var arms []Arm
	for k := range s.timers {
		t := &s.timers[k]
		if !t.started {
			continue
		}
		arms = append(arms, s.arm(Kind(k), t.remaining, now))
	}
	return arms
}

// Toggle flips between paused and running and returns the Arms to schedule
// (none when pausing).
func (s *Scheduler) Toggle() []Arm {
	if s.Paused() {
		return s.Resume()
	}
	s.Pause()
	return nil
}

// SetInterval changes a timer's period. The tick already armed keeps its
// delay; the new interval applies from the next Fire.
func (s *Scheduler) SetInterval(k Kind, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[k].interval = d
}

// Interval returns a timer's period.
func (s *Scheduler) Interval(k Kind) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[k].interval
}

// Paused reports whether both timers are stopped.
func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}
