// Package tick provides the monotonic tick counter that all controller timing
// (debounce, activation, suspension) is measured against.
package tick

import (
	"sync"
	"time"
)

// Tick is a count of control-loop periods since the clock started.
type Tick uint64

// Add returns t advanced by n ticks.
func (t Tick) Add(n Tick) Tick {
	return t + n
}

// Since returns the number of ticks from earlier to t, or 0 if earlier is in the future.
func (t Tick) Since(earlier Tick) Tick {
	if earlier >= t {
		return 0
	}
	return t - earlier
}

// Duration converts a tick count back to wall duration for the given period.
func (t Tick) Duration(period time.Duration) time.Duration {
	return time.Duration(t) * period
}

// FromDuration converts d to ticks of the given period, rounding up so that a
// timeout is never shorter than requested. Non-positive durations are 0 ticks.
func FromDuration(d, period time.Duration) Tick {
	if d <= 0 || period <= 0 {
		return 0
	}
	n := d / period
	if d%period != 0 {
		n++
	}
	return Tick(n)
}

// Clock yields the current tick.
type Clock interface {
	Now() Tick
}

// Monotonic derives ticks from Go's monotonic clock, so IO jitter in the loop
// never stretches or shrinks measured intervals.
type Monotonic struct {
	start  time.Time
	period time.Duration
	now    func() time.Time
}

// NewMonotonic starts a clock at tick 0 now.
func NewMonotonic(period time.Duration) *Monotonic {
	return &Monotonic{start: time.Now(), period: period, now: time.Now}
}

// Now returns the number of whole periods elapsed since the clock started.
func (m *Monotonic) Now() Tick {
	return Tick(m.now().Sub(m.start) / m.period)
}

// Manual is a test clock advanced explicitly.
type Manual struct {
	mu  sync.Mutex
	cur Tick
}

// Now returns the current manual tick.
func (m *Manual) Now() Tick {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

// Advance moves the clock forward by n ticks and returns the new tick.
func (m *Manual) Advance(n Tick) Tick {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur += n
	return m.cur
}

// Set moves the clock to t.
func (m *Manual) Set(t Tick) {
	m.mu.Lock()
	m.cur = t
	m.mu.Unlock()
}
