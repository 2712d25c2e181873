package tick

import "time"

// Sleeper performs a bounded wait. The settle delay between valve and pump
// changes is the only place the control loop waits.
type Sleeper interface {
	Sleep(d time.Duration)
}

// SleepFunc adapts a function to Sleeper.
type SleepFunc func(time.Duration)

// Sleep calls f(d).
func (f SleepFunc) Sleep(d time.Duration) {
	f(d)
}

// RealSleeper sleeps on the wall clock.
var RealSleeper Sleeper = SleepFunc(time.Sleep)

// RecordingSleeper records requested waits without blocking. If Hook is set it
// is called with each wait, letting tests interleave it with other operations.
type RecordingSleeper struct {
	Waits []time.Duration
	Hook  func(time.Duration)
}

// Sleep records d.
func (r *RecordingSleeper) Sleep(d time.Duration) {
	r.Waits = append(r.Waits, d)
	if r.Hook != nil {
		r.Hook(d)
	}
}
