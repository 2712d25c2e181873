package sensor

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Filter smooths a stream of readings.
type Filter interface {
	// Add feeds v and returns the smoothed value.
	Add(v float64) float64
	// Reset forgets all history.
	Reset()
}

// Filter kinds.
const (
	FilterMovingAverage = "sma"
	FilterExponential   = "ema"
)

// FilterConfig selects and parameterises a filter.
type FilterConfig struct {
	Kind   string
	Window int     // moving average window
	Alpha  float64 // exponential smoothing factor in (0,1]
}

// New builds the configured filter.
func (c FilterConfig) New() (Filter, error) {
	switch c.Kind {
	case FilterMovingAverage, "":
		if c.Window < 1 {
			return nil, fmt.Errorf("moving average window %d must be at least 1", c.Window)
		}
		return NewMovingAverage(c.Window), nil
	case FilterExponential:
		if c.Alpha <= 0 || c.Alpha > 1 {
			return nil, fmt.Errorf("exponential alpha %v must be in (0,1]", c.Alpha)
		}
		return NewExponential(c.Alpha), nil
	default:
		return nil, fmt.Errorf("unknown filter %q", c.Kind)
	}
}

// MovingAverage is the mean of the last N readings.
type MovingAverage struct {
	buf  []float64
	next int
	full bool
}

// NewMovingAverage creates a moving average over window readings.
func NewMovingAverage(window int) *MovingAverage {
	return &MovingAverage{buf: make([]float64, window)}
}

// Add feeds v and returns the mean of the readings held.
func (m *MovingAverage) Add(v float64) float64 {
	m.buf[m.next] = v
	m.next = (m.next + 1) % len(m.buf)
	if m.next == 0 {
		m.full = true
	}
	if m.full {
		return stat.Mean(m.buf, nil)
	}
	return stat.Mean(m.buf[:m.next], nil)
}

// Reset forgets all readings.
func (m *MovingAverage) Reset() {
	m.next = 0
	m.full = false
}

// Exponential is an exponentially weighted moving average.
type Exponential struct {
	alpha  float64
	value  float64
	primed bool
}

// NewExponential creates an EWMA; larger alpha follows new readings faster.
func NewExponential(alpha float64) *Exponential {
	return &Exponential{alpha: alpha}
}

// Add feeds v. The first reading after construction or Reset is taken as is.
func (e *Exponential) Add(v float64) float64 {
	if !e.primed {
		e.value = v
		e.primed = true
		return v
	}
	e.value += e.alpha * (v - e.value)
	return e.value
}

// Reset forgets the running value.
func (e *Exponential) Reset() {
	e.primed = false
}
