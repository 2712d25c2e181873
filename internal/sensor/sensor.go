// Package sensor turns raw soil-moisture and ambient-light conversions into
// smoothed, normalised readings, reporting electrically implausible values as
// faults instead of numbers.
package sensor

import (
	"fmt"
	"strings"

	"github.com/sweeney/garden-irrigator/internal/adc"
	"github.com/sweeney/garden-irrigator/internal/tick"
)

// Fault flags which channels produced an unusable reading.
type Fault uint8

const (
	MoistureFault Fault = 1 << iota
	LightFault
)

func (f Fault) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	if f&MoistureFault != 0 {
		parts = append(parts, "moisture")
	}
	if f&LightFault != 0 {
		parts = append(parts, "light")
	}
	return strings.Join(parts, "+")
}

// Sample is one smoothed reading of both sensors. Values are percentages in
// [0,100] and are meaningless for a channel whose fault bit is set.
type Sample struct {
	Moisture float64
	Light    float64
	Tick     tick.Tick
	Fault    Fault
}

// Faulted reports whether any channel is faulted. A faulted sample must never
// lead to irrigation.
func (s Sample) Faulted() bool {
	return s.Fault != 0
}

// Calibration maps a channel's raw range to 0–100. Zero and Full are the raw
// values at 0% and 100%; Full may be below Zero for sensors that read lower as
// the quantity rises (capacitive moisture probes do). Raw values outside
// [FaultBelow, FaultAbove] are electrically implausible, e.g. a disconnected probe.
type Calibration struct {
	Zero       int
	Full       int
	FaultBelow int
	FaultAbove int
}

// Validate checks the calibration is usable.
func (c Calibration) Validate() error {
	if c.Zero == c.Full {
		return fmt.Errorf("zero and full raw values are both %d", c.Zero)
	}
	if c.FaultBelow > c.FaultAbove {
		return fmt.Errorf("fault window [%d,%d] is empty", c.FaultBelow, c.FaultAbove)
	}
	return nil
}

// Normalize maps raw to a clamped percentage. ok is false when raw lies
// outside the electrical fault window.
func (c Calibration) Normalize(raw int) (pct float64, ok bool) {
	if raw < c.FaultBelow || raw > c.FaultAbove {
		return 0, false
	}
	pct = float64(raw-c.Zero) * 100 / float64(c.Full-c.Zero)
	return clamp(pct), true
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Channel ties an ADC channel number to its calibration.
type Channel struct {
	ADC         int
	Calibration Calibration
}

// Config configures a Reader.
type Config struct {
	Moisture Channel
	Light    Channel
	Filter   FilterConfig
}

// Reader samples both sensors through an ADC.
type Reader struct {
	adc      adc.Reader
	moisture channelReader
	light    channelReader
}

type channelReader struct {
	ch     Channel
	filter Filter
	fault  Fault
}

// NewReader builds a Reader. Each channel gets its own filter instance.
func NewReader(a adc.Reader, cfg Config) (*Reader, error) {
	if err := cfg.Moisture.Calibration.Validate(); err != nil {
		return nil, fmt.Errorf("moisture calibration: %w", err)
	}
	if err := cfg.Light.Calibration.Validate(); err != nil {
		return nil, fmt.Errorf("light calibration: %w", err)
	}
	mf, err := cfg.Filter.New()
	if err != nil {
		return nil, err
	}
	lf, err := cfg.Filter.New()
	if err != nil {
		return nil, err
	}
	return &Reader{
		adc:      a,
		moisture: channelReader{ch: cfg.Moisture, filter: mf, fault: MoistureFault},
		light:    channelReader{ch: cfg.Light, filter: lf, fault: LightFault},
	}, nil
}

// Sample reads both channels once and returns the smoothed sample stamped now.
func (r *Reader) Sample(now tick.Tick) Sample {
	s := Sample{Tick: now}
	var ok bool
	if s.Moisture, ok = r.moisture.read(r.adc); !ok {
		s.Fault |= MoistureFault
	}
	if s.Light, ok = r.light.read(r.adc); !ok {
		s.Fault |= LightFault
	}
	return s
}

// read returns the smoothed value. A fault resets the filter so a recovered
// probe is not averaged with readings from before the fault.
func (c *channelReader) read(a adc.Reader) (float64, bool) {
	raw, err := a.Read(c.ch.ADC)
	if err != nil {
		c.filter.Reset()
		return 0, false
	}
	pct, ok := c.ch.Calibration.Normalize(raw)
	if !ok {
		c.filter.Reset()
		return 0, false
	}
	return clamp(c.filter.Add(pct)), true
}
