package irrigation

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Bounds limits an adjustable percentage.
type Bounds struct {
	Min, Max, Step float64
}

// Clamp saturates v to [Min, Max].
func (b Bounds) Clamp(v float64) float64 {
	return math.Max(b.Min, math.Min(b.Max, v))
}

// Inc returns v raised by one step, saturating at Max.
func (b Bounds) Inc(v float64) float64 {
	return b.Clamp(v + b.Step)
}

// Dec returns v lowered by one step, saturating at Min.
func (b Bounds) Dec(v float64) float64 {
	return b.Clamp(v - b.Step)
}

func (b Bounds) validate(name string, v float64) error {
	var errs []error
	if b.Min > b.Max {
		errs = append(errs, fmt.Errorf("%s: min %v above max %v", name, b.Min, b.Max))
	}
	if b.Min < 0 || b.Max > 100 {
		errs = append(errs, fmt.Errorf("%s: bounds [%v,%v] outside 0-100", name, b.Min, b.Max))
	}
	if b.Step <= 0 {
		errs = append(errs, fmt.Errorf("%s: step must be positive", name))
	}
	if v < b.Min || v > b.Max {
		errs = append(errs, fmt.Errorf("%s: %v outside [%v,%v]", name, v, b.Min, b.Max))
	}
	return errors.Join(errs...)
}

// DurationBounds limits an adjustable duration.
type DurationBounds struct {
	Min, Max, Step time.Duration
}

// Clamp saturates d to [Min, Max].
func (b DurationBounds) Clamp(d time.Duration) time.Duration {
	return max(b.Min, min(b.Max, d))
}

// Inc returns d raised by one step, saturating at Max.
func (b DurationBounds) Inc(d time.Duration) time.Duration {
	return b.Clamp(d + b.Step)
}

// Dec returns d lowered by one step, saturating at Min.
func (b DurationBounds) Dec(d time.Duration) time.Duration {
	return b.Clamp(d - b.Step)
}

// Config holds the state machine's timing and thresholds.
type Config struct {
	// Period is the control loop period; all durations are converted to ticks of it.
	Period time.Duration

	Activation       time.Duration
	ActivationBounds DurationBounds
	Suspend          time.Duration
	// Settle is the pause between valve and pump changes.
	Settle time.Duration

	// Watering starts only when moisture AND light are below their thresholds.
	MoistureThreshold float64
	MoistureBounds    Bounds
	LightThreshold    float64
	LightBounds       Bounds
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Period:           10 * time.Millisecond,
		Activation:       10 * time.Minute,
		ActivationBounds: DurationBounds{Min: time.Minute, Max: time.Hour, Step: time.Minute},
		Suspend:          time.Hour,
		Settle:           500 * time.Millisecond,

		MoistureThreshold: 40,
		MoistureBounds:    Bounds{Min: 5, Max: 95, Step: 5},
		LightThreshold:    50,
		LightBounds:       Bounds{Min: 5, Max: 95, Step: 5},
	}
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Period <= 0 {
		errs = append(errs, errors.New("period must be positive"))
	}
	ab := c.ActivationBounds
	if ab.Min <= 0 || ab.Min > ab.Max || ab.Step <= 0 {
		errs = append(errs, fmt.Errorf("activation bounds [%v,%v] step %v invalid", ab.Min, ab.Max, ab.Step))
	} else if c.Activation < ab.Min || c.Activation > ab.Max {
		errs = append(errs, fmt.Errorf("activation %v outside [%v,%v]", c.Activation, ab.Min, ab.Max))
	}
	if c.Suspend <= 0 {
		errs = append(errs, errors.New("suspend must be positive"))
	}
	if c.Settle < 0 {
		errs = append(errs, errors.New("settle must not be negative"))
	}
	if err := c.MoistureBounds.validate("moisture threshold", c.MoistureThreshold); err != nil {
		errs = append(errs, err)
	}
	if err := c.LightBounds.validate("light threshold", c.LightThreshold); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
