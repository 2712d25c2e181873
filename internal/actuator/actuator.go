// Package actuator is the only writer of the valve and pump relays. It refuses
// to run the pump against a closed valve and verifies every write by reading
// the line back.
package actuator

import (
	"errors"
	"fmt"

	"github.com/sweeney/garden-irrigator/internal/gpio"
)

// Output names used in errors and logs.
const (
	OutputValve = "valve"
	OutputPump  = "pump"
)

var (
	// ErrPumpWithoutValve is returned when the pump is asked to start while the
	// valve is not open. The pump is left off.
	ErrPumpWithoutValve = errors.New("actuator: pump requires open valve")

	// ErrMismatch matches any *MismatchError.
	ErrMismatch = errors.New("actuator: output mismatch")
)

// MismatchError reports a relay that did not reach its commanded state.
type MismatchError struct {
	Output string
	Want   bool
	Got    bool
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("actuator: %s commanded %v, reads %v", e.Output, e.Want, e.Got)
}

// Is lets errors.Is(err, ErrMismatch) match.
func (e *MismatchError) Is(target error) bool {
	return target == ErrMismatch
}

// Driver wraps the two relays.
type Driver struct {
	valve gpio.Relay
	pump  gpio.Relay

	valveOpen bool
	pumpOn    bool
}

// New creates a Driver over the given relays. Both are driven off first; the
// returned error is non-nil if either could not be released.
func New(valve, pump gpio.Relay) (*Driver, error) {
	d := &Driver{valve: valve, pump: pump}
	if err := d.Off(); err != nil {
		return d, err
	}
	return d, nil
}

// SetValve opens or closes the valve. Closing the valve while the pump runs
// stops the pump first.
func (d *Driver) SetValve(open bool) error {
	if !open && d.pumpOn {
		if err := d.SetPump(false); err != nil {
			return err
		}
	}
	got, err := d.write(d.valve, OutputValve, open)
	d.valveOpen = got
	return err
}

// SetPump starts or stops the pump. Starting requires the valve to be open.
func (d *Driver) SetPump(on bool) error {
	if on && !d.valveOpen {
		return ErrPumpWithoutValve
	}
	got, err := d.write(d.pump, OutputPump, on)
	d.pumpOn = got
	return err
}

// write sets the relay and reads it back. It returns the best known state of
// the output: the readback when available, otherwise the commanded state on
// success and the previous belief on write failure (pessimistically "on").
func (d *Driver) write(r gpio.Relay, name string, want bool) (bool, error) {
	if err := r.Set(want); err != nil {
		return true, fmt.Errorf("actuator: set %s %v: %w", name, want, err)
	}
	got, err := r.Get()
	if err != nil {
		return true, fmt.Errorf("actuator: read back %s: %w", name, err)
	}
	if got != want {
		return got, &MismatchError{Output: name, Want: want, Got: got}
	}
	return got, nil
}

// Valve reports whether the valve is believed open.
func (d *Driver) Valve() bool {
	return d.valveOpen
}

// Pump reports whether the pump is believed running.
func (d *Driver) Pump() bool {
	return d.pumpOn
}

// Off stops the pump then closes the valve without any settle delay. It is
// the last-resort safe state. The valve is left alone while the pump is not
// confirmed off, so the pump never runs against a closed valve.
func (d *Driver) Off() error {
	got, err := d.write(d.pump, OutputPump, false)
	d.pumpOn = got
	if err != nil {
		return err
	}
	got, err = d.write(d.valve, OutputValve, false)
	d.valveOpen = got
	return err
}

// Close drives both outputs off and releases the lines.
func (d *Driver) Close() error {
	errs := []error{d.Off()}
	if err := d.pump.Close(); err != nil {
		errs = append(errs, fmt.Errorf("actuator: close pump: %w", err))
	}
	if err := d.valve.Close(); err != nil {
		errs = append(errs, fmt.Errorf("actuator: close valve: %w", err))
	}
	return errors.Join(errs...)
}
