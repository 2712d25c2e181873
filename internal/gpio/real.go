//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealButtons reads the control-pad buttons from actual hardware.
type RealButtons struct {
	chip      *gpiocdev.Chip
	lines     [ButtonCount]*gpiocdev.Line
	activeLow bool
}

// NewRealButtons requests the three button lines as inputs. Active-low buttons
// (switching to ground) get a pull-up, active-high buttons a pull-down.
func NewRealButtons(chipName string, pins [ButtonCount]int, activeLow bool) (*RealButtons, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	bias := gpiocdev.WithPullDown
	if activeLow {
		bias = gpiocdev.WithPullUp
	}

	b := &RealButtons{chip: chip, activeLow: activeLow}
	for i, pin := range pins {
		line, err := chip.RequestLine(pin, gpiocdev.AsInput, bias)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request button %d pin %d: %w", i+1, pin, err)
		}
		b.lines[i] = line
	}
	return b, nil
}

// Read returns the logical pressed state of each button.
func (b *RealButtons) Read() ([ButtonCount]bool, error) {
	var pressed [ButtonCount]bool
	for i, line := range b.lines {
		raw, err := line.Value()
		if err != nil {
			return pressed, fmt.Errorf("read button %d: %w", i+1, err)
		}
		if b.activeLow {
			pressed[i] = raw == 0
		} else {
			pressed[i] = raw == 1
		}
	}
	return pressed, nil
}

// Close reconfigures the lines to input with pull-down (matching Pi boot
// defaults) and releases them.
func (b *RealButtons) Close() error {
	var errs []error
	for i, line := range b.lines {
		if line == nil {
			continue
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure button %d: %w", i+1, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button %d: %w", i+1, err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealRelay drives a relay module input from an output line.
type RealRelay struct {
	chip      *gpiocdev.Chip
	line      *gpiocdev.Line
	pin       int
	activeLow bool
}

// NewRealRelay requests pin as an output, initially released. Many relay
// boards energise on a low input; activeLow selects that polarity.
func NewRealRelay(chipName string, pin int, activeLow bool) (*RealRelay, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	r := &RealRelay{chip: chip, pin: pin, activeLow: activeLow}
	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(r.raw(false)))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request relay pin %d: %w", pin, err)
	}
	r.line = line
	return r, nil
}

func (r *RealRelay) raw(on bool) int {
	if on != r.activeLow {
		return 1
	}
	return 0
}

// Set energises or releases the relay.
func (r *RealRelay) Set(on bool) error {
	if err := r.line.SetValue(r.raw(on)); err != nil {
		return fmt.Errorf("set relay pin %d: %w", r.pin, err)
	}
	return nil
}

// Get reads the line back.
func (r *RealRelay) Get() (bool, error) {
	v, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read relay pin %d: %w", r.pin, err)
	}
	return v == r.raw(true), nil
}

// Close releases the relay and returns the pin to input with pull-down so a
// reboot cannot leave water running.
func (r *RealRelay) Close() error {
	var errs []error
	if r.line != nil {
		if err := r.line.SetValue(r.raw(false)); err != nil {
			errs = append(errs, fmt.Errorf("release relay pin %d: %w", r.pin, err))
		}
		if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure relay pin %d: %w", r.pin, err))
		}
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay pin %d: %w", r.pin, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
