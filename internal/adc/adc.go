// Package adc reads raw analog-to-digital converter values. The Linux IIO
// implementation reads sysfs; the serial implementation listens to an ADC
// bridge microcontroller; the fake implementation allows testing without hardware.
package adc

import "errors"

// Reader returns raw conversions for numbered channels.
type Reader interface {
	// Read returns the latest raw conversion for channel. It never blocks for
	// longer than one hardware conversion.
	Read(channel int) (int, error)

	// Close releases the converter.
	Close() error
}

var (
	// ErrStale is returned when the latest value for a channel is too old to trust.
	ErrStale = errors.New("adc: reading is stale")

	// ErrNoSamples is returned when nothing has been received for a channel yet.
	ErrNoSamples = errors.New("adc: no reading for channel")
)
