// Package gpio provides button inputs and relay outputs with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// ButtonCount is the number of physical buttons on the control pad.
const ButtonCount = 3

// ButtonReader reads the three control-pad buttons.
type ButtonReader interface {
	// Read returns the logical pressed state of each button, in button order
	// (Select, Down, Up). Wiring polarity is already applied.
	Read() ([ButtonCount]bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Relay drives one binary relay output.
type Relay interface {
	// Set energises (true) or releases (false) the relay.
	Set(on bool) error

	// Get reports the relay state as observed on the line.
	Get() (bool, error)

	// Close releases the line, leaving the relay released.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinSelect = 17
	DefaultPinDown   = 27
	DefaultPinUp     = 22
	DefaultPinValve  = 23
	DefaultPinPump   = 24
)

// DefaultChip is the GPIO character device the pins live on.
const DefaultChip = "gpiochip0"
