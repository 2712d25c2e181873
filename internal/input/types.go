// Package input turns raw control-pad button levels into debounced, discrete
// press events. It has no hardware or wall-clock dependencies beyond the
// ButtonReader it polls; time is always an injected tick.
package input

import (
	"fmt"

	"github.com/sweeney/garden-irrigator/internal/tick"
)

// Button identifies one of the three control-pad buttons.
type Button uint8

const (
	ButtonSelect Button = iota + 1
	ButtonDown
	ButtonUp
)

func (b Button) String() string {
	switch b {
	case ButtonSelect:
		return "SELECT"
	case ButtonDown:
		return "DOWN"
	case ButtonUp:
		return "UP"
	default:
		return fmt.Sprintf("BUTTON_%d", uint8(b))
	}
}

// Kind is the type of press.
type Kind uint8

const (
	ShortPress Kind = iota + 1
	LongPress
)

func (k Kind) String() string {
	switch k {
	case ShortPress:
		return "SHORT"
	case LongPress:
		return "LONG"
	default:
		return "UNKNOWN"
	}
}

// Event is a single user action.
type Event struct {
	Button Button
	Kind   Kind
	Tick   tick.Tick
}

func (e Event) String() string {
	return e.Button.String() + "_" + e.Kind.String()
}

// buttonState tracks debounce state for a single button.
type buttonState struct {
	// Current stable (debounced) level
	stable bool
	// Pending level during debounce
	pending      bool
	pendingSet   bool
	pendingSince tick.Tick
	// Whether we have established a baseline
	baselined bool
	// Tick the current press became stable
	pressedAt tick.Tick
	// A long press (or a press held since boot) already consumed this press
	consumed bool
}
