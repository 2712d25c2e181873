package irrigation

import "github.com/sweeney/garden-irrigator/internal/input"

// MenuItem is the adjustable value under the cursor.
type MenuItem uint8

const (
	MenuMoisture MenuItem = iota
	MenuLight
	MenuActivation
	MenuReset
	menuItems
)

func (m MenuItem) String() string {
	switch m {
	case MenuMoisture:
		return "MOISTURE"
	case MenuLight:
		return "LIGHT"
	case MenuActivation:
		return "ACTIVATION"
	case MenuReset:
		return "RESET"
	default:
		return "UNKNOWN"
	}
}

// Next returns the following item, wrapping.
func (m MenuItem) Next() MenuItem {
	return (m + 1) % menuItems
}

// Action is what a button press does.
type Action uint8

const (
	ActionNone Action = iota
	ActionCycleCursor
	ActionDecrement
	ActionIncrement
	ActionToggleSuspend
	ActionAbort
	ActionStart
)

func (a Action) String() string {
	switch a {
	case ActionCycleCursor:
		return "next item"
	case ActionDecrement:
		return "decrease"
	case ActionIncrement:
		return "increase"
	case ActionToggleSuspend:
		return "suspend/resume"
	case ActionAbort:
		return "stop watering"
	case ActionStart:
		return "start watering"
	default:
		return "none"
	}
}

// Binding is the pair of actions for one button.
type Binding struct {
	Short Action
	Long  Action
}

var bindings = [...]Binding{
	input.ButtonSelect: {Short: ActionCycleCursor, Long: ActionToggleSuspend},
	input.ButtonDown:   {Short: ActionDecrement, Long: ActionAbort},
	input.ButtonUp:     {Short: ActionIncrement, Long: ActionStart},
}

// ActionFor looks up the fixed binding of an event.
func ActionFor(ev input.Event) Action {
	if int(ev.Button) >= len(bindings) {
		return ActionNone
	}
	b := bindings[ev.Button]
	switch ev.Kind {
	case input.ShortPress:
		return b.Short
	case input.LongPress:
		return b.Long
	default:
		return ActionNone
	}
}
