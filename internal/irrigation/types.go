// Package irrigation is the decision engine: it consumes sensor samples and
// button events once per control tick, owns the irrigation state and drives
// the valve and pump through an Actuators implementation.
package irrigation

import (
	"strings"
	"time"

	"github.com/sweeney/garden-irrigator/internal/sensor"
	"github.com/sweeney/garden-irrigator/internal/tick"
)

// Mode is the top-level controller mode.
type Mode uint8

const (
	Idle Mode = iota
	Watering
	Suspended
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "IDLE"
	case Watering:
		return "WATERING"
	case Suspended:
		return "SUSPENDED"
	default:
		return "UNKNOWN"
	}
}

// Fault is a set of active fault flags.
type Fault uint8

const (
	// FaultSensor is set while the latest sample is out of electrical range.
	FaultSensor Fault = 1 << iota
	// FaultActuator is latched when a relay fails and cleared on leaving Suspended.
	FaultActuator
)

func (f Fault) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	if f&FaultSensor != 0 {
		parts = append(parts, "sensor")
	}
	if f&FaultActuator != 0 {
		parts = append(parts, "actuator")
	}
	return strings.Join(parts, "+")
}

// Has reports whether all flags in g are set.
func (f Fault) Has(g Fault) bool {
	return f&g == g
}

// Reason explains a transition.
type Reason string

const (
	ReasonMoistureLow    Reason = "moisture_low"
	ReasonManualStart    Reason = "manual_start"
	ReasonCompleted      Reason = "completed"
	ReasonManualAbort    Reason = "manual_abort"
	ReasonManualSuspend  Reason = "manual_suspend"
	ReasonManualResume   Reason = "manual_resume"
	ReasonSensorFault    Reason = "sensor_fault"
	ReasonActuatorFault  Reason = "actuator_fault"
	ReasonSuspendElapsed Reason = "suspend_elapsed"
	ReasonShutdown       Reason = "shutdown"
)

// Transition records a mode change.
type Transition struct {
	Tick   tick.Tick
	From   Mode
	To     Mode
	Reason Reason
}

// Counts are running totals since start.
type Counts struct {
	Cycles         int // watering cycles started
	Aborts         int // cycles ended before their activation time
	SensorFaults   int // fault onsets
	ActuatorFaults int
}

// State is the authoritative irrigation record.
type State struct {
	Mode         Mode
	ValveOpen    bool
	PumpRunning  bool
	CycleStart   tick.Tick
	SuspendUntil tick.Tick

	MoistureThreshold float64
	LightThreshold    float64
	Activation        time.Duration
}

// Snapshot is a read-only copy of the machine for presenters and reporters.
type Snapshot struct {
	State     State
	Sample    sensor.Sample
	HasSample bool
	Fault     Fault
	Now       tick.Tick
	// Remaining is the time until the next timed transition; zero when Idle.
	Remaining time.Duration
	Cursor    MenuItem
	Counts    Counts
}
