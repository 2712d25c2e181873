package irrigation

import (
	"errors"
	"fmt"

	"github.com/sweeney/garden-irrigator/internal/input"
	"github.com/sweeney/garden-irrigator/internal/sensor"
	"github.com/sweeney/garden-irrigator/internal/tick"
)

// Actuators is the output side the machine drives. The actuator package's
// Driver satisfies it.
type Actuators interface {
	SetValve(open bool) error
	SetPump(on bool) error
	Valve() bool
	Pump() bool
	// Off releases both outputs immediately, pump first.
	Off() error
}

// Input is what arrived during one control tick. Either field may be nil.
type Input struct {
	Event  *input.Event
	Sample *sensor.Sample
}

// Machine is the irrigation state machine. It is not safe for concurrent use;
// everything happens on the control loop.
type Machine struct {
	cfg   Config
	act   Actuators
	sleep tick.Sleeper

	suspendTicks tick.Tick

	state  State
	now    tick.Tick
	sample sensor.Sample
	has    bool
	fault  Fault
	cursor MenuItem
	counts Counts

	// outputs wanted after this tick; always both on or both off
	wantOn bool

	transitions []Transition
}

// New creates a Machine in Idle with outputs off.
func New(cfg Config, act Actuators, sleep tick.Sleeper) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("irrigation: invalid config: %w", err)
	}
	if sleep == nil {
		sleep = tick.RealSleeper
	}
	m := &Machine{
		cfg:          cfg,
		act:          act,
		sleep:        sleep,
		suspendTicks: tick.FromDuration(cfg.Suspend, cfg.Period),
		state: State{
			Mode:              Idle,
			MoistureThreshold: cfg.MoistureThreshold,
			LightThreshold:    cfg.LightThreshold,
			Activation:        cfg.Activation,
		},
	}
	m.syncOutputs()
	return m, nil
}

// Update advances the machine to now with this tick's input. It decides the
// mode and wanted outputs but touches no hardware; call Apply afterwards.
func (m *Machine) Update(now tick.Tick, in Input) {
	m.now = now

	if in.Sample != nil {
		m.takeSample(*in.Sample)
	}

	switch m.state.Mode {
	case Watering:
		if m.fault.Has(FaultSensor) {
			m.stopCycle(ReasonSensorFault)
		} else if now.Since(m.state.CycleStart) >= m.activationTicks() {
			m.stopCycle(ReasonCompleted)
		}
	case Suspended:
		if now >= m.state.SuspendUntil {
			m.resume(ReasonSuspendElapsed)
		}
	}

	if in.Event != nil {
		m.handle(*in.Event)
	}

	if m.state.Mode == Idle && m.shouldWater() {
		m.startCycle(ReasonMoistureLow)
	}
}

func (m *Machine) takeSample(s sensor.Sample) {
	m.sample = s
	m.has = true
	if s.Faulted() {
		if !m.fault.Has(FaultSensor) {
			m.counts.SensorFaults++
		}
		m.fault |= FaultSensor
		return
	}
	m.fault &^= FaultSensor
}

func (m *Machine) shouldWater() bool {
	if !m.has || m.fault != 0 {
		return false
	}
	return m.sample.Moisture < m.state.MoistureThreshold &&
		m.sample.Light < m.state.LightThreshold
}

func (m *Machine) handle(ev input.Event) {
	action := ActionFor(ev)
	if ev.Kind == input.ShortPress && m.state.Mode == Watering {
		return
	}
	switch action {
	case ActionCycleCursor:
		m.cursor = m.cursor.Next()
	case ActionIncrement:
		m.adjust(true)
	case ActionDecrement:
		m.adjust(false)
	case ActionToggleSuspend:
		switch m.state.Mode {
		case Suspended:
			m.resume(ReasonManualResume)
		default:
			m.suspend(ReasonManualSuspend)
		}
	case ActionAbort:
		if m.state.Mode == Watering {
			m.stopCycle(ReasonManualAbort)
		}
	case ActionStart:
		if m.state.Mode == Idle && !m.fault.Has(FaultSensor) {
			m.startCycle(ReasonManualStart)
		}
	}
}

func (m *Machine) adjust(up bool) {
	s := &m.state
	switch m.cursor {
	case MenuMoisture:
		if up {
			s.MoistureThreshold = m.cfg.MoistureBounds.Inc(s.MoistureThreshold)
		} else {
			s.MoistureThreshold = m.cfg.MoistureBounds.Dec(s.MoistureThreshold)
		}
	case MenuLight:
		if up {
			s.LightThreshold = m.cfg.LightBounds.Inc(s.LightThreshold)
		} else {
			s.LightThreshold = m.cfg.LightBounds.Dec(s.LightThreshold)
		}
	case MenuActivation:
		if up {
			s.Activation = m.cfg.ActivationBounds.Inc(s.Activation)
		} else {
			s.Activation = m.cfg.ActivationBounds.Dec(s.Activation)
		}
	case MenuReset:
		if up {
			m.resetSettings()
		}
	}
}

// resetSettings restores the configured thresholds and activation time.
func (m *Machine) resetSettings() {
	m.state.MoistureThreshold = m.cfg.MoistureThreshold
	m.state.LightThreshold = m.cfg.LightThreshold
	m.state.Activation = m.cfg.Activation
}

func (m *Machine) activationTicks() tick.Tick {
	return tick.FromDuration(m.state.Activation, m.cfg.Period)
}

func (m *Machine) startCycle(r Reason) {
	m.state.CycleStart = m.now
	m.counts.Cycles++
	m.wantOn = true
	m.transition(Watering, r)
}

// stopCycle ends watering through Idle into Suspended.
func (m *Machine) stopCycle(r Reason) {
	if r != ReasonCompleted {
		m.counts.Aborts++
	}
	m.wantOn = false
	m.transition(Idle, r)
	m.suspend(r)
}

func (m *Machine) suspend(r Reason) {
	if m.state.Mode == Watering {
		m.counts.Aborts++
	}
	m.wantOn = false
	m.state.SuspendUntil = m.now.Add(m.suspendTicks)
	if m.state.Mode != Suspended {
		m.transition(Suspended, r)
	}
}

func (m *Machine) resume(r Reason) {
	m.fault &^= FaultActuator
	m.transition(Idle, r)
}

func (m *Machine) transition(to Mode, r Reason) {
	m.transitions = append(m.transitions, Transition{
		Tick:   m.now,
		From:   m.state.Mode,
		To:     to,
		Reason: r,
	})
	m.state.Mode = to
}

// Apply drives the actuators to the outputs Update decided. Starting opens
// the valve, waits the settle delay and starts the pump; stopping runs the
// reverse. Any actuator error runs the same ordered stop, latches an
// actuator fault and suspends.
func (m *Machine) Apply() error {
	var err error
	if m.wantOn {
		err = m.start()
	} else {
		err = m.stop()
	}
	if err != nil {
		return m.actuatorFault(err)
	}
	m.syncOutputs()
	return nil
}

func (m *Machine) start() error {
	if !m.act.Valve() {
		if err := m.act.SetValve(true); err != nil {
			return err
		}
		if !m.act.Pump() {
			m.sleep.Sleep(m.cfg.Settle)
		}
	}
	if !m.act.Pump() {
		return m.act.SetPump(true)
	}
	return nil
}

func (m *Machine) stop() error {
	if m.act.Pump() {
		if err := m.act.SetPump(false); err != nil {
			return err
		}
		if m.act.Valve() {
			m.sleep.Sleep(m.cfg.Settle)
		}
	}
	if m.act.Valve() {
		return m.act.SetValve(false)
	}
	return nil
}

// safeOff stops the pump, waits the settle delay and closes the valve
// whatever the outputs are believed to be. The driver's Off is the fallback
// when that sequence fails.
func (m *Machine) safeOff() error {
	err := m.act.SetPump(false)
	if err == nil {
		if m.act.Valve() {
			m.sleep.Sleep(m.cfg.Settle)
		}
		err = m.act.SetValve(false)
	}
	if err != nil {
		return errors.Join(err, m.act.Off())
	}
	return nil
}

func (m *Machine) actuatorFault(err error) error {
	offErr := m.safeOff()
	m.counts.ActuatorFaults++
	m.fault |= FaultActuator
	if m.state.Mode == Watering {
		m.counts.Aborts++
	}
	m.wantOn = false
	m.state.SuspendUntil = m.now.Add(m.suspendTicks)
	if m.state.Mode != Suspended {
		m.transition(Suspended, ReasonActuatorFault)
	}
	m.syncOutputs()
	return fmt.Errorf("irrigation: actuator fault: %w", errors.Join(err, offErr))
}

func (m *Machine) syncOutputs() {
	m.state.ValveOpen = m.act.Valve()
	m.state.PumpRunning = m.act.Pump()
}

// Shutdown stops any running cycle with the normal ordering and settle delay.
func (m *Machine) Shutdown() error {
	if m.state.Mode == Watering {
		m.counts.Aborts++
		m.transition(Idle, ReasonShutdown)
	}
	m.wantOn = false
	if err := m.stop(); err != nil {
		offErr := m.safeOff()
		m.syncOutputs()
		return fmt.Errorf("irrigation: shutdown: %w", errors.Join(err, offErr))
	}
	m.syncOutputs()
	return nil
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		State:     m.state,
		Sample:    m.sample,
		HasSample: m.has,
		Fault:     m.fault,
		Now:       m.now,
		Cursor:    m.cursor,
		Counts:    m.counts,
	}
	switch m.state.Mode {
	case Watering:
		end := m.state.CycleStart.Add(m.activationTicks())
		s.Remaining = end.Since(m.now).Duration(m.cfg.Period)
	case Suspended:
		s.Remaining = m.state.SuspendUntil.Since(m.now).Duration(m.cfg.Period)
	}
	return s
}

// Transitions returns the transitions recorded since the last call.
func (m *Machine) Transitions() []Transition {
	t := m.transitions
	m.transitions = nil
	return t
}

// Config returns the configuration the machine was built with.
func (m *Machine) Config() Config {
	return m.cfg
}
