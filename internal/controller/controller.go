// Package controller runs one control tick at a time: poll the buttons,
// sample the sensors on a slower cadence, update the state machine, apply
// outputs, and refresh the display on its own cadence. Nothing in a tick
// runs concurrently with anything else in it.
package controller

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/garden-irrigator/internal/input"
	"github.com/sweeney/garden-irrigator/internal/irrigation"
	"github.com/sweeney/garden-irrigator/internal/sensor"
	"github.com/sweeney/garden-irrigator/internal/tick"
)

// Sampler produces sensor samples.
type Sampler interface {
	Sample(now tick.Tick) sensor.Sample
}

// Renderer draws snapshots.
type Renderer interface {
	Render(s irrigation.Snapshot) error
}

// Poller yields debounced button events.
type Poller interface {
	Poll(now tick.Tick) (input.Event, bool, error)
	Glitches() int
}

// Config sets the sub-sampling cadences.
type Config struct {
	Period      time.Duration
	SampleEvery time.Duration
	RenderEvery time.Duration
}

// Result describes what one tick did.
type Result struct {
	Tick        tick.Tick
	Event       *input.Event
	Sample      *sensor.Sample
	Transitions []irrigation.Transition
	Snapshot    irrigation.Snapshot
	Rendered    bool
	Glitches    int
	// Err joins any errors from the tick's phases. The loop keeps running.
	Err error
}

// Loop owns the components and the phase order.
type Loop struct {
	buttons  Poller
	sensors  Sampler
	machine  *irrigation.Machine
	renderer Renderer
	log      *zap.SugaredLogger

	sampleEvery tick.Tick
	renderEvery tick.Tick
	nextSample  tick.Tick
	nextRender  tick.Tick
}

// New creates a Loop. renderer may be nil for headless operation.
func New(cfg Config, buttons Poller, sensors Sampler, machine *irrigation.Machine, renderer Renderer, log *zap.SugaredLogger) *Loop {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Loop{
		buttons:     buttons,
		sensors:     sensors,
		machine:     machine,
		renderer:    renderer,
		log:         log,
		sampleEvery: max(1, tick.FromDuration(cfg.SampleEvery, cfg.Period)),
		renderEvery: max(1, tick.FromDuration(cfg.RenderEvery, cfg.Period)),
	}
}

// Step runs one control tick.
func (l *Loop) Step(now tick.Tick) Result {
	res := Result{Tick: now}
	var errs []error

	// 1. buttons
	if ev, ok, err := l.buttons.Poll(now); err != nil {
		errs = append(errs, fmt.Errorf("poll buttons: %w", err))
	} else if ok {
		res.Event = &ev
		l.log.Debugw("button", "event", ev.String(), "tick", now)
	}

	// 2. sensors, sub-sampled
	if now >= l.nextSample {
		s := l.sensors.Sample(now)
		res.Sample = &s
		l.nextSample = now.Add(l.sampleEvery)
		if s.Faulted() {
			l.log.Warnw("sensor fault", "channels", s.Fault.String(), "tick", now)
		}
	}

	// 3. decide
	l.machine.Update(now, irrigation.Input{Event: res.Event, Sample: res.Sample})

	// 4. outputs
	if err := l.machine.Apply(); err != nil {
		errs = append(errs, err)
		l.log.Errorw("actuator fault, outputs stopping", "error", err)
	}

	res.Transitions = l.machine.Transitions()
	for _, t := range res.Transitions {
		l.log.Infow("transition", "from", t.From.String(), "to", t.To.String(), "reason", string(t.Reason), "tick", t.Tick)
	}
	res.Snapshot = l.machine.Snapshot()
	res.Glitches = l.buttons.Glitches()

	// 5. display, slower cadence
	if l.renderer != nil && now >= l.nextRender {
		l.nextRender = now.Add(l.renderEvery)
		if err := l.renderer.Render(res.Snapshot); err != nil {
			errs = append(errs, err)
		} else {
			res.Rendered = true
		}
	}

	res.Err = errors.Join(errs...)
	return res
}

// Shutdown stops any watering cycle and leaves the outputs off. It returns the
// transitions the stop caused.
func (l *Loop) Shutdown() ([]irrigation.Transition, error) {
	err := l.machine.Shutdown()
	ts := l.machine.Transitions()
	for _, t := range ts {
		l.log.Infow("transition", "from", t.From.String(), "to", t.To.String(), "reason", string(t.Reason), "tick", t.Tick)
	}
	if l.renderer != nil {
		if rerr := l.renderer.Render(l.machine.Snapshot()); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}
	return ts, err
}

// Snapshot returns the machine's current snapshot.
func (l *Loop) Snapshot() irrigation.Snapshot {
	return l.machine.Snapshot()
}
