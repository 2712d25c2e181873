package controller

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/sweeney/garden-irrigator/internal/actuator"
	"github.com/sweeney/garden-irrigator/internal/display"
	"github.com/sweeney/garden-irrigator/internal/gpio"
	"github.com/sweeney/garden-irrigator/internal/input"
	"github.com/sweeney/garden-irrigator/internal/irrigation"
	"github.com/sweeney/garden-irrigator/internal/sensor"
	"github.com/sweeney/garden-irrigator/internal/tick"
)

// phaseLog records the order components are called in.
type phaseLog struct {
	calls []string
}

type fakePoller struct {
	log    *phaseLog
	events map[tick.Tick]input.Event
	err    error
}

func (p *fakePoller) Poll(now tick.Tick) (input.Event, bool, error) {
	p.log.calls = append(p.log.calls, "poll")
	if p.err != nil {
		return input.Event{}, false, p.err
	}
	ev, ok := p.events[now]
	return ev, ok, nil
}

func (p *fakePoller) Glitches() int { return 0 }

type fakeSampler struct {
	log      *phaseLog
	moisture float64
	light    float64
	fault    sensor.Fault
}

func (s *fakeSampler) Sample(now tick.Tick) sensor.Sample {
	s.log.calls = append(s.log.calls, "sample")
	return sensor.Sample{Moisture: s.moisture, Light: s.light, Tick: now, Fault: s.fault}
}

type fakeRenderer struct {
	log   *phaseLog
	snaps []irrigation.Snapshot
	err   error
}

func (r *fakeRenderer) Render(s irrigation.Snapshot) error {
	r.log.calls = append(r.log.calls, "render")
	r.snaps = append(r.snaps, s)
	return r.err
}

type setup struct {
	loop     *Loop
	calls    *phaseLog
	poller   *fakePoller
	sampler  *fakeSampler
	renderer *fakeRenderer
	relays   *gpio.OpLog
}

func newSetup(t *testing.T) *setup {
	t.Helper()
	calls := &phaseLog{}
	relays := &gpio.OpLog{}
	drv, err := actuator.New(gpio.NewFakeRelay("valve", relays), gpio.NewFakeRelay("pump", relays))
	if err != nil {
		t.Fatal(err)
	}
	relays.Ops = nil

	cfg := irrigation.DefaultConfig()
	cfg.Period = 10 * time.Millisecond
	cfg.Activation = time.Minute
	sleep := &tick.RecordingSleeper{Hook: func(time.Duration) {
		calls.calls = append(calls.calls, "settle")
	}}
	m, err := irrigation.New(cfg, drv, sleep)
	if err != nil {
		t.Fatal(err)
	}

	s := &setup{
		calls:    calls,
		poller:   &fakePoller{log: calls, events: map[tick.Tick]input.Event{}},
		sampler:  &fakeSampler{log: calls, moisture: 80, light: 20},
		renderer: &fakeRenderer{log: calls},
		relays:   relays,
	}
	s.loop = New(Config{
		Period:      10 * time.Millisecond,
		SampleEvery: 50 * time.Millisecond,
		RenderEvery: 100 * time.Millisecond,
	}, s.poller, s.sampler, m, s.renderer, zaptest.NewLogger(t).Sugar())
	return s
}

func TestStepPhaseOrder(t *testing.T) {
	s := newSetup(t)
	s.sampler.moisture = 30

	res := s.loop.Step(0)
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	want := []string{"poll", "sample", "settle", "render"}
	if !reflect.DeepEqual(s.calls.calls, want) {
		t.Errorf("calls: got %v, want %v", s.calls.calls, want)
	}
	if len(res.Transitions) != 1 || res.Transitions[0].To != irrigation.Watering {
		t.Errorf("transitions: %+v", res.Transitions)
	}
	if !res.Rendered || s.renderer.snaps[0].State.Mode != irrigation.Watering {
		t.Error("display should show the state after this tick's update")
	}
}

func TestSubSamplingAndRenderCadence(t *testing.T) {
	s := newSetup(t)
	samples, renders := 0, 0
	for now := tick.Tick(0); now < 20; now++ {
		res := s.loop.Step(now)
		if res.Sample != nil {
			samples++
		}
		if res.Rendered {
			renders++
		}
	}
	// every 5 ticks and every 10 ticks
	if samples != 4 {
		t.Errorf("samples: got %d, want 4", samples)
	}
	if renders != 2 {
		t.Errorf("renders: got %d, want 2", renders)
	}
}

func TestEventReachesMachine(t *testing.T) {
	s := newSetup(t)
	s.poller.events[3] = input.Event{Button: input.ButtonSelect, Kind: input.LongPress, Tick: 3}

	var res Result
	for now := tick.Tick(0); now <= 3; now++ {
		res = s.loop.Step(now)
	}
	if res.Event == nil || res.Event.Kind != input.LongPress {
		t.Fatalf("expected event in result, got %+v", res.Event)
	}
	if res.Snapshot.State.Mode != irrigation.Suspended {
		t.Errorf("expected Suspended, got %v", res.Snapshot.State.Mode)
	}
}

func TestPollErrorDoesNotStopTick(t *testing.T) {
	s := newSetup(t)
	s.poller.err = errors.New("gpio gone")
	s.sampler.moisture = 30

	res := s.loop.Step(0)
	if res.Err == nil {
		t.Error("expected error")
	}
	if res.Snapshot.State.Mode != irrigation.Watering {
		t.Error("sensor-driven watering should still proceed")
	}
}

func TestRenderErrorReported(t *testing.T) {
	s := newSetup(t)
	s.renderer.err = errors.New("i2c nack")
	res := s.loop.Step(0)
	if res.Err == nil || res.Rendered {
		t.Errorf("expected render error, got %+v", res)
	}
}

func TestSensorFaultStopsWateringInOneStep(t *testing.T) {
	s := newSetup(t)
	s.sampler.moisture = 30
	s.loop.Step(0)
	s.relays.Ops = nil

	s.sampler.fault = sensor.MoistureFault
	var res Result
	for now := tick.Tick(1); now <= 5; now++ {
		res = s.loop.Step(now)
	}
	// sample at tick 5 carries the fault
	if res.Snapshot.State.Mode != irrigation.Suspended {
		t.Fatalf("expected Suspended, got %v", res.Snapshot.State.Mode)
	}
	want := []string{"pump=false", "valve=false"}
	if !reflect.DeepEqual(s.relays.Ops, want) {
		t.Errorf("ops: got %v, want %v", s.relays.Ops, want)
	}
}

func TestShutdownStopsCycle(t *testing.T) {
	s := newSetup(t)
	s.sampler.moisture = 30
	s.loop.Step(0)
	s.relays.Ops = nil

	ts, err := s.loop.Shutdown()
	if err != nil {
		t.Fatal(err)
	}
	if len(ts) != 1 || ts[0].Reason != irrigation.ReasonShutdown {
		t.Errorf("transitions: %+v", ts)
	}
	want := []string{"pump=false", "valve=false"}
	if !reflect.DeepEqual(s.relays.Ops, want) {
		t.Errorf("ops: got %v, want %v", s.relays.Ops, want)
	}
}

func TestWithRealPresenter(t *testing.T) {
	s := newSetup(t)
	canvas := display.NewFakeCanvas()
	s.loop.renderer = display.NewPresenter(canvas)
	s.loop.Step(0)
	if canvas.Line(0) != "IDLE" {
		t.Errorf("header: %q", canvas.Line(0))
	}
}
