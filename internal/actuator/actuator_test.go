package actuator

import (
	"errors"
	"reflect"
	"testing"

	"github.com/sweeney/garden-irrigator/internal/gpio"
)

func newTestDriver(t *testing.T) (*Driver, *gpio.FakeRelay, *gpio.FakeRelay, *gpio.OpLog) {
	t.Helper()
	log := &gpio.OpLog{}
	valve := gpio.NewFakeRelay(OutputValve, log)
	pump := gpio.NewFakeRelay(OutputPump, log)
	d, err := New(valve, pump)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Ops = nil
	return d, valve, pump, log
}

func expectOps(t *testing.T, log *gpio.OpLog, want ...string) {
	t.Helper()
	if !reflect.DeepEqual(log.Ops, want) {
		t.Errorf("ops: got %v, want %v", log.Ops, want)
	}
	log.Ops = nil
}

func TestNewDrivesOutputsOff(t *testing.T) {
	log := &gpio.OpLog{}
	valve := gpio.NewFakeRelay(OutputValve, log)
	pump := gpio.NewFakeRelay(OutputPump, log)
	valve.On, pump.On = true, true

	d, err := New(valve, pump)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if valve.On || pump.On {
		t.Error("expected both relays released")
	}
	want := []string{"pump=false", "valve=false"}
	if !reflect.DeepEqual(log.Ops, want) {
		t.Errorf("ops: got %v, want %v", log.Ops, want)
	}
	if d.Valve() || d.Pump() {
		t.Error("driver should believe both outputs off")
	}
}

func TestPumpRequiresValve(t *testing.T) {
	d, _, pump, log := newTestDriver(t)

	err := d.SetPump(true)
	if !errors.Is(err, ErrPumpWithoutValve) {
		t.Fatalf("expected ErrPumpWithoutValve, got %v", err)
	}
	if pump.On || d.Pump() {
		t.Error("pump must stay off")
	}
	if len(log.Ops) != 0 {
		t.Errorf("no relay writes expected, got %v", log.Ops)
	}
}

func TestStartAndStopSequence(t *testing.T) {
	d, valve, pump, log := newTestDriver(t)

	if err := d.SetValve(true); err != nil {
		t.Fatal(err)
	}
	if err := d.SetPump(true); err != nil {
		t.Fatal(err)
	}
	if !valve.On || !pump.On || !d.Valve() || !d.Pump() {
		t.Fatal("expected both outputs on")
	}
	if err := d.SetPump(false); err != nil {
		t.Fatal(err)
	}
	if err := d.SetValve(false); err != nil {
		t.Fatal(err)
	}
	want := []string{"valve=true", "pump=true", "pump=false", "valve=false"}
	if !reflect.DeepEqual(log.Ops, want) {
		t.Errorf("ops: got %v, want %v", log.Ops, want)
	}
}

func TestClosingValveStopsPumpFirst(t *testing.T) {
	d, _, _, log := newTestDriver(t)
	_ = d.SetValve(true)
	_ = d.SetPump(true)
	log.Ops = nil

	if err := d.SetValve(false); err != nil {
		t.Fatal(err)
	}
	want := []string{"pump=false", "valve=false"}
	if !reflect.DeepEqual(log.Ops, want) {
		t.Errorf("ops: got %v, want %v", log.Ops, want)
	}
}

func TestReadbackMismatch(t *testing.T) {
	d, valve, _, _ := newTestDriver(t)
	stuck := false
	valve.Stuck = &stuck

	err := d.SetValve(true)
	if !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
	var mm *MismatchError
	if !errors.As(err, &mm) {
		t.Fatalf("expected *MismatchError, got %T", err)
	}
	if mm.Output != OutputValve || !mm.Want || mm.Got {
		t.Errorf("unexpected mismatch detail: %+v", mm)
	}
	if d.Valve() {
		t.Error("driver should record the observed (closed) valve")
	}
	if err := d.SetPump(true); !errors.Is(err, ErrPumpWithoutValve) {
		t.Errorf("pump must be refused after failed valve open, got %v", err)
	}
}

func TestSetErrorIsWrapped(t *testing.T) {
	d, _, pump, _ := newTestDriver(t)
	_ = d.SetValve(true)
	boom := errors.New("line busy")
	pump.SetError = boom

	err := d.SetPump(true)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestOffKeepsValveOpenWhilePumpWriteFails(t *testing.T) {
	d, valve, pump, _ := newTestDriver(t)
	_ = d.SetValve(true)
	_ = d.SetPump(true)

	boom := errors.New("pump relay dead")
	pump.SetError = boom

	err := d.Off()
	if !errors.Is(err, boom) {
		t.Errorf("expected pump error in result, got %v", err)
	}
	if !valve.On || !d.Valve() {
		t.Error("valve must stay open while the pump may still run")
	}
	if !d.Pump() {
		t.Error("pump state unknown after failed write; driver should assume on")
	}
}

func TestOffWithStuckPump(t *testing.T) {
	d, valve, pump, log := newTestDriver(t)
	_ = d.SetValve(true)
	_ = d.SetPump(true)
	stuck := true
	pump.Stuck = &stuck
	log.Ops = nil

	err := d.Off()
	if !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
	expectOps(t, log, "pump=false")
	if !valve.On {
		t.Error("valve closed against a running pump")
	}
	if !d.Pump() || !d.Valve() {
		t.Errorf("driver state: pump=%v valve=%v, want both on", d.Pump(), d.Valve())
	}

	pump.Stuck = nil
	if err := d.Off(); err != nil {
		t.Fatalf("Off after recovery: %v", err)
	}
	expectOps(t, log, "pump=false", "valve=false")
}

func TestCloseReleasesLines(t *testing.T) {
	d, valve, pump, _ := newTestDriver(t)
	_ = d.SetValve(true)
	_ = d.SetPump(true)

	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if !valve.Closed || !pump.Closed {
		t.Error("expected both relays closed")
	}
	if valve.On || pump.On {
		t.Error("expected both relays released")
	}
}

func TestMismatchErrorMessage(t *testing.T) {
	err := &MismatchError{Output: OutputPump, Want: false, Got: true}
	want := "actuator: pump commanded false, reads true"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
