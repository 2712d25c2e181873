package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/sweeney/garden-irrigator/internal/actuator"
	"github.com/sweeney/garden-irrigator/internal/adc"
	"github.com/sweeney/garden-irrigator/internal/config"
	"github.com/sweeney/garden-irrigator/internal/controller"
	"github.com/sweeney/garden-irrigator/internal/gpio"
	"github.com/sweeney/garden-irrigator/internal/input"
	"github.com/sweeney/garden-irrigator/internal/irrigation"
	"github.com/sweeney/garden-irrigator/internal/metrics"
	"github.com/sweeney/garden-irrigator/internal/mqtt"
	"github.com/sweeney/garden-irrigator/internal/sensor"
	"github.com/sweeney/garden-irrigator/internal/status"
	"github.com/sweeney/garden-irrigator/internal/tick"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want %q", info.Status, "connected")
	}
	if info.Type != "" || info.IP != "" || info.SSID != "" {
		t.Errorf("expected other fields empty, got %+v", info)
	}
}

// --- runLoop tests ---

// Raw conversions for the stock calibrations.
const (
	rawDry   = 800 // 10% moisture
	rawWet   = 400 // 90% moisture
	rawDark  = 100 // about 8% light
	rawLight = 900 // about 90% light
)

// stepClock yields 0, 1, 2, ... on successive calls. Only runLoop's goroutine calls it.
type stepClock struct{ n tick.Tick }

func (c *stepClock) Now() tick.Tick {
	t := c.n
	c.n++
	return t
}

// fakeClock returns a function that yields start, start+step, start+2*step, ...
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

type rig struct {
	cfg     config.Config
	buttons *gpio.FakeButtons
	adc     *adc.FakeReader
	valve   *gpio.FakeRelay
	pump    *gpio.FakeRelay
	ops     *gpio.OpLog
	loop    *controller.Loop
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	metrics *metrics.Metrics
}

func newRig(t *testing.T, moisture, light int) *rig {
	t.Helper()
	cfg := config.Default()
	cfg.Period = time.Second
	cfg.Debounce = 3 * time.Second
	cfg.LongPress = 10 * time.Second
	cfg.Activation = time.Minute
	cfg.Suspend = 2 * time.Minute
	cfg.SampleEvery = time.Second
	cfg.RenderEvery = time.Second
	cfg.Filter = sensor.FilterConfig{Kind: sensor.FilterMovingAverage, Window: 1}

	r := &rig{
		cfg:     cfg,
		buttons: gpio.NewFakeButtons([][gpio.ButtonCount]bool{{}}),
		adc:     adc.NewFakeReader(map[int]int{cfg.MoistureChannel: moisture, cfg.LightChannel: light}),
		ops:     &gpio.OpLog{},
		pub:     mqtt.NewFakePublisher(),
		metrics: metrics.New(),
	}
	r.valve = gpio.NewFakeRelay("valve", r.ops)
	r.pump = gpio.NewFakeRelay("pump", r.ops)

	drv, err := actuator.New(r.valve, r.pump)
	if err != nil {
		t.Fatalf("actuator.New: %v", err)
	}
	sensors, err := sensor.NewReader(r.adc, cfg.Sensor())
	if err != nil {
		t.Fatalf("sensor.NewReader: %v", err)
	}
	machine, err := irrigation.New(cfg.Irrigation(), drv, &tick.RecordingSleeper{})
	if err != nil {
		t.Fatalf("irrigation.New: %v", err)
	}
	log := zaptest.NewLogger(t).Sugar()
	r.loop = controller.New(cfg.Controller(), input.NewController(r.buttons, cfg.Input()), sensors, machine, nil, log)
	r.tracker = status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "boot-1", statusConfig(cfg))
	return r
}

// run drives runLoop for nTicks and then delivers signal.
func (r *rig) run(t *testing.T, heartbeat time.Duration, now func() time.Time, nTicks int, signal os.Signal) error {
	t.Helper()
	ticks := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(r.loop, &stepClock{}, r.pub, r.pub, r.tracker, r.metrics, heartbeat, now, ticks, sig, zaptest.NewLogger(t).Sugar())
	}()

	for i := 0; i < nTicks; i++ {
		ticks <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func defaultNow() func() time.Time {
	return fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
}

func eventNames(pub *mqtt.FakePublisher) []string {
	var names []string
	for _, ev := range pub.Events {
		names = append(names, mqtt.EventName(ev.Transition))
	}
	return names
}

func systemEvents(pub *mqtt.FakePublisher, name string) []mqtt.SystemEvent {
	var out []mqtt.SystemEvent
	for _, se := range pub.SystemEvents {
		if se.Event == name {
			out = append(out, se)
		}
	}
	return out
}

func TestRunLoopWetSoilNoEvents(t *testing.T) {
	r := newRig(t, rawWet, rawDark)

	if err := r.run(t, 0, defaultNow(), 5, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(r.pub.Events) != 0 {
		t.Errorf("expected 0 transition events, got %v", eventNames(r.pub))
	}
	if len(r.pub.SystemEvents) != 1 || r.pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Fatalf("expected only SHUTDOWN, got %+v", r.pub.SystemEvents)
	}
	if r.valve.On || r.pump.On {
		t.Error("outputs should be off")
	}
}

func TestRunLoopStartsWhenDryAndDark(t *testing.T) {
	r := newRig(t, rawDry, rawDark)

	if err := r.run(t, 0, defaultNow(), 3, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	want := []string{"IDLE_TO_WATERING", "WATERING_TO_IDLE"}
	got := eventNames(r.pub)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	if reason := r.pub.Events[0].Transition.Reason; reason != irrigation.ReasonMoistureLow {
		t.Errorf("start reason: got %q", reason)
	}
	if reason := r.pub.Events[1].Transition.Reason; reason != irrigation.ReasonShutdown {
		t.Errorf("stop reason: got %q", reason)
	}
	if !r.pub.Events[0].Snapshot.State.PumpRunning {
		t.Error("start event snapshot should show the pump running")
	}

	// valve before pump on the way up, pump before valve on the way down
	wantOps := []string{"pump=false", "valve=false", "valve=true", "pump=true", "pump=false", "valve=false"}
	if got := r.ops.Ops; strings.Join(got, ",") != strings.Join(wantOps, ",") {
		t.Errorf("ops: got %v, want %v", got, wantOps)
	}
	if r.valve.On || r.pump.On {
		t.Error("outputs should be off after shutdown")
	}
}

func TestRunLoopBrightDayDoesNotWater(t *testing.T) {
	r := newRig(t, rawDry, rawLight)

	if err := r.run(t, 0, defaultNow(), 5, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(r.pub.Events) != 0 {
		t.Errorf("expected no watering in daylight, got %v", eventNames(r.pub))
	}
}

func TestRunLoopCompletedCycleSuspends(t *testing.T) {
	r := newRig(t, rawDry, rawDark)

	if err := r.run(t, 0, defaultNow(), 70, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	want := []string{"IDLE_TO_WATERING", "WATERING_TO_IDLE", "IDLE_TO_SUSPENDED"}
	got := eventNames(r.pub)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	if reason := r.pub.Events[1].Transition.Reason; reason != irrigation.ReasonCompleted {
		t.Errorf("stop reason: got %q, want completed", reason)
	}

	snap := r.tracker.Snapshot()
	if snap.Controller.State.Mode != irrigation.Suspended {
		t.Errorf("mode: got %v, want SUSPENDED", snap.Controller.State.Mode)
	}
	if snap.Controller.Counts.Cycles != 1 || snap.Controller.Counts.Aborts != 0 {
		t.Errorf("counts: got %+v", snap.Controller.Counts)
	}
}

func TestRunLoopSensorFaultBlocksWatering(t *testing.T) {
	r := newRig(t, rawDry, rawDark)
	r.adc.Errors[r.cfg.MoistureChannel] = errors.New("i2c nack")

	if err := r.run(t, 0, defaultNow(), 5, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(r.pub.Events) != 0 {
		t.Errorf("expected no watering with a faulted probe, got %v", eventNames(r.pub))
	}
	snap := r.tracker.Snapshot()
	if !snap.Controller.Fault.Has(irrigation.FaultSensor) {
		t.Errorf("fault: got %v, want sensor", snap.Controller.Fault)
	}
	if snap.Controller.Counts.SensorFaults != 1 {
		t.Errorf("SensorFaults: got %d, want 1", snap.Controller.Counts.SensorFaults)
	}
}

func TestRunLoopActuatorFault(t *testing.T) {
	r := newRig(t, rawDry, rawDark)
	r.pump.SetError = errors.New("relay driver fault")

	// the pump never acknowledges off, so the shutdown stop reports it
	if err := r.run(t, 0, defaultNow(), 3, syscall.SIGTERM); err == nil {
		t.Fatal("expected shutdown error from the faulted pump")
	}

	got := eventNames(r.pub)
	if len(got) < 2 || got[0] != "IDLE_TO_WATERING" || got[1] != "WATERING_TO_SUSPENDED" {
		t.Fatalf("events: got %v", got)
	}
	if !r.valve.On {
		t.Error("valve must stay open while the pump is not confirmed off")
	}
	snap := r.tracker.Snapshot()
	if !snap.Controller.Fault.Has(irrigation.FaultActuator) {
		t.Errorf("fault: got %v, want actuator", snap.Controller.Fault)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	r := newRig(t, rawWet, rawDark)

	// now() is read once at start and once per quiet tick: 0, 5m, 10m, 15m, 20m.
	now := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 5*time.Minute)
	if err := r.run(t, 15*time.Minute, now, 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	hbs := systemEvents(r.pub, "HEARTBEAT")
	if len(hbs) != 1 {
		t.Fatalf("expected 1 HEARTBEAT, got %d", len(hbs))
	}
	if !strings.Contains(string(hbs[0].RawPayload), `"event":"HEARTBEAT"`) {
		t.Errorf("heartbeat payload: %s", hbs[0].RawPayload)
	}
	if len(systemEvents(r.pub, "SHUTDOWN")) != 1 {
		t.Error("expected 1 SHUTDOWN")
	}
}

func TestRunLoopHeartbeatDisabled(t *testing.T) {
	r := newRig(t, rawWet, rawDark)

	now := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Hour)
	if err := r.run(t, 0, now, 4, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if n := len(systemEvents(r.pub, "HEARTBEAT")); n != 0 {
		t.Errorf("expected no HEARTBEAT with interval 0, got %d", n)
	}
}

func TestRunLoopPublishError(t *testing.T) {
	r := newRig(t, rawDry, rawDark)
	r.pub.PublishError = fmt.Errorf("broker unavailable")

	if err := r.run(t, 0, defaultNow(), 3, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(r.pub.Events) != 0 {
		t.Errorf("expected 0 recorded events (publish failed), got %d", len(r.pub.Events))
	}
	if r.tracker.Snapshot().Controller.Counts.Cycles != 1 {
		t.Error("watering should proceed regardless of publish errors")
	}
	if len(systemEvents(r.pub, "SHUTDOWN")) != 1 {
		t.Error("expected SHUTDOWN system event despite publish errors")
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	r := newRig(t, rawWet, rawDark)

	if err := r.run(t, 0, defaultNow(), 2, syscall.SIGINT); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	sd := systemEvents(r.pub, "SHUTDOWN")
	if len(sd) != 1 {
		t.Fatalf("expected 1 SHUTDOWN, got %d", len(sd))
	}
	if sd[0].Reason != "SIGINT" {
		t.Errorf("reason: got %q, want SIGINT", sd[0].Reason)
	}
	if !sd[0].Retained {
		t.Error("SHUTDOWN should be retained")
	}
	if !strings.Contains(string(sd[0].RawPayload), `"reason":"SIGINT"`) {
		t.Errorf("payload: %s", sd[0].RawPayload)
	}
}

func TestRunLoopUpdatesTracker(t *testing.T) {
	r := newRig(t, rawWet, rawDark)
	r.pub.Connected = true

	if err := r.run(t, 0, defaultNow(), 2, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	snap := r.tracker.Snapshot()
	if !snap.Ready {
		t.Error("expected Ready after ticks")
	}
	if !snap.MQTTConnected {
		t.Error("expected MQTT connected from ConnectionStatus")
	}
	if !snap.Controller.HasSample || snap.Controller.Sample.Moisture != 90 {
		t.Errorf("sample: got %+v", snap.Controller.Sample)
	}
}

func TestPrintCurrentState(t *testing.T) {
	cfg := config.Default()
	buttons := gpio.NewFakeButtons([][gpio.ButtonCount]bool{{true, false, false}})
	conv := adc.NewFakeReader(map[int]int{cfg.MoistureChannel: 350})
	conv.Errors[cfg.LightChannel] = errors.New("no device")

	var buf bytes.Buffer
	if err := printCurrentState(&buf, cfg, buttons, conv); err != nil {
		t.Fatalf("printCurrentState: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"SELECT: PRESSED", "DOWN: RELEASED", "UP: RELEASED", "moisture: raw=350 100%", "light: ERR"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintCurrentStateButtonError(t *testing.T) {
	buttons := gpio.NewFakeButtons(nil)
	buttons.ReadError = errors.New("chip gone")

	if err := printCurrentState(&bytes.Buffer{}, config.Default(), buttons, adc.NewFakeReader(nil)); err == nil {
		t.Error("expected error")
	}
}

func TestStatusConfig(t *testing.T) {
	cfg := config.Default()
	sc := statusConfig(cfg)
	if sc.PeriodMs != 10 || sc.DebounceMs != 30 || sc.LongPressMs != 1000 {
		t.Errorf("timing: got %+v", sc)
	}
	if sc.SuspendS != 3600 {
		t.Errorf("SuspendS: got %d, want 3600", sc.SuspendS)
	}
	if sc.Broker != cfg.Broker || sc.HTTPAddr != cfg.HTTPAddr {
		t.Errorf("reporting: got %+v", sc)
	}
}

func TestOpenDisplayNone(t *testing.T) {
	cfg := config.Default()
	cfg.Display = config.DisplayNone
	r, closer, err := openDisplay(cfg)
	if err != nil {
		t.Fatalf("openDisplay: %v", err)
	}
	if r != nil {
		t.Errorf("expected nil renderer, got %T", r)
	}
	if err := closer(); err != nil {
		t.Errorf("close: %v", err)
	}
}
