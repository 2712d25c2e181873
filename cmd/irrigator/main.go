// Command irrigator waters a garden bed when the soil is dry and the light is
// low, driven by a valve and pump relay, three buttons and a small display.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sanity-io/litter"
	"go.uber.org/zap"

	"github.com/sweeney/garden-irrigator/internal/actuator"
	"github.com/sweeney/garden-irrigator/internal/adc"
	"github.com/sweeney/garden-irrigator/internal/config"
	"github.com/sweeney/garden-irrigator/internal/controller"
	"github.com/sweeney/garden-irrigator/internal/display"
	"github.com/sweeney/garden-irrigator/internal/gpio"
	"github.com/sweeney/garden-irrigator/internal/input"
	"github.com/sweeney/garden-irrigator/internal/irrigation"
	"github.com/sweeney/garden-irrigator/internal/logging"
	"github.com/sweeney/garden-irrigator/internal/metrics"
	"github.com/sweeney/garden-irrigator/internal/mqtt"
	"github.com/sweeney/garden-irrigator/internal/sensor"
	"github.com/sweeney/garden-irrigator/internal/status"
	"github.com/sweeney/garden-irrigator/internal/tick"
	"github.com/sweeney/garden-irrigator/internal/web"
)

func main() {
	cfg := config.Default()
	cfg.RegisterFlags(flag.CommandLine)
	printState := flag.Bool("print-state", false, "Print buttons and sensor readings and exit")
	printConfig := flag.Bool("print-config", false, "Print the effective configuration and exit")

	flag.Parse()

	if *printConfig {
		litter.Dump(cfg)
		return
	}

	log, err := logging.New(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, *printState, log); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config, printState bool, log *zap.SugaredLogger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	buttons, err := gpio.NewRealButtons(cfg.Chip, cfg.ButtonPins(), cfg.ButtonsActiveLow)
	if err != nil {
		return fmt.Errorf("init buttons: %w", err)
	}
	defer buttons.Close()

	converter, err := openADC(cfg, log)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}
	defer converter.Close()

	if printState {
		return printCurrentState(os.Stdout, cfg, buttons, converter)
	}

	valve, err := gpio.NewRealRelay(cfg.Chip, cfg.PinValve, cfg.RelaysActiveLow)
	if err != nil {
		return fmt.Errorf("init valve: %w", err)
	}
	pump, err := gpio.NewRealRelay(cfg.Chip, cfg.PinPump, cfg.RelaysActiveLow)
	if err != nil {
		valve.Close()
		return fmt.Errorf("init pump: %w", err)
	}
	drv, err := actuator.New(valve, pump)
	if err != nil {
		valve.Close()
		pump.Close()
		return fmt.Errorf("init outputs: %w", err)
	}
	defer drv.Close()

	sensors, err := sensor.NewReader(converter, cfg.Sensor())
	if err != nil {
		return fmt.Errorf("init sensors: %w", err)
	}

	machine, err := irrigation.New(cfg.Irrigation(), drv, tick.RealSleeper)
	if err != nil {
		return fmt.Errorf("init controller: %w", err)
	}

	renderer, closeDisplay, err := openDisplay(cfg)
	if err != nil {
		// The controller runs headless rather than refusing to water.
		log.Warnw("display unavailable, running headless", "display", cfg.Display, "error", err)
		renderer, closeDisplay = nil, func() error { return nil }
	}
	defer closeDisplay()

	loop := controller.New(cfg.Controller(), input.NewController(buttons, cfg.Input()), sensors, machine, renderer, log)

	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
	} = mqtt.NopPublisher{}
	if cfg.Broker != "" {
		publisher = mqtt.NewRealPublisher(cfg.Broker, log)
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), uuid.NewString(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		log.Warnw("failed to publish startup event", "error", err)
	}

	m := metrics.New()

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, m.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorw("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infow("http status server listening", "addr", cfg.HTTPAddr)
	}

	log.Infow("started",
		"period", cfg.Period, "debounce", cfg.Debounce, "long_press", cfg.LongPress,
		"activation", cfg.Activation, "suspend", cfg.Suspend,
		"moisture_threshold", cfg.MoistureThreshold, "light_threshold", cfg.LightThreshold,
		"adc", cfg.ADC, "display", cfg.Display, "broker", cfg.Broker, "heartbeat", cfg.Heartbeat)

	ticker := time.NewTicker(cfg.Period)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loop, tick.NewMonotonic(cfg.Period), publisher, publisher, tracker, m, cfg.Heartbeat, time.Now, ticker.C, sigCh, log)
}

// runLoop steps the controller on every tick and reports what it did. It
// returns after a signal, once the outputs are off.
func runLoop(loop *controller.Loop, clock tick.Clock, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, m *metrics.Metrics, heartbeat time.Duration, now func() time.Time, ticks <-chan time.Time, sig <-chan os.Signal, log *zap.SugaredLogger) error {
	lastHeartbeat := now()
	glitches := 0

	publish := func(ts []irrigation.Transition, snap irrigation.Snapshot) {
		for _, t := range ts {
			m.Transition(t)
			ev := mqtt.Event{Timestamp: now(), Transition: t, Snapshot: snap}
			if err := publisher.Publish(ev); err != nil {
				log.Warnw("publish error", "event", mqtt.EventName(t), "error", err)
			}
		}
	}

	refresh := func(snap irrigation.Snapshot) {
		tracker.Update(snap, glitches)
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
		m.Observe(snap, glitches)
	}

	for {
		select {
		case s := <-sig:
			log.Infow("shutting down", "signal", s.String())
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}

			ts, err := loop.Shutdown()
			if err != nil {
				log.Errorw("shutdown stop failed", "error", err)
			}
			snap := loop.Snapshot()
			publish(ts, snap)
			refresh(snap)

			final := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  final.Now,
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(final, "SHUTDOWN", signalName),
			}
			if perr := publisher.PublishSystem(event); perr != nil {
				log.Warnw("failed to publish shutdown event", "error", perr)
			}
			return err

		case <-ticks:
			res := loop.Step(clock.Now())
			if res.Err != nil {
				m.LoopError()
				log.Warnw("tick error", "tick", res.Tick, "error", res.Err)
			}
			glitches = res.Glitches
			publish(res.Transitions, res.Snapshot)
			refresh(res.Snapshot)

			t := now()
			if heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = t
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				snap := tracker.Snapshot()
				log.Infow("heartbeat", "mode", res.Snapshot.State.Mode.String(), "cycles", res.Snapshot.Counts.Cycles, "uptime", snap.Uptime())
				hb := mqtt.SystemEvent{
					Timestamp:  t,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}
				if err := publisher.PublishSystem(hb); err != nil {
					log.Warnw("heartbeat publish error", "error", err)
				}
			}
		}
	}
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		PeriodMs:      cfg.Period.Milliseconds(),
		DebounceMs:    cfg.Debounce.Milliseconds(),
		LongPressMs:   cfg.LongPress.Milliseconds(),
		SettleMs:      cfg.Settle.Milliseconds(),
		SampleEveryMs: cfg.SampleEvery.Milliseconds(),
		RenderEveryMs: cfg.RenderEvery.Milliseconds(),
		SuspendS:      int64(cfg.Suspend.Seconds()),
		HeartbeatMs:   cfg.Heartbeat.Milliseconds(),
		ADC:           cfg.ADC,
		Display:       cfg.Display,
		Broker:        cfg.Broker,
		HTTPAddr:      cfg.HTTPAddr,
	}
}

func openADC(cfg config.Config, log *zap.SugaredLogger) (adc.Reader, error) {
	if cfg.ADC == config.ADCSerial {
		r, err := adc.OpenSerialReader(cfg.ADCPort, cfg.ADCBaud, cfg.ADCMaxAge)
		if err != nil {
			return nil, err
		}
		go func() {
			<-r.Done()
			log.Warnw("adc bridge stopped", "port", cfg.ADCPort, "error", r.Err())
		}()
		return r, nil
	}
	return adc.NewIIOReader(cfg.IIODevice)
}

// openDisplay returns the renderer for the configured display and a function
// that releases it. The renderer is nil for "none".
func openDisplay(cfg config.Config) (controller.Renderer, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Display {
	case config.DisplayOLED:
		oled, err := display.OpenOLED(cfg.I2CBus)
		if err != nil {
			return nil, noop, err
		}
		return display.NewPresenter(oled), oled.Close, nil
	case config.DisplayConsole:
		return display.NewPresenter(display.NewConsole(os.Stdout)), noop, nil
	default:
		return nil, noop, nil
	}
}

func printCurrentState(w io.Writer, cfg config.Config, buttons gpio.ButtonReader, converter adc.Reader) error {
	levels, err := buttons.Read()
	if err != nil {
		return fmt.Errorf("read buttons: %w", err)
	}
	for i, pressed := range levels {
		fmt.Fprintf(w, "%s: %s\n", input.Button(i+1), pressedString(pressed))
	}
	channels := []struct {
		name string
		ch   int
		cal  sensor.Calibration
	}{
		{"moisture", cfg.MoistureChannel, cfg.Moisture},
		{"light", cfg.LightChannel, cfg.Light},
	}
	for _, c := range channels {
		raw, err := converter.Read(c.ch)
		if err != nil {
			fmt.Fprintf(w, "%s: ERR (%v)\n", c.name, err)
			continue
		}
		if pct, ok := c.cal.Normalize(raw); ok {
			fmt.Fprintf(w, "%s: raw=%d %.0f%%\n", c.name, raw, pct)
		} else {
			fmt.Fprintf(w, "%s: raw=%d ERR (out of range)\n", c.name, raw)
		}
	}
	return nil
}

func pressedString(on bool) string {
	if on {
		return "PRESSED"
	}
	return "RELEASED"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
