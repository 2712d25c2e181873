// Package config holds the daemon's flag-bound settings and their safe bounds.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/sweeney/garden-irrigator/internal/adc"
	"github.com/sweeney/garden-irrigator/internal/controller"
	"github.com/sweeney/garden-irrigator/internal/gpio"
	"github.com/sweeney/garden-irrigator/internal/input"
	"github.com/sweeney/garden-irrigator/internal/irrigation"
	"github.com/sweeney/garden-irrigator/internal/sensor"
)

// ADC sources.
const (
	ADCIIO    = "iio"
	ADCSerial = "serial"
)

// Display kinds.
const (
	DisplayOLED    = "oled"
	DisplayConsole = "console"
	DisplayNone    = "none"
)

// Safe bounds.
const (
	MinPeriod     = time.Millisecond
	MaxPeriod     = 100 * time.Millisecond
	MinDebounce   = 5 * time.Millisecond
	MaxDebounce   = 100 * time.Millisecond
	MinLongPress  = 500 * time.Millisecond
	MaxLongPress  = 3 * time.Second
	MaxSettle     = 2 * time.Second
	MinActivate   = time.Minute
	MaxActivate   = time.Hour
	StepActivate  = time.Minute
	MinSuspend    = time.Minute
	MaxSuspend    = 24 * time.Hour
	MinThreshold  = 5.0
	MaxThreshold  = 95.0
	StepThreshold = 5.0
)

// Config is everything the daemon can be told on the command line.
type Config struct {
	// Timing
	Period      time.Duration
	Debounce    time.Duration
	LongPress   time.Duration
	Settle      time.Duration
	Activation  time.Duration
	Suspend     time.Duration
	SampleEvery time.Duration
	RenderEvery time.Duration

	// Policy
	MoistureThreshold float64
	LightThreshold    float64

	// Analog inputs
	ADC             string
	IIODevice       string
	ADCPort         string
	ADCBaud         int
	ADCMaxAge       time.Duration
	MoistureChannel int
	LightChannel    int
	Moisture        sensor.Calibration
	Light           sensor.Calibration
	Filter          sensor.FilterConfig

	// GPIO
	Chip             string
	PinSelect        int
	PinDown          int
	PinUp            int
	PinValve         int
	PinPump          int
	ButtonsActiveLow bool
	RelaysActiveLow  bool

	// Display
	Display string
	I2CBus  string

	// Reporting
	Broker    string
	Heartbeat time.Duration
	HTTPAddr  string

	Debug bool
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Period:      10 * time.Millisecond,
		Debounce:    30 * time.Millisecond,
		LongPress:   time.Second,
		Settle:      500 * time.Millisecond,
		Activation:  10 * time.Minute,
		Suspend:     time.Hour,
		SampleEvery: 100 * time.Millisecond,
		RenderEvery: 250 * time.Millisecond,

		MoistureThreshold: 40,
		LightThreshold:    50,

		ADC:             ADCIIO,
		IIODevice:       adc.DefaultIIODevice,
		ADCPort:         "/dev/ttyUSB0",
		ADCBaud:         9600,
		ADCMaxAge:       2 * time.Second,
		MoistureChannel: 0,
		LightChannel:    1,
		// capacitive probe: reads lower when wetter
		Moisture: sensor.Calibration{Zero: 850, Full: 350, FaultBelow: 50, FaultAbove: 1000},
		Light:    sensor.Calibration{Zero: 20, Full: 1000, FaultBelow: 5, FaultAbove: 1018},
		Filter:   sensor.FilterConfig{Kind: sensor.FilterMovingAverage, Window: 8, Alpha: 0.2},

		Chip:             gpio.DefaultChip,
		PinSelect:        gpio.DefaultPinSelect,
		PinDown:          gpio.DefaultPinDown,
		PinUp:            gpio.DefaultPinUp,
		PinValve:         gpio.DefaultPinValve,
		PinPump:          gpio.DefaultPinPump,
		ButtonsActiveLow: true,
		RelaysActiveLow:  true,

		Display: DisplayOLED,

		Broker:    "tcp://192.168.1.200:1883",
		Heartbeat: 15 * time.Minute,
		HTTPAddr:  ":80",
	}
}

// RegisterFlags binds every field to fs, using c's values as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.DurationVar(&c.Period, "period", c.Period, "Control loop period")
	fs.DurationVar(&c.Debounce, "debounce", c.Debounce, "Button debounce window")
	fs.DurationVar(&c.LongPress, "long-press", c.LongPress, "Hold time for a long press")
	fs.DurationVar(&c.Settle, "settle", c.Settle, "Pause between valve and pump changes")
	fs.DurationVar(&c.Activation, "activation", c.Activation, "Watering cycle length")
	fs.DurationVar(&c.Suspend, "suspend", c.Suspend, "Cooldown after a cycle or manual suspend")
	fs.DurationVar(&c.SampleEvery, "sample-every", c.SampleEvery, "Sensor sampling interval")
	fs.DurationVar(&c.RenderEvery, "render-every", c.RenderEvery, "Display refresh interval")

	fs.Float64Var(&c.MoistureThreshold, "moisture", c.MoistureThreshold, "Water when moisture % is below this")
	fs.Float64Var(&c.LightThreshold, "light", c.LightThreshold, "Water only when light % is below this")

	fs.StringVar(&c.ADC, "adc", c.ADC, `Analog source: "iio" or "serial"`)
	fs.StringVar(&c.IIODevice, "iio-device", c.IIODevice, "IIO device sysfs directory")
	fs.StringVar(&c.ADCPort, "adc-port", c.ADCPort, "Serial port of the ADC bridge")
	fs.IntVar(&c.ADCBaud, "adc-baud", c.ADCBaud, "Baud rate of the ADC bridge")
	fs.DurationVar(&c.ADCMaxAge, "adc-max-age", c.ADCMaxAge, "Serial readings older than this are faults")
	fs.IntVar(&c.MoistureChannel, "moisture-channel", c.MoistureChannel, "ADC channel of the moisture probe")
	fs.IntVar(&c.LightChannel, "light-channel", c.LightChannel, "ADC channel of the light sensor")
	fs.IntVar(&c.Moisture.Zero, "moisture-dry", c.Moisture.Zero, "Raw moisture reading at 0%")
	fs.IntVar(&c.Moisture.Full, "moisture-wet", c.Moisture.Full, "Raw moisture reading at 100%")
	fs.IntVar(&c.Moisture.FaultBelow, "moisture-fault-below", c.Moisture.FaultBelow, "Raw moisture below this is a fault")
	fs.IntVar(&c.Moisture.FaultAbove, "moisture-fault-above", c.Moisture.FaultAbove, "Raw moisture above this is a fault")
	fs.IntVar(&c.Light.Zero, "light-dark", c.Light.Zero, "Raw light reading at 0%")
	fs.IntVar(&c.Light.Full, "light-bright", c.Light.Full, "Raw light reading at 100%")
	fs.IntVar(&c.Light.FaultBelow, "light-fault-below", c.Light.FaultBelow, "Raw light below this is a fault")
	fs.IntVar(&c.Light.FaultAbove, "light-fault-above", c.Light.FaultAbove, "Raw light above this is a fault")
	fs.StringVar(&c.Filter.Kind, "filter", c.Filter.Kind, `Smoothing filter: "sma" or "ema"`)
	fs.IntVar(&c.Filter.Window, "filter-window", c.Filter.Window, "Moving average window")
	fs.Float64Var(&c.Filter.Alpha, "filter-alpha", c.Filter.Alpha, "Exponential smoothing factor")

	fs.StringVar(&c.Chip, "chip", c.Chip, "GPIO chip")
	fs.IntVar(&c.PinSelect, "pin-select", c.PinSelect, "BCM pin of the Select button")
	fs.IntVar(&c.PinDown, "pin-down", c.PinDown, "BCM pin of the Down button")
	fs.IntVar(&c.PinUp, "pin-up", c.PinUp, "BCM pin of the Up button")
	fs.IntVar(&c.PinValve, "pin-valve", c.PinValve, "BCM pin of the valve relay")
	fs.IntVar(&c.PinPump, "pin-pump", c.PinPump, "BCM pin of the pump relay")
	fs.BoolVar(&c.ButtonsActiveLow, "buttons-active-low", c.ButtonsActiveLow, "Buttons pull the line low when pressed")
	fs.BoolVar(&c.RelaysActiveLow, "relays-active-low", c.RelaysActiveLow, "Relays energise on a low line")

	fs.StringVar(&c.Display, "display", c.Display, `Status display: "oled", "console" or "none"`)
	fs.StringVar(&c.I2CBus, "i2c-bus", c.I2CBus, "I2C bus of the OLED (empty for the first)")

	fs.StringVar(&c.Broker, "broker", c.Broker, "MQTT broker address (empty to disable)")
	fs.DurationVar(&c.Heartbeat, "heartbeat", c.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.StringVar(&c.HTTPAddr, "http", c.HTTPAddr, "HTTP status address (empty to disable)")

	fs.BoolVar(&c.Debug, "debug", c.Debug, "Development logging")
}

func checkDuration(name string, v, lo, hi time.Duration) error {
	if v < lo || v > hi {
		return fmt.Errorf("%s %v outside [%v, %v]", name, v, lo, hi)
	}
	return nil
}

// Validate reports every setting outside its safe bounds.
func (c Config) Validate() error {
	errs := []error{
		checkDuration("period", c.Period, MinPeriod, MaxPeriod),
		checkDuration("debounce", c.Debounce, MinDebounce, MaxDebounce),
		checkDuration("long-press", c.LongPress, MinLongPress, MaxLongPress),
		checkDuration("settle", c.Settle, 0, MaxSettle),
		checkDuration("activation", c.Activation, MinActivate, MaxActivate),
		checkDuration("suspend", c.Suspend, MinSuspend, MaxSuspend),
	}
	if c.SampleEvery < c.Period {
		errs = append(errs, fmt.Errorf("sample-every %v shorter than period %v", c.SampleEvery, c.Period))
	}
	if c.RenderEvery < c.Period {
		errs = append(errs, fmt.Errorf("render-every %v shorter than period %v", c.RenderEvery, c.Period))
	}
	if c.LongPress <= c.Debounce {
		errs = append(errs, errors.New("long-press must exceed debounce"))
	}
	if c.MoistureThreshold < MinThreshold || c.MoistureThreshold > MaxThreshold {
		errs = append(errs, fmt.Errorf("moisture %v outside [%v, %v]", c.MoistureThreshold, MinThreshold, MaxThreshold))
	}
	if c.LightThreshold < MinThreshold || c.LightThreshold > MaxThreshold {
		errs = append(errs, fmt.Errorf("light %v outside [%v, %v]", c.LightThreshold, MinThreshold, MaxThreshold))
	}

	switch c.ADC {
	case ADCIIO:
	case ADCSerial:
		if c.ADCPort == "" {
			errs = append(errs, errors.New("adc-port required for serial adc"))
		}
		if c.ADCBaud <= 0 {
			errs = append(errs, fmt.Errorf("adc-baud %d must be positive", c.ADCBaud))
		}
		if c.ADCMaxAge <= 0 {
			errs = append(errs, errors.New("adc-max-age must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown adc %q", c.ADC))
	}
	if c.MoistureChannel == c.LightChannel {
		errs = append(errs, fmt.Errorf("moisture and light share adc channel %d", c.LightChannel))
	}
	for _, ch := range []int{c.MoistureChannel, c.LightChannel} {
		if ch < 0 || ch >= adc.MaxChannels {
			errs = append(errs, fmt.Errorf("adc channel %d outside [0, %d)", ch, adc.MaxChannels))
		}
	}
	if err := c.Moisture.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("moisture calibration: %w", err))
	}
	if err := c.Light.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("light calibration: %w", err))
	}
	if _, err := c.Filter.New(); err != nil {
		errs = append(errs, err)
	}

	pins := map[int]string{}
	for name, pin := range map[string]int{
		"select": c.PinSelect, "down": c.PinDown, "up": c.PinUp,
		"valve": c.PinValve, "pump": c.PinPump,
	} {
		if other, dup := pins[pin]; dup {
			errs = append(errs, fmt.Errorf("pin %d used by both %s and %s", pin, min(name, other), max(name, other)))
		}
		pins[pin] = name
	}

	switch c.Display {
	case DisplayOLED, DisplayConsole, DisplayNone:
	default:
		errs = append(errs, fmt.Errorf("unknown display %q", c.Display))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, errors.New("heartbeat must not be negative"))
	}
	return errors.Join(errs...)
}

// Irrigation returns the state machine configuration.
func (c Config) Irrigation() irrigation.Config {
	return irrigation.Config{
		Period:           c.Period,
		Activation:       c.Activation,
		ActivationBounds: irrigation.DurationBounds{Min: MinActivate, Max: MaxActivate, Step: StepActivate},
		Suspend:          c.Suspend,
		Settle:           c.Settle,

		MoistureThreshold: c.MoistureThreshold,
		MoistureBounds:    irrigation.Bounds{Min: MinThreshold, Max: MaxThreshold, Step: StepThreshold},
		LightThreshold:    c.LightThreshold,
		LightBounds:       irrigation.Bounds{Min: MinThreshold, Max: MaxThreshold, Step: StepThreshold},
	}
}

// Input returns the button timing.
func (c Config) Input() input.Config {
	return input.Config{Period: c.Period, Debounce: c.Debounce, LongPress: c.LongPress}
}

// Sensor returns the sensor reader configuration.
func (c Config) Sensor() sensor.Config {
	return sensor.Config{
		Moisture: sensor.Channel{ADC: c.MoistureChannel, Calibration: c.Moisture},
		Light:    sensor.Channel{ADC: c.LightChannel, Calibration: c.Light},
		Filter:   c.Filter,
	}
}

// Controller returns the loop cadences.
func (c Config) Controller() controller.Config {
	return controller.Config{Period: c.Period, SampleEvery: c.SampleEvery, RenderEvery: c.RenderEvery}
}

// ButtonPins returns the button pins in button order.
func (c Config) ButtonPins() [gpio.ButtonCount]int {
	return [gpio.ButtonCount]int{c.PinSelect, c.PinDown, c.PinUp}
}
