package sensor

import (
	"errors"
	"math"
	"testing"

	"github.com/sweeney/garden-irrigator/internal/adc"
)

const (
	chMoisture = 0
	chLight    = 1
)

// capacitive probe: 800 raw when dry, 400 raw when saturated
var moistureCal = Calibration{Zero: 800, Full: 400, FaultBelow: 100, FaultAbove: 1000}

// LDR divider: 0 raw in darkness, 1000 in full sun
var lightCal = Calibration{Zero: 0, Full: 1000, FaultBelow: 0, FaultAbove: 1023}

func newTestReader(t *testing.T, fc FilterConfig) (*Reader, *adc.FakeReader) {
	t.Helper()
	fake := adc.NewFakeReader(map[int]int{chMoisture: 800, chLight: 0})
	r, err := NewReader(fake, Config{
		Moisture: Channel{ADC: chMoisture, Calibration: moistureCal},
		Light:    Channel{ADC: chLight, Calibration: lightCal},
		Filter:   fc,
	})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	return r, fake
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw    int
		want   float64
		wantOK bool
	}{
		{800, 0, true},
		{400, 100, true},
		{600, 50, true},
		{900, 0, true},   // drier than calibrated dry: clamped
		{200, 100, true}, // wetter than calibrated wet: clamped
		{50, 0, false},   // shorted probe
		{1020, 0, false}, // disconnected probe floats high
	}
	for _, tt := range tests {
		got, ok := moistureCal.Normalize(tt.raw)
		if ok != tt.wantOK {
			t.Errorf("raw %d: ok=%v, want %v", tt.raw, ok, tt.wantOK)
			continue
		}
		if ok && !approx(got, tt.want) {
			t.Errorf("raw %d: got %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestCalibrationValidate(t *testing.T) {
	if err := (Calibration{Zero: 5, Full: 5}).Validate(); err == nil {
		t.Error("expected error for zero == full")
	}
	if err := (Calibration{Zero: 0, Full: 10, FaultBelow: 20, FaultAbove: 10}).Validate(); err == nil {
		t.Error("expected error for empty fault window")
	}
	if err := moistureCal.Validate(); err != nil {
		t.Errorf("valid calibration rejected: %v", err)
	}
}

func TestSampleSmoothsMoisture(t *testing.T) {
	r, fake := newTestReader(t, FilterConfig{Kind: FilterMovingAverage, Window: 4})

	fake.Set(chMoisture, 600) // 50%
	s := r.Sample(1)
	if s.Faulted() {
		t.Fatalf("unexpected fault: %v", s.Fault)
	}
	if !approx(s.Moisture, 50) {
		t.Errorf("first sample: got %v, want 50", s.Moisture)
	}

	// One noisy spike to 100% is averaged down
	fake.Set(chMoisture, 400)
	s = r.Sample(2)
	if !approx(s.Moisture, 75) {
		t.Errorf("after spike: got %v, want 75", s.Moisture)
	}
	if s.Tick != 2 {
		t.Errorf("tick: got %d, want 2", s.Tick)
	}
}

func TestSampleFaultOutOfRange(t *testing.T) {
	r, fake := newTestReader(t, FilterConfig{Kind: FilterMovingAverage, Window: 4})
	fake.Set(chMoisture, 1023)
	s := r.Sample(1)
	if !s.Faulted() {
		t.Fatal("expected fault for disconnected probe")
	}
	if s.Fault != MoistureFault {
		t.Errorf("fault: got %v, want moisture", s.Fault)
	}
}

func TestSampleFaultOnReadError(t *testing.T) {
	r, fake := newTestReader(t, FilterConfig{Kind: FilterExponential, Alpha: 0.5})
	fake.Errors[chLight] = errors.New("i2c nack")
	s := r.Sample(1)
	if s.Fault != LightFault {
		t.Errorf("fault: got %v, want light", s.Fault)
	}
}

func TestFaultResetsFilter(t *testing.T) {
	r, fake := newTestReader(t, FilterConfig{Kind: FilterMovingAverage, Window: 8})
	for i := 0; i < 8; i++ {
		r.Sample(0) // 0% history
	}
	fake.Set(chMoisture, 1023)
	r.Sample(9)
	fake.Set(chMoisture, 400) // probe reconnected, 100%
	s := r.Sample(10)
	if !approx(s.Moisture, 100) {
		t.Errorf("after recovery: got %v, want 100 (history should be discarded)", s.Moisture)
	}
}

func TestSampleValuesAlwaysInRange(t *testing.T) {
	r, fake := newTestReader(t, FilterConfig{Kind: FilterExponential, Alpha: 0.3})
	for raw := 100; raw <= 1000; raw += 37 {
		fake.Set(chMoisture, raw)
		fake.Set(chLight, 1023-raw)
		s := r.Sample(0)
		if s.Moisture < 0 || s.Moisture > 100 || s.Light < 0 || s.Light > 100 {
			t.Errorf("raw %d: out of range sample %+v", raw, s)
		}
	}
}

func TestNewReaderRejectsBadConfig(t *testing.T) {
	fake := adc.NewFakeReader(nil)
	_, err := NewReader(fake, Config{
		Moisture: Channel{Calibration: Calibration{Zero: 1, Full: 1}},
		Light:    Channel{Calibration: lightCal},
		Filter:   FilterConfig{Kind: FilterMovingAverage, Window: 4},
	})
	if err == nil {
		t.Error("expected calibration error")
	}
	_, err = NewReader(fake, Config{
		Moisture: Channel{Calibration: moistureCal},
		Light:    Channel{Calibration: lightCal},
		Filter:   FilterConfig{Kind: "median"},
	})
	if err == nil {
		t.Error("expected filter error")
	}
}

func TestFaultString(t *testing.T) {
	tests := map[Fault]string{
		0:                          "none",
		MoistureFault:              "moisture",
		LightFault:                 "light",
		MoistureFault | LightFault: "moisture+light",
	}
	for f, want := range tests {
		if got := f.String(); got != want {
			t.Errorf("%d: got %q, want %q", f, got, want)
		}
	}
}
