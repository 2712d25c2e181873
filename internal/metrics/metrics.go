// Package metrics exposes controller state as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/garden-irrigator/internal/irrigation"
	"github.com/sweeney/garden-irrigator/internal/sensor"
)

const namespace = "irrigator"

var modes = []irrigation.Mode{irrigation.Idle, irrigation.Watering, irrigation.Suspended}

// Metrics holds the collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	moisture    prometheus.Gauge
	light       prometheus.Gauge
	sensorFault *prometheus.GaugeVec
	mode        *prometheus.GaugeVec
	outputs     *prometheus.GaugeVec
	thresholds  *prometheus.GaugeVec
	remaining   prometheus.Gauge
	transitions *prometheus.CounterVec
	glitches    prometheus.Gauge
	loopErrors  prometheus.Counter
}

// New registers the collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		moisture: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "moisture_percent",
			Help: "Smoothed soil moisture.",
		}),
		light: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "light_percent",
			Help: "Smoothed ambient light.",
		}),
		sensorFault: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sensor_fault",
			Help: "1 while a sensor channel reads out of electrical range.",
		}, []string{"channel"}),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "mode",
			Help: "1 for the current controller mode.",
		}, []string{"mode"}),
		outputs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "output_on",
			Help: "Relay output state.",
		}, []string{"output"}),
		thresholds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "threshold_percent",
			Help: "Configured watering thresholds.",
		}, []string{"sensor"}),
		remaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "remaining_seconds",
			Help: "Time until the next timed transition.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "transitions_total",
			Help: "Mode transitions by destination and reason.",
		}, []string{"to", "reason"}),
		glitches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "input_glitches",
			Help: "Button level changes dropped by debouncing.",
		}),
		loopErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "loop_errors_total",
			Help: "Control ticks that reported an error.",
		}),
	}
	m.reg.MustRegister(
		m.moisture, m.light, m.sensorFault, m.mode, m.outputs, m.thresholds,
		m.remaining, m.transitions, m.glitches, m.loopErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Observe records a controller snapshot.
func (m *Metrics) Observe(s irrigation.Snapshot, glitches int) {
	if s.HasSample {
		if s.Sample.Fault&sensor.MoistureFault == 0 {
			m.moisture.Set(s.Sample.Moisture)
		}
		if s.Sample.Fault&sensor.LightFault == 0 {
			m.light.Set(s.Sample.Light)
		}
		m.sensorFault.WithLabelValues("moisture").Set(b2f(s.Sample.Fault&sensor.MoistureFault != 0))
		m.sensorFault.WithLabelValues("light").Set(b2f(s.Sample.Fault&sensor.LightFault != 0))
	}
	for _, mode := range modes {
		m.mode.WithLabelValues(mode.String()).Set(b2f(s.State.Mode == mode))
	}
	m.outputs.WithLabelValues("valve").Set(b2f(s.State.ValveOpen))
	m.outputs.WithLabelValues("pump").Set(b2f(s.State.PumpRunning))
	m.thresholds.WithLabelValues("moisture").Set(s.State.MoistureThreshold)
	m.thresholds.WithLabelValues("light").Set(s.State.LightThreshold)
	m.remaining.Set(s.Remaining.Seconds())
	m.glitches.Set(float64(glitches))
}

// Transition counts a mode change.
func (m *Metrics) Transition(t irrigation.Transition) {
	m.transitions.WithLabelValues(t.To.String(), string(t.Reason)).Inc()
}

// LoopError counts a tick that reported an error.
func (m *Metrics) LoopError() {
	m.loopErrors.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}
