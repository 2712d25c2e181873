package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/garden-irrigator/internal/irrigation"
	"github.com/sweeney/garden-irrigator/internal/sensor"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event            string       `json:"event,omitempty"`
	Reason           string       `json:"reason,omitempty"`
	Mode             string       `json:"mode"`
	ValveOpen        bool         `json:"valve_open"`
	PumpRunning      bool         `json:"pump_running"`
	RemainingSeconds int64        `json:"remaining_seconds"`
	Fault            string       `json:"fault"`
	Sensors          *SensorsJSON `json:"sensors,omitempty"`
	Settings         SettingsJSON `json:"settings"`
	Ready            bool         `json:"ready"`
	BootID           string       `json:"boot_id"`
	UptimeSeconds    int64        `json:"uptime_seconds"`
	StartTime        string       `json:"start_time"`
	Timestamp        string       `json:"timestamp"`
	MQTT             MQTTStatus   `json:"mqtt"`
	Counts           CountsJSON   `json:"counts"`
	Network          *NetworkJSON `json:"network,omitempty"`
	Config           ConfigJSON   `json:"config"`
}

// SensorsJSON is the latest sample. A faulted channel has no value.
type SensorsJSON struct {
	Moisture *float64 `json:"moisture,omitempty"`
	Light    *float64 `json:"light,omitempty"`
	Fault    string   `json:"fault"`
}

// SettingsJSON holds the values adjustable from the buttons.
type SettingsJSON struct {
	MoistureThreshold float64 `json:"moisture_threshold"`
	LightThreshold    float64 `json:"light_threshold"`
	ActivationSeconds int64   `json:"activation_seconds"`
	Selected          string  `json:"selected"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of running totals.
type CountsJSON struct {
	Cycles         int `json:"cycles"`
	Aborts         int `json:"aborts"`
	SensorFaults   int `json:"sensor_faults"`
	ActuatorFaults int `json:"actuator_faults"`
	InputGlitches  int `json:"input_glitches"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PeriodMs      int64  `json:"period_ms"`
	DebounceMs    int64  `json:"debounce_ms"`
	LongPressMs   int64  `json:"long_press_ms"`
	SettleMs      int64  `json:"settle_ms"`
	SampleEveryMs int64  `json:"sample_every_ms"`
	RenderEveryMs int64  `json:"render_every_ms"`
	SuspendS      int64  `json:"suspend_s"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	ADC           string `json:"adc"`
	Display       string `json:"display"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
}

func seconds(d time.Duration) int64 {
	return int64(d.Truncate(time.Second).Seconds())
}

func buildSensors(ctl irrigation.Snapshot) *SensorsJSON {
	if !ctl.HasSample {
		return nil
	}
	s := ctl.Sample
	out := &SensorsJSON{Fault: s.Fault.String()}
	if s.Fault&sensor.MoistureFault == 0 {
		v := s.Moisture
		out.Moisture = &v
	}
	if s.Fault&sensor.LightFault == 0 {
		v := s.Light
		out.Light = &v
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	ctl := snap.Controller
	st := ctl.State
	return StatusInner{
		Mode:             st.Mode.String(),
		ValveOpen:        st.ValveOpen,
		PumpRunning:      st.PumpRunning,
		RemainingSeconds: seconds(ctl.Remaining),
		Fault:            ctl.Fault.String(),
		Sensors:          buildSensors(ctl),
		Settings: SettingsJSON{
			MoistureThreshold: st.MoistureThreshold,
			LightThreshold:    st.LightThreshold,
			ActivationSeconds: seconds(st.Activation),
			Selected:          ctl.Cursor.String(),
		},
		Ready:         snap.Ready,
		BootID:        snap.BootID,
		UptimeSeconds: seconds(snap.Uptime()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Cycles:         ctl.Counts.Cycles,
			Aborts:         ctl.Counts.Aborts,
			SensorFaults:   ctl.Counts.SensorFaults,
			ActuatorFaults: ctl.Counts.ActuatorFaults,
			InputGlitches:  snap.Glitches,
		},
		Config: ConfigJSON(snap.Config),
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		n := NetworkJSON(*snap.Network)
		inner.Network = &n
	}
}

// Build returns the status document without event or reason.
func Build(snap Snapshot) StatusJSON {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)
	return StatusJSON{Status: inner}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(Build(snap), "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	doc := Build(snap)
	doc.Status.Event = event
	doc.Status.Reason = reason
	data, _ := json.Marshal(doc)
	return data
}
