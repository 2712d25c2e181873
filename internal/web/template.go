package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/garden-irrigator/internal/display"
	"github.com/sweeney/garden-irrigator/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"clock": func(secs int64) string {
		return display.Clock(time.Duration(secs) * time.Second)
	},
	"onOff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
	"pct": func(v *float64) string {
		if v == nil {
			return "ERR"
		}
		return fmt.Sprintf("%.0f%%", *v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Garden Irrigator</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.fault { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Garden Irrigator</h1>

<h2>State</h2>
<table>
<tr><th>Mode</th><td id="mode">{{.Status.Mode}}</td></tr>
<tr><th>Valve</th><td id="valve" class="{{if .Status.ValveOpen}}on{{else}}off{{end}}">{{onOff .Status.ValveOpen}}</td></tr>
<tr><th>Pump</th><td id="pump" class="{{if .Status.PumpRunning}}on{{else}}off{{end}}">{{onOff .Status.PumpRunning}}</td></tr>
{{if eq .Status.Mode "WATERING"}}<tr><th>Stops in</th><td id="remaining">{{clock .Status.RemainingSeconds}}</td></tr>
{{else if eq .Status.Mode "SUSPENDED"}}<tr><th>Resumes in</th><td id="remaining">{{clock .Status.RemainingSeconds}}</td></tr>
{{end}}<tr><th>Fault</th><td id="fault" class="{{if ne .Status.Fault "none"}}fault{{end}}">{{.Status.Fault}}</td></tr>
<tr><th>Ready</th><td>{{if .Status.Ready}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Sensors</h2>
<table>
{{with .Status.Sensors}}<tr><th>Moisture</th><td id="moisture">{{pct .Moisture}}</td></tr>
<tr><th>Light</th><td id="light">{{pct .Light}}</td></tr>
{{else}}<tr><th>Moisture</th><td id="moisture">--</td></tr>
<tr><th>Light</th><td id="light">--</td></tr>
{{end}}</table>

<h2>Settings</h2>
<table>
<tr><th>Moisture below</th><td>{{printf "%.0f" .Status.Settings.MoistureThreshold}}%</td></tr>
<tr><th>Light below</th><td>{{printf "%.0f" .Status.Settings.LightThreshold}}%</td></tr>
<tr><th>Water for</th><td>{{clock .Status.Settings.ActivationSeconds}}</td></tr>
<tr><th>Selected</th><td>{{.Status.Settings.Selected}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .Status.MQTT.Connected}}connected{{else}}disconnected{{end}}">{{if .Status.MQTT.Connected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Status.MQTT.Broker}}</td></tr>
{{with .Status.Network}}<tr><th>Network</th><td>{{.Status}} ({{.Type}}{{if .SSID}}, {{.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Cycles</th><td>{{.Status.Counts.Cycles}}</td></tr>
<tr><th>Aborts</th><td>{{.Status.Counts.Aborts}}</td></tr>
<tr><th>Sensor faults</th><td>{{.Status.Counts.SensorFaults}}</td></tr>
<tr><th>Actuator faults</th><td>{{.Status.Counts.ActuatorFaults}}</td></tr>
<tr><th>Input glitches</th><td>{{.Status.Counts.InputGlitches}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.Status.StartTime}}</td></tr>
<tr><th>Boot</th><td>{{.Status.BootID}}</td></tr>
<tr><th>Tick</th><td>{{.Status.Config.PeriodMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Status.Config.DebounceMs}}ms</td></tr>
<tr><th>Long press</th><td>{{.Status.Config.LongPressMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Status.Config.HeartbeatMs 0}}disabled{{else}}{{.Status.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>ADC</th><td>{{.Status.Config.ADC}}</td></tr>
<tr><th>Display</th><td>{{.Status.Config.Display}}</td></tr>
<tr><th>HTTP</th><td>{{.Status.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/index.json?format=msgpack">MessagePack</a></p>
<script>
(function() {
  function pct(v) { return v === undefined || v === null ? "ERR" : Math.round(v) + "%"; }
  function set(id, text, cls) {
    var el = document.getElementById(id);
    if (!el) return;
    el.textContent = text;
    if (cls !== undefined) el.className = cls;
  }
  function refresh() {
    fetch("/index.json").then(function(r) { return r.json(); }).then(function(doc) {
      var s = doc.status;
      set("mode", s.mode);
      set("valve", s.valve_open ? "ON" : "OFF", s.valve_open ? "on" : "off");
      set("pump", s.pump_running ? "ON" : "OFF", s.pump_running ? "on" : "off");
      set("fault", s.fault, s.fault === "none" ? "" : "fault");
      if (s.sensors) {
        set("moisture", pct(s.sensors.moisture));
        set("light", pct(s.sensors.light));
      }
    }).catch(function() {});
  }
  setInterval(refresh, 2000);
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := struct {
		status.StatusJSON
		Uptime time.Duration
	}{
		StatusJSON: status.Build(snap),
		Uptime:     snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
