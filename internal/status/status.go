// Package status provides a thread-safe view of the irrigation controller for
// readers outside the control loop (HTTP handlers, MQTT system events).
package status

import (
	"sync"
	"time"

	"github.com/sweeney/garden-irrigator/internal/irrigation"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PeriodMs      int64
	DebounceMs    int64
	LongPressMs   int64
	SettleMs      int64
	SampleEveryMs int64
	RenderEveryMs int64
	SuspendS      int64
	HeartbeatMs   int64
	ADC           string
	Display       string
	Broker        string
	HTTPAddr      string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Controller irrigation.Snapshot
	// Ready is set once the loop has run at least one tick.
	Ready         bool
	Glitches      int
	BootID        string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time, boot id and config.
func NewTracker(startTime time.Time, bootID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			BootID:    bootID,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update records the controller state after a tick.
func (t *Tracker) Update(ctl irrigation.Snapshot, glitches int) {
	t.mu.Lock()
	t.snap.Controller = ctl
	t.snap.Glitches = glitches
	t.snap.Ready = true
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
