// Package mqtt publishes controller transitions and lifecycle events. It is
// observation only: nothing is subscribed to and nothing received can change
// the controller.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/garden-irrigator/internal/irrigation"
	"github.com/sweeney/garden-irrigator/internal/sensor"
)

// Topic is the MQTT topic for irrigation transitions.
const Topic = "garden/irrigation/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "garden/irrigation/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a transition event to the broker.
	// It must not block the control loop.
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Event is one state machine transition together with the state it left the
// controller in.
type Event struct {
	Timestamp  time.Time
	Transition irrigation.Transition
	Snapshot   irrigation.Snapshot
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Irrigation IrrigationPayload `json:"irrigation"`
}

// IrrigationPayload contains the transition details.
type IrrigationPayload struct {
	Timestamp   string   `json:"timestamp"`
	Event       string   `json:"event"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Reason      string   `json:"reason"`
	ValveOpen   bool     `json:"valve_open"`
	PumpRunning bool     `json:"pump_running"`
	Moisture    *float64 `json:"moisture,omitempty"`
	Light       *float64 `json:"light,omitempty"`
	Fault       string   `json:"fault"`
}

// EventName names a transition, e.g. "IDLE_TO_WATERING".
func EventName(t irrigation.Transition) string {
	return t.From.String() + "_TO_" + t.To.String()
}

// FormatPayload creates the JSON payload for a transition event.
func FormatPayload(event Event) ([]byte, error) {
	s := event.Snapshot
	p := IrrigationPayload{
		Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
		Event:       EventName(event.Transition),
		From:        event.Transition.From.String(),
		To:          event.Transition.To.String(),
		Reason:      string(event.Transition.Reason),
		ValveOpen:   s.State.ValveOpen,
		PumpRunning: s.State.PumpRunning,
		Fault:       s.Fault.String(),
	}
	if s.HasSample {
		if s.Sample.Fault&sensor.MoistureFault == 0 {
			v := s.Sample.Moisture
			p.Moisture = &v
		}
		if s.Sample.Fault&sensor.LightFault == 0 {
			v := s.Sample.Light
			p.Light = &v
		}
	}
	return json.Marshal(Payload{Irrigation: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
