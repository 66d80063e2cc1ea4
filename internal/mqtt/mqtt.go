// Package mqtt is the transport boundary to a Tasmota device: topic layout,
// inbound event decoding and outbound power commands, with a fake for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sweeney/heat-controller/internal/logic"
)

// DefaultDevice is the Tasmota topic of the heater plug.
const DefaultDevice = "tasmota_9DA6D1"

// DefaultSensor is the payload key of the temperature/humidity sensor.
const DefaultSensor = "SI7021"

// Power command payloads. An empty payload asks the device for its state.
const (
	PayloadOn    = "ON"
	PayloadOff   = "OFF"
	PayloadQuery = ""
)

var (
	// ErrIgnored is returned by Decode for messages that carry nothing for the controller.
	ErrIgnored = errors.New("message ignored")
	// ErrMalformed is the cause of Event.Err for payloads that cannot be decoded.
	ErrMalformed = errors.New("malformed payload")
)

// Topics is the MQTT topic layout for one device.
type Topics struct {
	Telemetry string
	Result    string
	Command   string
}

// NewTopics returns the standard Tasmota topics for device.
func NewTopics(device string) Topics {
	return Topics{
		Telemetry: "tele/" + device + "/SENSOR",
		Result:    "stat/" + device + "/RESULT",
		Command:   "cmnd/" + device + "/POWER",
	}
}

// DefaultSystemTopic returns where lifecycle events for device are published.
func DefaultSystemTopic(device string) string {
	return "heat-controller/" + device + "/system"
}

// EventKind is the closed set of inbound events.
type EventKind int

const (
	EventConnected EventKind = iota + 1
	EventTelemetry
	EventPowerResult
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "CONNECTED"
	case EventTelemetry:
		return "TELEMETRY"
	case EventPowerResult:
		return "POWER_RESULT"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is a decoded inbound event.
type Event struct {
	Kind    EventKind
	Reading logic.Reading    // EventTelemetry
	Power   logic.PowerState // EventPowerResult
	// Err is set when a telemetry or result payload could not be decoded.
	// Reading and Power are then zero.
	Err error
}

// Commander sends power commands to the device.
// Sending does not wait for the device; the result arrives later as an event.
type Commander interface {
	PowerOn() error
	PowerOff() error
	QueryPower() error
}

// SystemPublisher publishes controller lifecycle events.
type SystemPublisher interface {
	PublishSystem(event SystemEvent) error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Decoder turns raw MQTT messages into Events.
type Decoder struct {
	Topics Topics
	// Sensor is the payload key holding Temperature and Humidity. When empty,
	// the first object (by key order) holding a Temperature is used.
	Sensor string
	// Location is used for the zone-less device timestamp. UTC if nil.
	Location *time.Location
}

type sensorPayload struct {
	Temperature *float64 `json:"Temperature"`
	Humidity    *float64 `json:"Humidity"`
}

type resultPayload struct {
	Power *string `json:"POWER"`
}

// Decode parses a message received on topic. It returns ErrIgnored for
// topics and results that don't concern the controller. Undecodable
// telemetry and results come back as an Event with Err set.
func (d Decoder) Decode(topic string, payload []byte) (Event, error) {
	switch topic {
	case d.Topics.Telemetry:
		reading, err := d.decodeTelemetry(payload)
		if err != nil {
			return Event{Kind: EventTelemetry, Err: err}, nil
		}
		return Event{Kind: EventTelemetry, Reading: reading}, nil

	case d.Topics.Result:
		var p resultPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return Event{Kind: EventPowerResult, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}, nil
		}
		if p.Power == nil {
			return Event{}, ErrIgnored
		}
		state, ok := logic.ParsePowerState(*p.Power)
		if !ok {
			return Event{Kind: EventPowerResult, Err: fmt.Errorf("%w: unknown POWER value %q", ErrMalformed, *p.Power)}, nil
		}
		return Event{Kind: EventPowerResult, Power: state}, nil
	}

	return Event{}, ErrIgnored
}

func (d Decoder) decodeTelemetry(payload []byte) (logic.Reading, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return logic.Reading{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var ts string
	if raw, ok := fields["Time"]; ok {
		if err := json.Unmarshal(raw, &ts); err != nil {
			return logic.Reading{}, fmt.Errorf("%w: Time: %v", ErrMalformed, err)
		}
	}

	sensor, err := d.findSensor(fields)
	if err != nil {
		return logic.Reading{}, err
	}

	reading, err := logic.NewReading(ts, sensor.Temperature, sensor.Humidity, d.Location)
	if err != nil {
		return logic.Reading{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return reading, nil
}

func (d Decoder) findSensor(fields map[string]json.RawMessage) (sensorPayload, error) {
	var s sensorPayload

	if d.Sensor != "" {
		raw, ok := fields[d.Sensor]
		if !ok {
			return s, fmt.Errorf("%w: %w (sensor %q absent)", ErrMalformed, logic.ErrMissingTemperature, d.Sensor)
		}
		if err := json.Unmarshal(raw, &s); err != nil {
			return s, fmt.Errorf("%w: sensor %q: %v", ErrMalformed, d.Sensor, err)
		}
		return s, nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var candidate sensorPayload
		if err := json.Unmarshal(fields[k], &candidate); err != nil {
			continue // not an object
		}
		if candidate.Temperature != nil {
			return candidate, nil
		}
	}
	return s, fmt.Errorf("%w: %w (no sensor object)", ErrMalformed, logic.ErrMissingTemperature)
}

// SystemEvent is a controller lifecycle event (startup, shutdown, offline will).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "OFFLINE"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload is the minimal payload for events without a status snapshot.
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
