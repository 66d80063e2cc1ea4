package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Power         string       `json:"power"`
	AwaitingAck   bool         `json:"awaiting_ack"`
	Comfort       bool         `json:"comfort"`
	LastAction    string       `json:"last_action,omitempty"`
	Override      OverrideJSON `json:"override"`
	LastReading   *ReadingJSON `json:"last_reading,omitempty"`
	History       HistoryJSON  `json:"history"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Config        ConfigJSON   `json:"config"`
}

// OverrideJSON reports the manual override window.
type OverrideJSON struct {
	Active           bool   `json:"active"`
	RemainingMinutes int64  `json:"remaining_minutes"`
	LastForcedAt     string `json:"last_forced_at,omitempty"`
}

// ReadingJSON is the JSON representation of a reading.
type ReadingJSON struct {
	Timestamp   string  `json:"timestamp"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// HistoryJSON reports history fill level.
type HistoryJSON struct {
	Len      int `json:"len"`
	Capacity int `json:"capacity"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Telemetry     int `json:"telemetry"`
	Malformed     int `json:"malformed"`
	Commands      int `json:"commands"`
	Overrides     int `json:"overrides"`
	PersistErrors int `json:"persist_errors"`
}

// ConfigJSON is the JSON representation of controller config.
type ConfigJSON struct {
	Device           string  `json:"device"`
	Setpoint         float64 `json:"setpoint"`
	Hysteresis       float64 `json:"hysteresis"`
	ComfortWindows   string  `json:"comfort_windows"`
	OverrideCooldown string  `json:"override_cooldown"`
	HistoryCapacity  int     `json:"history_capacity"`
	HistoryFile      string  `json:"history_file"`
	Broker           string  `json:"broker"`
	HTTPAddr         string  `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	power := string(snap.Power)
	if power == "" {
		power = "UNKNOWN"
	}

	inner := StatusInner{
		Power:       power,
		AwaitingAck: snap.AwaitingAck,
		Comfort:     snap.Comfort,
		LastAction:  string(snap.LastAction),
		Override: OverrideJSON{
			Active:           snap.OverrideActive(),
			RemainingMinutes: int64(math.Round(snap.OverrideRemaining().Minutes())),
		},
		History: HistoryJSON{
			Len:      snap.HistoryLen,
			Capacity: snap.Config.HistoryCapacity,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Telemetry:     snap.Counts.Telemetry,
			Malformed:     snap.Counts.Malformed,
			Commands:      snap.Counts.Commands,
			Overrides:     snap.Counts.Overrides,
			PersistErrors: snap.Counts.PersistErrors,
		},
		Config: ConfigJSON{
			Device:           snap.Config.Device,
			Setpoint:         snap.Config.Setpoint,
			Hysteresis:       snap.Config.Hysteresis,
			ComfortWindows:   snap.Config.ComfortWindows,
			OverrideCooldown: snap.Config.OverrideCooldown.String(),
			HistoryCapacity:  snap.Config.HistoryCapacity,
			HistoryFile:      snap.Config.HistoryFile,
			Broker:           snap.Config.Broker,
			HTTPAddr:         snap.Config.HTTPAddr,
		},
	}

	if !snap.LastForcedAt.IsZero() {
		inner.Override.LastForcedAt = snap.LastForcedAt.UTC().Format(time.RFC3339)
	}
	if snap.LastReading != nil {
		inner.LastReading = &ReadingJSON{
			Timestamp:   snap.LastReading.Timestamp.Format(time.RFC3339),
			Temperature: snap.LastReading.Temperature,
			Humidity:    snap.LastReading.Humidity,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
