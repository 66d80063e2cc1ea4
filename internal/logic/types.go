// Package logic contains the pure control logic of the heat controller.
// This package has NO external dependencies (no MQTT, OS, files or clocks).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// PowerState represents the heater's power state as reported by the device.
type PowerState string

const (
	PowerOn      PowerState = "ON"
	PowerOff     PowerState = "OFF"
	PowerUnknown PowerState = "UNKNOWN"
)

// ParsePowerState converts a device POWER value to a PowerState.
// Returns false for anything other than "ON" or "OFF".
func ParsePowerState(s string) (PowerState, bool) {
	switch PowerState(s) {
	case PowerOn:
		return PowerOn, true
	case PowerOff:
		return PowerOff, true
	}
	return PowerUnknown, false
}

// Action is the outcome of a policy decision.
type Action string

const (
	ActionTurnOn   Action = "TURN_ON"
	ActionTurnOff  Action = "TURN_OFF"
	ActionNoChange Action = "NO_CHANGE"
)

// Attribution says who caused an observed power result.
type Attribution string

const (
	// AttributedSelf means the result acknowledges our own command.
	AttributedSelf Attribution = "SELF"
	// AttributedSelfMismatch is a result taken as our acknowledgement even though
	// the reported state differs from the one we asked for.
	AttributedSelfMismatch Attribution = "SELF_MISMATCH"
	// AttributedExternal means the power changed without us asking (button press).
	AttributedExternal Attribution = "EXTERNAL"
)

// Reading is a single telemetry sample. Immutable once constructed.
type Reading struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
}
