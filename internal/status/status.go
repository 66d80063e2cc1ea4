// Package status provides a thread-safe status tracker for the heat controller.
// It is written by the control loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/heat-controller/internal/logic"
)

// Config contains controller configuration for display.
type Config struct {
	Broker           string
	Device           string
	HTTPAddr         string
	Setpoint         float64
	Hysteresis       float64
	ComfortWindows   string
	OverrideCooldown time.Duration
	HistoryCapacity  int
	HistoryFile      string
}

// Counts tracks events handled since startup.
type Counts struct {
	Telemetry     int
	Malformed     int
	Commands      int
	Overrides     int
	PersistErrors int
}

// Control is the control loop's view of the heater.
type Control struct {
	Power         logic.PowerState
	AwaitingAck   bool
	LastForcedAt  time.Time // zero if never forced
	OverrideUntil time.Time // zero if never forced
	Comfort       bool      // comfort period at the last reading
	LastAction    logic.Action
	LastReading   *logic.Reading
	HistoryLen    int
}

// Snapshot is a point-in-time view of controller state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Control
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the controller started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// OverrideActive reports whether automatic control is suppressed at Now.
func (s Snapshot) OverrideActive() bool {
	return !s.OverrideUntil.IsZero() && s.Now.Before(s.OverrideUntil)
}

// OverrideRemaining returns how long the override lasts past Now, or 0.
func (s Snapshot) OverrideRemaining() time.Duration {
	if !s.OverrideActive() {
		return 0
	}
	return s.OverrideUntil.Sub(s.Now)
}

// Tracker holds mutable controller state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Control:   Control{Power: logic.PowerUnknown},
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the control state and counters.
// Called by the control loop after every event.
func (t *Tracker) Update(control Control, counts Counts) {
	if control.LastReading != nil {
		r := *control.LastReading
		control.LastReading = &r
	}
	t.mu.Lock()
	t.snap.Control = control
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the controller state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
