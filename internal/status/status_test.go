package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/heat-controller/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Broker: "tcp://localhost:1883", HTTPAddr: ":8080", Setpoint: 21.8, HistoryCapacity: 100}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.Setpoint != 21.8 {
		t.Errorf("Config.Setpoint: got %v, want 21.8", snap.Config.Setpoint)
	}
	if snap.Config.HTTPAddr != ":8080" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":8080")
	}
	if snap.Power != logic.PowerUnknown {
		t.Errorf("Power: got %q, want UNKNOWN", snap.Power)
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if snap.LastReading != nil {
		t.Error("expected nil LastReading initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	reading := logic.Reading{Timestamp: time.Now(), Temperature: 21.4, Humidity: 40}

	tr.Update(Control{
		Power:       logic.PowerOn,
		AwaitingAck: true,
		LastAction:  logic.ActionTurnOn,
		LastReading: &reading,
		HistoryLen:  7,
	}, Counts{Telemetry: 7, Commands: 1})

	snap := tr.Snapshot()
	if snap.Power != logic.PowerOn {
		t.Errorf("Power: got %q, want ON", snap.Power)
	}
	if !snap.AwaitingAck {
		t.Error("expected AwaitingAck=true")
	}
	if snap.LastReading == nil || snap.LastReading.Temperature != 21.4 {
		t.Errorf("LastReading: got %+v", snap.LastReading)
	}
	if snap.HistoryLen != 7 {
		t.Errorf("HistoryLen: got %d, want 7", snap.HistoryLen)
	}
	if snap.Counts.Telemetry != 7 || snap.Counts.Commands != 1 {
		t.Errorf("Counts: got %+v", snap.Counts)
	}
}

func TestUpdateCopiesReading(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	reading := logic.Reading{Temperature: 20}
	tr.Update(Control{LastReading: &reading}, Counts{})

	reading.Temperature = 30

	if got := tr.Snapshot().LastReading.Temperature; got != 20 {
		t.Errorf("LastReading.Temperature: got %v, want 20", got)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotOverride(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		until     time.Time
		active    bool
		remaining time.Duration
	}{
		{"never forced", time.Time{}, false, 0},
		{"expired", now.Add(-time.Minute), false, 0},
		{"ends now", now, false, 0},
		{"active", now.Add(50 * time.Minute), true, 50 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Snapshot{Control: Control{OverrideUntil: tt.until}, Now: now}
			if snap.OverrideActive() != tt.active {
				t.Errorf("OverrideActive: got %v, want %v", snap.OverrideActive(), tt.active)
			}
			if snap.OverrideRemaining() != tt.remaining {
				t.Errorf("OverrideRemaining: got %v, want %v", snap.OverrideRemaining(), tt.remaining)
			}
		})
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(Control{Power: logic.PowerOn}, Counts{Telemetry: 1})

	snap1 := tr.Snapshot()

	tr.Update(Control{Power: logic.PowerOff}, Counts{Telemetry: 2})

	if snap1.Power != logic.PowerOn {
		t.Error("snapshot should be a copy; Power was modified")
	}
	if snap1.Counts.Telemetry != 1 {
		t.Error("snapshot should be a copy; Counts was modified")
	}
}

func testSnapshot() Snapshot {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(15 * time.Minute)
	reading := logic.Reading{Timestamp: now.Add(-time.Minute), Temperature: 21.5, Humidity: 44.2}
	return Snapshot{
		Control: Control{
			Power:         logic.PowerOff,
			Comfort:       true,
			LastAction:    logic.ActionNoChange,
			LastForcedAt:  now.Add(-10 * time.Minute),
			OverrideUntil: now.Add(50 * time.Minute),
			LastReading:   &reading,
			HistoryLen:    12,
		},
		Counts:        Counts{Telemetry: 12, Malformed: 1, Commands: 3, Overrides: 1},
		StartTime:     start,
		Now:           now,
		MQTTConnected: true,
		Config: Config{
			Broker:           "tcp://localhost:1883",
			Device:           "tasmota",
			HTTPAddr:         ":8080",
			Setpoint:         21.8,
			Hysteresis:       0.2,
			ComfortWindows:   "6-8,19-21",
			OverrideCooldown: time.Hour,
			HistoryCapacity:  100,
			HistoryFile:      "/tmp/history.json",
		},
	}
}

func TestFormatJSON(t *testing.T) {
	data := FormatJSON(testSnapshot())

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.Power != "OFF" {
		t.Errorf("power: got %q, want OFF", s.Power)
	}
	if !s.Comfort {
		t.Error("comfort: got false, want true")
	}
	if s.LastAction != "NO_CHANGE" {
		t.Errorf("last_action: got %q, want NO_CHANGE", s.LastAction)
	}
	if !s.Override.Active {
		t.Error("override.active: got false, want true")
	}
	if s.Override.RemainingMinutes != 50 {
		t.Errorf("override.remaining_minutes: got %d, want 50", s.Override.RemainingMinutes)
	}
	if s.Override.LastForcedAt != "2026-01-01T00:05:00Z" {
		t.Errorf("override.last_forced_at: got %q", s.Override.LastForcedAt)
	}
	if s.LastReading == nil || s.LastReading.Temperature != 21.5 {
		t.Errorf("last_reading: got %+v", s.LastReading)
	}
	if s.History.Len != 12 || s.History.Capacity != 100 {
		t.Errorf("history: got %+v", s.History)
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("uptime_seconds: got %d, want 900", s.UptimeSeconds)
	}
	if s.StartTime != "2026-01-01T00:00:00Z" {
		t.Errorf("start_time: got %q", s.StartTime)
	}
	if !s.MQTT.Connected {
		t.Error("mqtt.connected: got false, want true")
	}
	if s.Counts.Malformed != 1 || s.Counts.Commands != 3 {
		t.Errorf("counts: got %+v", s.Counts)
	}
	if s.Config.OverrideCooldown != "1h0m0s" {
		t.Errorf("config.override_cooldown: got %q", s.Config.OverrideCooldown)
	}
	if s.Event != "" || s.Reason != "" {
		t.Errorf("expected no event/reason, got %q/%q", s.Event, s.Reason)
	}
}

func TestFormatJSONNoReading(t *testing.T) {
	snap := testSnapshot()
	snap.LastReading = nil
	snap.LastForcedAt = time.Time{}
	snap.OverrideUntil = time.Time{}
	snap.Power = ""

	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(FormatJSON(snap), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := raw["status"]
	if _, ok := s["last_reading"]; ok {
		t.Error("expected last_reading to be omitted")
	}
	if s["power"] != "UNKNOWN" {
		t.Errorf("power: got %v, want UNKNOWN", s["power"])
	}
	override := s["override"].(map[string]interface{})
	if _, ok := override["last_forced_at"]; ok {
		t.Error("expected last_forced_at to be omitted")
	}
	if override["active"] != false {
		t.Errorf("override.active: got %v", override["active"])
	}
}

func TestFormatStatusEvent(t *testing.T) {
	data := FormatStatusEvent(testSnapshot(), "STARTUP", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "STARTUP" {
		t.Errorf("event: got %q, want STARTUP", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("reason: got %q, want empty", parsed.Status.Reason)
	}

	data = FormatStatusEvent(testSnapshot(), "SHUTDOWN", "signal")
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "signal" {
		t.Errorf("event/reason: got %q/%q", parsed.Status.Event, parsed.Status.Reason)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func(n int) {
			defer wg.Done()
			r := logic.Reading{Temperature: float64(n)}
			tr.Update(Control{Power: logic.PowerOn, LastReading: &r}, Counts{Telemetry: n})
		}(i)
		go func() {
			defer wg.Done()
			tr.SetMQTTConnected(true)
		}()
		go func() {
			defer wg.Done()
			_ = FormatJSON(tr.Snapshot())
		}()
	}
	wg.Wait()
}
