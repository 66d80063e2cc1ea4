package logic

import "time"

// DefaultCooldown is how long automatic control stays suppressed after a
// manual power change.
const DefaultCooldown = time.Hour

// OverrideTracker tracks the heater's last known power state and tells
// self-issued power changes apart from forced ones.
//
// At most one pending command is tracked. Any result arriving while a command
// is pending is taken as its acknowledgement, whatever the reported value.
type OverrideTracker struct {
	cooldown     time.Duration
	lastPower    PowerState
	awaitingAck  bool
	requested    PowerState
	lastForcedAt time.Time
}

// NewOverrideTracker creates a tracker with no known power state and no override.
func NewOverrideTracker(cooldown time.Duration) *OverrideTracker {
	return &OverrideTracker{
		cooldown:  cooldown,
		lastPower: PowerUnknown,
		requested: PowerUnknown,
	}
}

// CommandSent records that we published a power command. requested is
// PowerUnknown for a status probe.
func (o *OverrideTracker) CommandSent(requested PowerState) {
	o.awaitingAck = true
	o.requested = requested
}

// ResultObserved records a power result reported by the device at now.
func (o *OverrideTracker) ResultObserved(state PowerState, now time.Time) Attribution {
	o.lastPower = state

	if o.awaitingAck {
		o.awaitingAck = false
		requested := o.requested
		o.requested = PowerUnknown
		if requested != PowerUnknown && requested != state {
			return AttributedSelfMismatch
		}
		return AttributedSelf
	}

	o.lastForcedAt = now
	return AttributedExternal
}

// Overridden reports whether automatic control is suppressed at now.
func (o *OverrideTracker) Overridden(now time.Time) bool {
	if o.lastForcedAt.IsZero() {
		return false
	}
	return now.Sub(o.lastForcedAt) < o.cooldown
}

// Remaining returns how long the override still lasts at now, or 0.
func (o *OverrideTracker) Remaining(now time.Time) time.Duration {
	if !o.Overridden(now) {
		return 0
	}
	return o.cooldown - now.Sub(o.lastForcedAt)
}

// LastPower returns the best known power state.
func (o *OverrideTracker) LastPower() PowerState {
	return o.lastPower
}

// AwaitingAck reports whether a self-issued command is pending.
func (o *OverrideTracker) AwaitingAck() bool {
	return o.awaitingAck
}

// LastForcedAt returns when the last forced change was seen (zero if never).
func (o *OverrideTracker) LastForcedAt() time.Time {
	return o.lastForcedAt
}

// Cooldown returns the configured override duration.
func (o *OverrideTracker) Cooldown() time.Duration {
	return o.cooldown
}
