// Package control runs the thermostat loop: it feeds device events through the
// override tracker and hysteresis policy and issues power commands.
//
// A Controller is owned by a single goroutine. Only the status tracker is
// shared with other goroutines.
package control

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/heat-controller/internal/history"
	"github.com/sweeney/heat-controller/internal/logic"
	"github.com/sweeney/heat-controller/internal/mqtt"
	"github.com/sweeney/heat-controller/internal/status"
)

// HistoryStore persists the reading history.
type HistoryStore interface {
	// Append pushes reading onto ring and persists it. The ring is updated
	// even when persisting fails.
	Append(ring *history.Ring, reading logic.Reading) error
}

// Options configures a Controller.
type Options struct {
	Policy   logic.Policy
	Schedule logic.Schedule
	Cooldown time.Duration

	History *history.Ring
	// Store persists History after every reading. Nil keeps history in memory only.
	Store HistoryStore

	Commander mqtt.Commander

	// Status, if set, receives a snapshot after every event.
	Status *status.Tracker

	// Clock stamps forced power changes. Defaults to time.Now.
	Clock func() time.Time

	Logger *logrus.Entry
}

// Controller holds the control state and history for one device.
type Controller struct {
	policy    logic.Policy
	schedule  logic.Schedule
	tracker   *logic.OverrideTracker
	ring      *history.Ring
	store     HistoryStore
	commander mqtt.Commander
	status    *status.Tracker
	now       func() time.Time
	log       *logrus.Entry

	counts     status.Counts
	comfort    bool
	lastAction logic.Action
}

// New creates a Controller with power UNKNOWN, nothing pending and no override.
func New(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.WithField("component", "control")
	}
	if opts.History == nil {
		opts.History = history.NewRing(history.DefaultCapacity)
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = logic.DefaultCooldown
	}

	c := &Controller{
		policy:    opts.Policy,
		schedule:  opts.Schedule,
		tracker:   logic.NewOverrideTracker(opts.Cooldown),
		ring:      opts.History,
		store:     opts.Store,
		commander: opts.Commander,
		status:    opts.Status,
		now:       opts.Clock,
		log:       opts.Logger,
	}
	c.publishStatus()
	return c
}

// Run handles events one at a time, in order, until ctx is done or events is closed.
func (c *Controller) Run(ctx context.Context, events <-chan mqtt.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.HandleEvent(ev)
		}
	}
}

// HandleEvent dispatches a single event.
func (c *Controller) HandleEvent(ev mqtt.Event) {
	switch ev.Kind {
	case mqtt.EventConnected:
		c.OnConnected()
	case mqtt.EventTelemetry:
		if ev.Err != nil {
			c.counts.Malformed++
			c.log.WithError(ev.Err).Error("discarding telemetry")
			break
		}
		c.OnTelemetry(ev.Reading)
	case mqtt.EventPowerResult:
		if ev.Err != nil {
			c.log.WithError(ev.Err).Warn("ignoring power result")
			break
		}
		c.OnPowerResult(ev.Power)
	default:
		c.log.WithField("kind", ev.Kind).Warn("unknown event")
	}
	c.publishStatus()
}

// OnConnected asks the device for its power state. Runs on every
// (re)connection; history and control state are kept.
func (c *Controller) OnConnected() {
	c.log.Debug("connected, probing power state")
	c.tracker.CommandSent(logic.PowerUnknown)
	if err := c.commander.QueryPower(); err != nil {
		c.log.WithError(err).Error("status probe failed")
	}
}

// OnTelemetry records a reading and, unless manually overridden, applies the policy.
func (c *Controller) OnTelemetry(reading logic.Reading) {
	c.counts.Telemetry++
	c.log.WithFields(logrus.Fields{
		"date":        reading.Timestamp.Format(logic.TimeLayout),
		"temperature": reading.Temperature,
		"humidity":    reading.Humidity,
	}).Info("reading")

	if c.store == nil {
		c.ring.Push(reading)
	} else if err := c.store.Append(c.ring, reading); err != nil {
		c.counts.PersistErrors++
		c.log.WithError(err).Error("persist history")
	}

	if c.tracker.Overridden(reading.Timestamp) {
		left := int64(math.Round(c.tracker.Remaining(reading.Timestamp).Minutes()))
		c.log.Debugf("Manually forced to %s. Time left: %d minutes", c.tracker.LastPower(), left)
		return
	}
	c.log.Debug("Not forced / Automatic mode")

	c.comfort = c.schedule.IsComfort(reading.Timestamp)
	current := c.tracker.LastPower()
	action := c.policy.Decide(current, reading.Temperature, c.comfort)
	c.lastAction = action

	c.log.WithFields(logrus.Fields{
		"power":   current,
		"comfort": c.comfort,
		"action":  action,
	}).Debug("decision")

	switch action {
	case logic.ActionTurnOn:
		if current != logic.PowerOn {
			c.send(logic.PowerOn)
		}
	case logic.ActionTurnOff:
		if current == logic.PowerOn {
			c.send(logic.PowerOff)
		}
	case logic.ActionNoChange:
	}
}

// OnPowerResult attributes a reported power state to us or to someone at the device.
func (c *Controller) OnPowerResult(state logic.PowerState) {
	switch c.tracker.ResultObserved(state, c.now()) {
	case logic.AttributedSelf:
		c.log.Infof("Heater is %s", state)
	case logic.AttributedSelfMismatch:
		c.log.Warnf("Heater is %s, not what we asked for", state)
	case logic.AttributedExternal:
		c.counts.Overrides++
		c.log.Infof("Heater is forced %s", state)
	}
}

// send marks the command pending, then publishes it.
func (c *Controller) send(state logic.PowerState) {
	c.tracker.CommandSent(state)
	c.counts.Commands++
	c.log.Infof("Asking power %s", state)

	var err error
	if state == logic.PowerOn {
		err = c.commander.PowerOn()
	} else {
		err = c.commander.PowerOff()
	}
	if err != nil {
		c.log.WithError(fmt.Errorf("power %s: %w", state, err)).Error("command failed")
	}
}

// State returns the control state: last power, whether a command is pending
// and when the last forced change was seen.
func (c *Controller) State() (logic.PowerState, bool, time.Time) {
	return c.tracker.LastPower(), c.tracker.AwaitingAck(), c.tracker.LastForcedAt()
}

// History returns the in-memory reading history.
func (c *Controller) History() *history.Ring {
	return c.ring
}

// Counts returns the event counters.
func (c *Controller) Counts() status.Counts {
	return c.counts
}

func (c *Controller) publishStatus() {
	if c.status == nil {
		return
	}
	control := status.Control{
		Power:        c.tracker.LastPower(),
		AwaitingAck:  c.tracker.AwaitingAck(),
		LastForcedAt: c.tracker.LastForcedAt(),
		Comfort:      c.comfort,
		LastAction:   c.lastAction,
		HistoryLen:   c.ring.Len(),
	}
	if forced := c.tracker.LastForcedAt(); !forced.IsZero() {
		control.OverrideUntil = forced.Add(c.tracker.Cooldown())
	}
	if latest, ok := c.ring.Latest(); ok {
		control.LastReading = &latest
	}
	c.status.Update(control, c.counts)
}
